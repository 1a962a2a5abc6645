package entitlement

import "fmt"

// Access is the resolved embed entitlement for an account.
type Access int

const (
	// AccessError means the inputs could not be loaded. Display it like
	// AccessTrialEnded but log it separately.
	AccessError Access = iota
	AccessActive
	AccessTrialEnded
	AccessNoTrial
)

func (a Access) String() string {
	switch a {
	case AccessActive:
		return "active"
	case AccessTrialEnded:
		return "trial_ended"
	case AccessNoTrial:
		return "no_trial"
	default:
		return "error"
	}
}

func ParseAccess(s string) (Access, error) {
	switch s {
	case "active":
		return AccessActive, nil
	case "trial_ended":
		return AccessTrialEnded, nil
	case "no_trial":
		return AccessNoTrial, nil
	case "error":
		return AccessError, nil
	}
	return AccessError, fmt.Errorf("unknown access %q", s)
}
