package entitlement

// Status is the closed set of subscription states the resolver knows about.
// Anything else parses to StatusUnrecognized.
type Status int

const (
	StatusUnrecognized Status = iota
	StatusNotStarted
	StatusIncomplete
	StatusIncompleteExpired
	StatusTrialing
	StatusActive
	StatusPastDue
	StatusCanceled
	StatusUnpaid
	StatusPaused
)

var statusNames = map[Status]string{
	StatusNotStarted:        "not_started",
	StatusIncomplete:        "incomplete",
	StatusIncompleteExpired: "incomplete_expired",
	StatusTrialing:          "trialing",
	StatusActive:            "active",
	StatusPastDue:           "past_due",
	StatusCanceled:          "canceled",
	StatusUnpaid:            "unpaid",
	StatusPaused:            "paused",
}

var statusByName = func() map[string]Status {
	m := make(map[string]Status, len(statusNames)+1)
	for s, name := range statusNames {
		m[name] = s
	}
	m["cancelled"] = StatusCanceled
	return m
}()

// ParseStatus maps a stored provider status to a Status. Matching is exact;
// "cancelled" is the only accepted spelling outside the provider vocabulary.
func ParseStatus(raw string) Status {
	if s, ok := statusByName[raw]; ok {
		return s
	}
	return StatusUnrecognized
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unrecognized"
}
