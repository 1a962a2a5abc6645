package service

import "errors"

var (
	ErrNoCustomer       = errors.New("customer not found")
	ErrNoSubscription   = errors.New("subscription not found")
	ErrNoSubscriptionID = errors.New("no active subscription to cancel")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrMissingSignature = errors.New("no signature found")
)
