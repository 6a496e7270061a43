package biz

import "errors"

var (
	ErrEventNotFound    = errors.New("webhook event not found")
	ErrDuplicateEvent   = errors.New("webhook event already recorded")
	ErrEventNotFailed   = errors.New("only failed webhook events can be replayed")
	ErrSignatureInvalid = errors.New("invalid notification signature")
)

// ErrInvalidEventStatus is returned when filtering by an unknown status
var ErrInvalidEventStatus = errors.New("invalid webhook event status")
