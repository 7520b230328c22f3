package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// OTP flow.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrNoActiveChallenge = errors.New("no active challenge")
	ErrExpired           = errors.New("otp expired")
	ErrMismatch          = errors.New("otp mismatch")
	ErrDeliveryFailure   = errors.New("otp delivery failed")
	ErrTooManyRequests   = errors.New("too many requests")
)
