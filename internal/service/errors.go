package service

import "errors"

var (
	ErrTestNotFound      = errors.New("test not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInvalidDate       = errors.New("invalid booking date")
	ErrUnmatchableEvent  = errors.New("confirmation event matches no pending booking")
	ErrSignatureMismatch = errors.New("payment signature verification failed")
	// ErrGatewayUnavailable covers network failures and timeouts talking to
	// the provider; callers should retry, the booking stays pending.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrIndeterminate means the provider gave no usable answer about a
	// payment. Never downgraded to a failure.
	ErrIndeterminate = errors.New("payment status indeterminate")
	// ErrBankChanged means the question bank no longer matches the content
	// hash frozen on the test; sampling and scoring refuse to proceed.
	ErrBankChanged  = errors.New("question bank changed since test creation")
	ErrBankTooSmall = errors.New("question bank smaller than requested sample")
)
