package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrNoOrderBook         = errors.New("no order book data")
	ErrEmptyBook           = errors.New("order book side is empty")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidSide         = errors.New("unknown order side")
	ErrInvalidOrder        = errors.New("invalid order parameters")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrUnknownAccount      = errors.New("unknown account")
	ErrAccountExists       = errors.New("account already registered")
	ErrCollaboratorTimeout = errors.New("risk module timed out")
)
