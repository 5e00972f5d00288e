package graphdb

import "errors"

// Sentinel errors for the failure modes the engine distinguishes. Errors
// returned by the engine wrap one of these so callers can test with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrNotActive       = errors.New("not active")
	ErrMalformed       = errors.New("malformed record")
	ErrParse           = errors.New("parse error")
	ErrType            = errors.New("type error")
	ErrRecordTooLarge  = errors.New("record too large")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrUnknownTxn      = errors.New("unknown transaction")
)
