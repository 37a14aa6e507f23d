package votes

import "errors"

var (
	// ErrBadRequest marks caller mistakes: missing or malformed comic ids.
	ErrBadRequest = errors.New("bad request")
	// ErrInternal marks store failures, including unique-index races.
	ErrInternal = errors.New("internal error")
)
