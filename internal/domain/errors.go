package domain

import "errors"

var (
	ErrInvalidCandidate = errors.New("invalid donation candidate")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrQueueClosed      = errors.New("dispatch queue closed")
)
