package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrTerminalState       = errors.New("generation already in a terminal state")
	ErrEmptyCatalog        = errors.New("reference catalog is empty")
)

// ValidationError rejects a request before any work or debit happens.
// Records failed this way are never refunded because nothing was charged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
