package domain

import (
	"errors"
	"fmt"
)

// Kind failure category surfaced to callers
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConcurrency  Kind = "concurrency"
	KindPersistence  Kind = "persistence"
	KindLogicalState Kind = "logical_state"
	KindNotFound     Kind = "not_found"
)

// Error categorized failure of one operation
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func NewValidationError(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func NewLogicalStateError(op, msg string) error {
	return &Error{Kind: KindLogicalState, Op: op, Message: msg}
}

func NewNotFoundError(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg}
}

func NewConcurrencyError(op string, err error) error {
	return &Error{Kind: KindConcurrency, Op: op, Message: "conflicting update, retry", Err: err}
}

func NewPersistenceError(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// KindOf returns the category of err; uncategorized errors count as persistence failures
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindPersistence
}

// IsRetryable only concurrency failures may be retried as-is
func IsRetryable(err error) bool {
	return KindOf(err) == KindConcurrency
}
