package messaging

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrStore        = errors.New("store_failure")
)

// ValidationError reports bad caller input for a specific logical field.
// Field should be a stable logical name: "body", "name", "members", "sender", ...
type ValidationError struct {
	Op    string
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, ErrInvalidInput, e.Msg)
	}
	return fmt.Sprintf("%s: %v: %s: %s", e.Op, ErrInvalidInput, e.Field, e.Msg)
}

func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// NotFoundError reports a missing referenced resource (conversation, user, message).
type NotFoundError struct {
	Op       string
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, ErrNotFound, e.Resource)
	}
	return fmt.Sprintf("%s: %v: %s %q", e.Op, ErrNotFound, e.Resource, e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// StoreError wraps an infrastructure failure from the durable store.
// The core performs no retries; retry policy belongs to the store adapter.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStore, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

func (e StoreError) Is(target error) bool { return target == ErrStore }

// IsValidation reports whether err represents ErrInvalidInput.
func IsValidation(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsNotFound reports whether err represents ErrNotFound (including NotFoundError).
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsStore reports whether err represents ErrStore.
func IsStore(err error) bool { return errors.Is(err, ErrStore) }
