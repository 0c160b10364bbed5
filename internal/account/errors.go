package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/profilehub/internal/identity"
)

var (
	ErrUnableToRegister = errors.New("unable to register")
	ErrEmailRequired    = errors.New("email is required")
)

// ValidationError is returned for input the caller can correct. Fields holds
// per-field rule failures, Identity the reasons the identity service refused.
type ValidationError struct {
	Fields   []FieldError
	Identity []identity.Error
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields)+len(e.Identity))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	for _, ie := range e.Identity {
		parts = append(parts, ie.Code)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasCode reports whether the identity service refused with code.
func (e *ValidationError) HasCode(code string) bool {
	for _, ie := range e.Identity {
		if ie.Code == code {
			return true
		}
	}
	return false
}

// Messages flattens the identity reasons for display.
func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Identity))
	for _, ie := range e.Identity {
		out = append(out, ie.Description)
	}
	return out
}

// StorageError wraps a database or filesystem fault. Transient is set when
// the call ran out of time or was cancelled.
type StorageError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StorageError) Error() string {
	if e.Transient {
		return fmt.Sprintf("%s: transient storage failure: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageError(op string, err error) *StorageError {
	return &StorageError{
		Op:        op,
		Err:       err,
		Transient: errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled),
	}
}

// PartialRegistrationError means the identity exists but a later step
// failed. Nothing is rolled back; State is the last step that completed.
type PartialRegistrationError struct {
	State  State
	UserID string
	Err    error
}

func (e *PartialRegistrationError) Error() string {
	return fmt.Sprintf("registration of user %s stopped after %s: %v", e.UserID, e.State, e.Err)
}

func (e *PartialRegistrationError) Unwrap() []error {
	return []error{ErrUnableToRegister, e.Err}
}
