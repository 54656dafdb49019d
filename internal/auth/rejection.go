package auth

import (
	"fmt"

	apperrors "campusmarket/internal/errors"
)

// RejectionKind classifies why a bearer token was refused. It is logged and
// counted but never sent to the client.
type RejectionKind int

const (
	RejectMissing RejectionKind = iota + 1
	RejectInvalidSignature
	RejectExpired
)

func (k RejectionKind) String() string {
	switch k {
	case RejectMissing:
		return "missing"
	case RejectInvalidSignature:
		return "invalid_signature"
	case RejectExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// RejectedError is returned by Verify. It matches apperrors.ErrUnauthorized
// under errors.Is.
type RejectedError struct {
	Kind RejectionKind
	Err  error
}

func reject(kind RejectionKind, err error) *RejectedError {
	return &RejectedError{Kind: kind, Err: err}
}

func (e *RejectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token rejected (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("token rejected (%s)", e.Kind)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// Is makes every rejection an ErrUnauthorized.
func (e *RejectedError) Is(target error) bool {
	return target == apperrors.ErrUnauthorized
}
