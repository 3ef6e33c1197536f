// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Domain errors raised by repositories and services.
var (
	// ErrUnauthenticated means the call carried no valid identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrAlreadyDecided means the user already swiped on the companion.
	ErrAlreadyDecided = errors.New("decision already recorded")
	// ErrNoActiveMatch means a conversation was requested without a match.
	ErrNoActiveMatch = errors.New("no active match with companion")
	// ErrBusy means a concurrent request holds the same resource.
	ErrBusy = errors.New("request already in progress")
	// ErrInvalidPageToken means the pagination token could not be decoded.
	ErrInvalidPageToken = errors.New("invalid pagination token")
)

// ValidationError carries a client-facing description of a rejected input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid builds a ValidationError.
func Invalid(msg string) error { return &ValidationError{Msg: msg} }

// Map converts repo/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return status.Error(codes.InvalidArgument, vErr.Msg)

	case errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, ErrAlreadyDecided), errors.Is(err, gorm.ErrDuplicatedKey):
		return status.Error(codes.AlreadyExists, ErrAlreadyDecided.Error())

	case errors.Is(err, ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())

	case errors.Is(err, ErrNoActiveMatch):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, ErrBusy):
		return status.Error(codes.Aborted, err.Error())

	case errors.Is(err, ErrInvalidPageToken):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return status.Error(codes.Unavailable, "dependency temporarily unavailable")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		// fallback → bubble up error message for debugging
		return status.Error(codes.Internal, err.Error())
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

// Unauthenticated creates a gRPC Unauthenticated error.
func Unauthenticated(msg string) error {
	return status.Error(codes.Unauthenticated, msg)
}
