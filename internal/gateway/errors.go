package gateway

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrAuthRequired means there is no session, or the backend rejected it.
	ErrAuthRequired = errors.New("authentication required")
	// ErrNotFound means the requested row does not exist (or is not the caller's).
	ErrNotFound = errors.New("not found")
	// ErrValidation means the input was rejected, client or server side.
	ErrValidation = errors.New("invalid input")
	// ErrAlreadyDecided means a decision for the companion already exists.
	ErrAlreadyDecided = errors.New("decision already recorded")
	// ErrNoActiveMatch means a conversation needs a match first.
	ErrNoActiveMatch = errors.New("no active match")
	// ErrBusy means an identical request is being processed.
	ErrBusy = errors.New("request already in progress")
	// ErrUnavailable is a transient network or backend failure.
	ErrUnavailable = errors.New("service unavailable")
)

// FromStatus translates a gRPC error into the client error taxonomy.
// The server's message is kept in the wrapped error text.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var target error
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		target = ErrAuthRequired
	case codes.NotFound:
		target = ErrNotFound
	case codes.InvalidArgument, codes.OutOfRange:
		target = ErrValidation
	case codes.AlreadyExists:
		target = ErrAlreadyDecided
	case codes.FailedPrecondition:
		target = ErrNoActiveMatch
	case codes.Aborted:
		target = ErrBusy
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		target = ErrUnavailable
	}
	return fmt.Errorf("%w: %s", target, st.Message())
}

// IsTransient reports whether retrying later may succeed.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrBusy)
}
