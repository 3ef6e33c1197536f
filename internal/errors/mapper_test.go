package errors_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/companion/internal/errors"
)

func TestMap(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"not found", fmt.Errorf("load profile: %w", gorm.ErrRecordNotFound), codes.NotFound},
		{"duplicate key", gorm.ErrDuplicatedKey, codes.AlreadyExists},
		{"already decided", svcErr.ErrAlreadyDecided, codes.AlreadyExists},
		{"validation", svcErr.Invalid("content must not be empty"), codes.InvalidArgument},
		{"unauthenticated", svcErr.ErrUnauthenticated, codes.Unauthenticated},
		{"no match", svcErr.ErrNoActiveMatch, codes.FailedPrecondition},
		{"busy", svcErr.ErrBusy, codes.Aborted},
		{"page token", svcErr.ErrInvalidPageToken, codes.InvalidArgument},
		{"breaker open", fmt.Errorf("upload: %w", gobreaker.ErrOpenState), codes.Unavailable},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"canceled", context.Canceled, codes.Canceled},
		{"other", fmt.Errorf("boom"), codes.Internal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, status.Code(svcErr.Map(tc.err)))
		})
	}
}

func TestMap_PassesThroughStatusAndNil(t *testing.T) {
	assert.NoError(t, svcErr.Map(nil))

	in := status.Error(codes.PermissionDenied, "nope")
	assert.Equal(t, in, svcErr.Map(in))
}

func TestMap_ValidationMessage(t *testing.T) {
	st, _ := status.FromError(svcErr.Map(svcErr.Invalid("file too large")))
	assert.Equal(t, "file too large", st.Message())
}
