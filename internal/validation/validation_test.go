package validation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/companion/internal/api"
	svcErr "github.com/oggyb/companion/internal/errors"
	"github.com/oggyb/companion/internal/validation"
)

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		wantErr string
	}{
		{
			name: "valid swipe",
			in:   &api.RecordSwipeRequest{CompanionID: "c1", Decision: api.DecisionSuperLike},
		},
		{
			name:    "unknown decision",
			in:      &api.RecordSwipeRequest{CompanionID: "c1", Decision: "maybe"},
			wantErr: "decision must be one of: like pass super_like",
		},
		{
			name:    "missing companion",
			in:      &api.RecordSwipeRequest{Decision: api.DecisionLike},
			wantErr: "companion_id is required",
		},
		{
			name:    "inverted age range",
			in:      &api.Preferences{AgeRangeMin: 40, AgeRangeMax: 30},
			wantErr: "age_range_max must not be less than age_range_min",
		},
		{
			name:    "age below floor",
			in:      &api.Preferences{AgeRangeMin: 16, AgeRangeMax: 30},
			wantErr: "age_range_min must be at least 18",
		},
		{
			name:    "bad email",
			in:      &api.SignInRequest{Email: "nope", Password: "x"},
			wantErr: "email must be a valid email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.ValidateStruct(tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var vErr *svcErr.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
