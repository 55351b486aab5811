package apperr

import (
	"fmt"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	err := NotFound("Order", "42")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, "Order ID: 42, not found.", err.Error())
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("getting user: %w", Invalid("discount must be between %d and %d", 0, 100))

	assert.Equal(t, KindInvalidRequest, KindOf(err))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestBoundary(t *testing.T) {
	cause := errors.New("connection reset by peer")

	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "not found passes through",
			err:      NotFound("Detail", "7"),
			wantKind: KindNotFound,
			wantMsg:  "Detail ID: 7, not found.",
		},
		{
			name:     "invalid passes through",
			err:      Invalid("insufficient stock"),
			wantKind: KindInvalidRequest,
			wantMsg:  "insufficient stock",
		},
		{
			name:     "conflict passes through",
			err:      Conflict("duplicate detail", cause),
			wantKind: KindConflict,
			wantMsg:  "duplicate detail",
		},
		{
			name:     "unclassified is wrapped",
			err:      cause,
			wantKind: KindOperationFailed,
			wantMsg:  "failed to update order detail 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Boundary(tt.err, "failed to update order detail 7")
			require.Error(t, got)
			assert.Equal(t, tt.wantKind, KindOf(got))
			assert.Equal(t, tt.wantMsg, got.Error())
		})
	}
}

func TestBoundary_KeepsCauseForLogs(t *testing.T) {
	cause := errors.New("tx aborted")

	got := Boundary(cause, "failed to process order")

	assert.ErrorIs(t, got, cause)
	assert.ErrorIs(t, got, ErrOperationFailed)
	assert.NotContains(t, got.Error(), "tx aborted")
	assert.NoError(t, Boundary(nil, "unused"))
}
