package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerCall struct {
	op       string
	id       string
	quantity int
}

type recordingLedger struct {
	calls []ledgerCall
	fail  map[string]error
}

func (l *recordingLedger) Reserve(_ context.Context, id string, quantity int) error {
	l.calls = append(l.calls, ledgerCall{"reserve", id, quantity})
	return l.fail[id]
}

func (l *recordingLedger) Release(_ context.Context, id string, quantity int) error {
	l.calls = append(l.calls, ledgerCall{"release", id, quantity})
	return l.fail[id]
}

func TestSwapStock_LocksInIDOrder(t *testing.T) {
	tests := []struct {
		name  string
		oldID string
		newID string
		want  []ledgerCall
	}{
		{
			name:  "old first",
			oldID: "a",
			newID: "b",
			want:  []ledgerCall{{"release", "a", 2}, {"reserve", "b", 3}},
		},
		{
			name:  "new first",
			oldID: "b",
			newID: "a",
			want:  []ledgerCall{{"reserve", "a", 3}, {"release", "b", 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &recordingLedger{}
			require.NoError(t, swapStock(context.Background(), l, tt.oldID, 2, tt.newID, 3))
			assert.Equal(t, tt.want, l.calls)
		})
	}
}

func TestSwapStock_StopsOnFirstError(t *testing.T) {
	errNoStock := errors.New("no stock")
	l := &recordingLedger{fail: map[string]error{"a": errNoStock}}

	err := swapStock(context.Background(), l, "b", 1, "a", 1)

	require.ErrorIs(t, err, errNoStock)
	assert.Equal(t, []ledgerCall{{"reserve", "a", 1}}, l.calls)
}
