package session

import (
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/mocks"
)

func TestGuard_Acquire(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().DoAndReturn(func() time.Time { return now }).AnyTimes()

	g := NewGuard(clock, map[Action]time.Duration{
		ActionGenerate: 600 * time.Millisecond,
		ActionMint:     800 * time.Millisecond,
	})

	release, err := g.Acquire(ActionMint)
	require.NoError(t, err)
	assert.True(t, g.Busy())

	_, err = g.Acquire(ActionMint)
	assert.ErrorIs(t, err, domain.ErrActionInProgress)

	// actions are independent
	releaseGenerate, err := g.Acquire(ActionGenerate)
	require.NoError(t, err)
	releaseGenerate()

	release()
	release()
	assert.False(t, g.Busy())

	now = now.Add(500 * time.Millisecond)
	_, err = g.Acquire(ActionMint)
	assert.ErrorIs(t, err, domain.ErrDebounced)

	// rejected clicks do not extend the window
	now = now.Add(300 * time.Millisecond)
	release, err = g.Acquire(ActionMint)
	require.NoError(t, err)
	release()
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		allowed  bool
	}{
		{StateLoading, StateEligible, true},
		{StateLoading, StateIneligible, true},
		{StateLoading, StateGenerated, true},
		{StateLoading, StateDone, true},
		{StateLoading, StateMinting, false},
		{StateEligible, StateGenerated, true},
		{StateEligible, StateMinting, false},
		{StateGenerated, StateMinting, true},
		{StateGenerated, StateEligible, false},
		{StateMinting, StateDone, true},
		{StateMinting, StateGenerated, true},
		{StateMinting, StateEligible, false},
		{StateDone, StateGenerated, false},
		{StateDone, StateMinting, false},
		{StateIneligible, StateEligible, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
			if tt.allowed {
				assert.NoError(t, transition(tt.from, tt.to))
			} else {
				assert.ErrorIs(t, transition(tt.from, tt.to), domain.ErrInvalidTransition)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	assert.Equal(t, float64(0), progress(0, 5*time.Second))
	assert.InDelta(t, 0.5, progress(2500*time.Millisecond, 5*time.Second), 0.0001)
	assert.Equal(t, float64(1), progress(10*time.Second, 5*time.Second))
	assert.Equal(t, float64(1), progress(time.Second, 0))
}
