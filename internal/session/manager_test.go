package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/identity"
	"github.com/feral-file/ff-minter/internal/minting"
	"github.com/feral-file/ff-minter/internal/session"
)

func TestManager_CreateAndGet(t *testing.T) {
	tm := setupTestSession(t)
	defer tm.ctrl.Finish()

	tm.store.EXPECT().CountMinted(gomock.Any()).Return(int64(3), nil)
	tm.resolver.EXPECT().Resolve(gomock.Any(), creds).Return(alice, nil)
	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(nil, nil)

	m := session.NewManager(tm.deps, tm.config)
	s := m.Create(context.Background(), creds)
	require.NotEmpty(t, s.ID())
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, session.StateEligible, got.Snapshot().State)

	_, err = m.Get("unknown")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_Sweep(t *testing.T) {
	tm := setupTestSession(t)
	defer tm.ctrl.Finish()

	tm.store.EXPECT().CountMinted(gomock.Any()).Return(int64(0), nil).Times(3)
	tm.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(nil, domain.ErrIneligible).Times(2)
	tm.resolver.EXPECT().Resolve(gomock.Any(), creds).Return(alice, nil)
	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(generatedRecord(), nil)

	m := session.NewManager(tm.deps, tm.config)
	idle := m.Create(context.Background(), identity.Credentials{})
	active := m.Create(context.Background(), identity.Credentials{})

	// a mint pass that outlives the TTL keeps its session alive
	busy := m.Create(context.Background(), creds)
	started := make(chan struct{})
	finish := make(chan struct{})
	tm.orchestrator.EXPECT().Mint(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, minting.Request) (*minting.Result, error) {
			close(started)
			<-finish
			return nil, domain.ErrTransactionReverted
		})
	done := make(chan error, 1)
	go func() { done <- busy.Mint(context.Background()) }()
	<-started

	tm.manual.Advance(20 * time.Minute)
	_, err := m.Get(active.ID())
	require.NoError(t, err)

	tm.manual.Advance(15 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 2, m.Len())

	_, err = m.Get(idle.ID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = m.Get(busy.ID())
	assert.NoError(t, err)

	close(finish)
	assert.Error(t, <-done)
}

func TestManager_Run_StopsOnCancel(t *testing.T) {
	tm := setupTestSession(t)
	defer tm.ctrl.Finish()

	m := session.NewManager(tm.deps, tm.config)

	ctx, cancel := context.WithCancel(context.Background())
	tick := make(chan time.Time)
	tm.clock.EXPECT().After(time.Minute).Return(tick).AnyTimes()

	stopped := make(chan struct{})
	go func() {
		m.Run(ctx, 0)
		close(stopped)
	}()

	tick <- time.Now()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
