package generator_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/generator"
	"github.com/feral-file/ff-minter/internal/logger"
	"github.com/feral-file/ff-minter/internal/mocks"
	"github.com/feral-file/ff-minter/internal/store"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

type testEngineMocks struct {
	ctrl   *gomock.Controller
	store  *mocks.MockStore
	random *mocks.MockRandom
	clock  *mocks.MockClock
	events *mocks.MockPublisher
	engine generator.Engine
}

func setupTestEngine(t *testing.T, cfg generator.Config) *testEngineMocks {
	ctrl := gomock.NewController(t)

	tm := &testEngineMocks{
		ctrl:   ctrl,
		store:  mocks.NewMockStore(ctrl),
		random: mocks.NewMockRandom(ctrl),
		clock:  mocks.NewMockClock(ctrl),
		events: mocks.NewMockPublisher(ctrl),
	}

	engine, err := generator.NewEngine(cfg, tm.store, tm.random, tm.clock, tm.events)
	require.NoError(t, err)
	tm.engine = engine

	return tm
}

func firedAfter() <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func TestNewEngine_InvalidPoolSize(t *testing.T) {
	_, err := generator.NewEngine(generator.Config{PoolSize: 0}, nil, nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestEngine_Generate_Fresh(t *testing.T) {
	tm := setupTestEngine(t, generator.Config{PoolSize: 3000, Delay: 5 * time.Second})
	defer tm.ctrl.Finish()

	gomock.InOrder(
		tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(nil, nil),
		tm.random.EXPECT().IntN(3000).Return(1500, nil),
		tm.clock.EXPECT().After(5*time.Second).Return(firedAfter()),
		tm.store.EXPECT().
			InsertRecord(gomock.Any(), store.InsertRecordInput{
				Identity:      "123",
				AssignedIndex: 1500,
				RarityTier:    domain.RarityYellow,
			}).
			Return(&domain.AssignmentRecord{Identity: "123", AssignedIndex: 1500, RarityTier: domain.RarityYellow}, true, nil),
		tm.clock.EXPECT().Now().Return(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		tm.events.EXPECT().
			PublishEvent(gomock.Any(), &domain.LifecycleEvent{
				Type:          domain.EventGenerated,
				Identity:      "123",
				AssignedIndex: 1500,
				RarityTier:    domain.RarityYellow,
				Timestamp:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			}).
			Return(nil),
	)

	record, err := tm.engine.Generate(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, 1500, record.AssignedIndex)
	assert.Equal(t, domain.RarityYellow, record.RarityTier)
	assert.False(t, record.Minted)
}

func TestEngine_Generate_ExistingRecordIsReturnedUnchanged(t *testing.T) {
	tm := setupTestEngine(t, generator.Config{PoolSize: 1, Delay: 5 * time.Second})
	defer tm.ctrl.Finish()

	existing := &domain.AssignmentRecord{Identity: "123", AssignedIndex: 0, RarityTier: domain.RarityPurple, Minted: true}

	// No draw, no delay, no insert
	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(existing, nil).Times(2)

	first, err := tm.engine.Generate(context.Background(), "123")
	require.NoError(t, err)
	second, err := tm.engine.Generate(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, existing, first)
	assert.Equal(t, first, second)
}

func TestEngine_Generate_ConflictReturnsStoredRecord(t *testing.T) {
	tm := setupTestEngine(t, generator.Config{PoolSize: 4000})
	defer tm.ctrl.Finish()

	stored := &domain.AssignmentRecord{Identity: "123", AssignedIndex: 10, RarityTier: domain.RarityPurple}

	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(nil, nil)
	tm.random.EXPECT().IntN(4000).Return(3500, nil)
	tm.store.EXPECT().InsertRecord(gomock.Any(), gomock.Any()).Return(stored, false, nil)
	// The losing side publishes nothing

	record, err := tm.engine.Generate(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, 10, record.AssignedIndex)
	assert.Equal(t, domain.RarityPurple, record.RarityTier)
}

func TestEngine_Generate_TierFollowsIndex(t *testing.T) {
	tests := []struct {
		index int
		tier  domain.RarityTier
	}{
		{0, domain.RarityPurple},
		{1000, domain.RarityYellow},
		{2999, domain.RarityBlue},
		{3000, domain.RarityGreen},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			tm := setupTestEngine(t, generator.Config{PoolSize: 5000})
			defer tm.ctrl.Finish()

			tm.store.EXPECT().GetRecord(gomock.Any(), "7").Return(nil, nil)
			tm.random.EXPECT().IntN(5000).Return(tt.index, nil)
			tm.store.EXPECT().
				InsertRecord(gomock.Any(), store.InsertRecordInput{Identity: "7", AssignedIndex: tt.index, RarityTier: tt.tier}).
				Return(&domain.AssignmentRecord{Identity: "7", AssignedIndex: tt.index, RarityTier: tt.tier}, true, nil)
			tm.clock.EXPECT().Now().Return(time.Now())
			// A failed event publish never fails generation
			tm.events.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(errors.New("nats down"))

			record, err := tm.engine.Generate(context.Background(), "7")
			require.NoError(t, err)
			assert.Equal(t, tt.tier, record.RarityTier)
		})
	}
}

func TestEngine_Generate_StoreFailure(t *testing.T) {
	tm := setupTestEngine(t, generator.Config{PoolSize: 1})
	defer tm.ctrl.Finish()

	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(nil, errors.New("connection reset"))

	_, err := tm.engine.Generate(context.Background(), "123")
	require.Error(t, err)
	assert.Equal(t, domain.KindTransport, domain.KindOf(err))
}

func TestEngine_Generate_CancelledDuringDelay(t *testing.T) {
	tm := setupTestEngine(t, generator.Config{PoolSize: 1, Delay: time.Minute})
	defer tm.ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(nil, nil)
	tm.random.EXPECT().IntN(1).Return(0, nil)
	tm.clock.EXPECT().After(time.Minute).Return(make(chan time.Time))

	_, err := tm.engine.Generate(ctx, "123")
	assert.ErrorIs(t, err, context.Canceled)
}
