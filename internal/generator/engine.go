package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-minter/internal/adapter"
	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/logger"
	"github.com/feral-file/ff-minter/internal/messaging"
	"github.com/feral-file/ff-minter/internal/store"
)

// Config holds the generation settings
type Config struct {
	// PoolSize is the number of collectibles indices are drawn from
	PoolSize int
	// Delay is the cosmetic minimum duration of a fresh generation
	Delay time.Duration
}

// Engine assigns a collectible to an identity exactly once
//
//go:generate mockgen -source=engine.go -destination=../mocks/generator.go -package=mocks -mock_names=Engine=MockGenerator
type Engine interface {
	// Generate returns the identity's assignment, creating it when none exists.
	// Repeated and concurrent calls return the same record.
	Generate(ctx context.Context, identity string) (*domain.AssignmentRecord, error)
	// Delay returns the cosmetic duration of a fresh generation
	Delay() time.Duration
}

type engine struct {
	config Config
	store  store.Store
	random adapter.Random
	clock  adapter.Clock
	events messaging.Publisher
}

// NewEngine creates a generation engine
func NewEngine(config Config, st store.Store, random adapter.Random, clock adapter.Clock, events messaging.Publisher) (Engine, error) {
	if config.PoolSize <= 0 {
		return nil, domain.NewError(domain.KindConfiguration, "generator", errors.New("pool size must be positive"))
	}

	return &engine{
		config: config,
		store:  st,
		random: random,
		clock:  clock,
		events: events,
	}, nil
}

func (e *engine) Delay() time.Duration {
	return e.config.Delay
}

// Generate returns the existing record or draws, waits and inserts a new one
func (e *engine) Generate(ctx context.Context, identity string) (*domain.AssignmentRecord, error) {
	existing, err := e.store.GetRecord(ctx, identity)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, "generate", err)
	}
	if existing != nil {
		logger.InfoCtx(ctx, "Assignment already exists, returning it",
			zap.String("identity", identity),
			zap.Int("assignedIndex", existing.AssignedIndex))
		return existing, nil
	}

	index, err := e.random.IntN(e.config.PoolSize)
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, "generate", fmt.Errorf("failed to draw index: %w", err))
	}
	tier := domain.RarityByRank(index)

	if e.config.Delay > 0 {
		select {
		case <-e.clock.After(e.config.Delay):
		case <-ctx.Done():
			return nil, domain.NewError(domain.KindTransport, "generate", ctx.Err())
		}
	}

	record, inserted, err := e.store.InsertRecord(ctx, store.InsertRecordInput{
		Identity:      identity,
		AssignedIndex: index,
		RarityTier:    tier,
	})
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, "generate", err)
	}

	if inserted {
		logger.InfoCtx(ctx, "Assignment generated",
			zap.String("identity", identity),
			zap.Int("assignedIndex", record.AssignedIndex),
			zap.String("rarityTier", string(record.RarityTier)))
		e.publishGenerated(ctx, record)
	} else {
		logger.InfoCtx(ctx, "Concurrent generation won, returning stored assignment",
			zap.String("identity", identity),
			zap.Int("assignedIndex", record.AssignedIndex))
	}

	return record, nil
}

func (e *engine) publishGenerated(ctx context.Context, record *domain.AssignmentRecord) {
	if e.events == nil {
		return
	}

	err := e.events.PublishEvent(ctx, &domain.LifecycleEvent{
		Type:          domain.EventGenerated,
		Identity:      record.Identity,
		AssignedIndex: record.AssignedIndex,
		RarityTier:    record.RarityTier,
		Timestamp:     e.clock.Now(),
	})
	if err != nil {
		logger.WarnCtx(ctx, "Failed to publish generated event", zap.Error(err), zap.String("identity", record.Identity))
	}
}
