package minting

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/feral-file/ff-minter/internal/adapter"
	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/logger"
	"github.com/feral-file/ff-minter/internal/messaging"
	"github.com/feral-file/ff-minter/internal/metadata"
	"github.com/feral-file/ff-minter/internal/providers/ethereum"
	"github.com/feral-file/ff-minter/internal/store"
)

// Phase is the step a mint pass is currently in
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhasePreflight  Phase = "preflight"
	PhasePublishing Phase = "publishing"
	PhaseSubmitting Phase = "submitting"
	PhaseFinalizing Phase = "finalizing"
	PhaseMinted     Phase = "minted"
)

// Outcome is how a successful mint pass ended
type Outcome string

const (
	// OutcomeWalletConnected means the pass only connected the wallet; mint must be invoked again
	OutcomeWalletConnected Outcome = "wallet_connected"
	// OutcomeMinted means the chain write and the record update both succeeded
	OutcomeMinted Outcome = "minted"
)

// Request is the input of a mint pass
type Request struct {
	Identity domain.Identity
	// Wallet is the session's connected wallet, nil when not connected yet
	Wallet ethereum.Wallet
	// OnPhase is called on every phase change, may be nil
	OnPhase func(Phase)
}

// Result is the output of a mint pass
type Result struct {
	Outcome  Outcome
	Wallet   ethereum.Wallet
	Record   *domain.AssignmentRecord
	Metadata *domain.TokenMetadata
	Content  *domain.ContentReference
	Tx       *domain.TxResult
}

// Config holds the mint settings
type Config struct {
	// MintPrice is the value attached to the mint call, in wei
	MintPrice *big.Int
}

// Orchestrator runs one mint pass for an identity
//
//go:generate mockgen -source=orchestrator.go -destination=../mocks/orchestrator.go -package=mocks -mock_names=Orchestrator=MockOrchestrator
type Orchestrator interface {
	// Mint runs preconditions, wallet connection, fee preflight, metadata publication,
	// chain submission and finalization in that order. On finalization failure the
	// returned Result still carries the transaction.
	Mint(ctx context.Context, req Request) (*Result, error)
}

type orchestrator struct {
	config    Config
	store     store.Store
	connector ethereum.Connector
	builder   *metadata.Builder
	publisher metadata.Publisher
	events    messaging.Publisher
	clock     adapter.Clock
}

// NewOrchestrator creates a mint orchestrator
func NewOrchestrator(
	config Config,
	st store.Store,
	connector ethereum.Connector,
	builder *metadata.Builder,
	publisher metadata.Publisher,
	events messaging.Publisher,
	clock adapter.Clock,
) (Orchestrator, error) {
	if config.MintPrice == nil || config.MintPrice.Sign() < 0 {
		return nil, domain.NewError(domain.KindConfiguration, "minting", errors.New("mint price not configured"))
	}

	return &orchestrator{
		config:    config,
		store:     st,
		connector: connector,
		builder:   builder,
		publisher: publisher,
		events:    events,
		clock:     clock,
	}, nil
}

// Mint runs a single mint pass
func (o *orchestrator) Mint(ctx context.Context, req Request) (result *Result, err error) {
	phase := func(p Phase) {
		if req.OnPhase != nil {
			req.OnPhase(p)
		}
	}
	defer func() {
		if err != nil {
			phase(PhaseIdle)
		}
	}()

	identity := req.Identity

	// 1. Preconditions, before any wallet or network call
	record, err := o.store.GetRecord(ctx, identity.ID)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, "mint", err)
	}
	if record == nil {
		return nil, domain.NewError(domain.KindPrecondition, "mint", domain.ErrNoAssignment)
	}
	if record.Minted {
		return nil, domain.NewError(domain.KindPrecondition, "mint", domain.ErrAlreadyMinted)
	}

	fid, err := identity.Numeric()
	if err != nil {
		return nil, domain.NewError(domain.KindPrecondition, "mint", err)
	}

	// 2. Wallet connection stops the pass
	wallet := req.Wallet
	if wallet == nil {
		phase(PhaseConnecting)
		if o.connector == nil {
			return nil, domain.NewError(domain.KindConfiguration, "mint", domain.ErrNoWalletConnector)
		}

		wallet, err = o.connector.Connect(ctx)
		if err != nil {
			return nil, err
		}

		logger.InfoCtx(ctx, "Wallet connected", zap.String("address", wallet.Address()))
		phase(PhaseIdle)
		return &Result{Outcome: OutcomeWalletConnected, Wallet: wallet, Record: record}, nil
	}

	// 3. Fee preflight
	phase(PhasePreflight)
	balance, err := wallet.Balance(ctx)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(o.config.MintPrice) < 0 {
		logger.InfoCtx(ctx, "Insufficient balance for mint",
			zap.String("balance", balance.String()),
			zap.String("price", o.config.MintPrice.String()))
		return nil, domain.NewError(domain.KindPrecondition, "mint", domain.ErrInsufficientBalance)
	}

	// 4. Metadata publication
	phase(PhasePublishing)
	doc := o.builder.Build(identity, record)
	content, err := o.publisher.Publish(ctx, doc)
	if err != nil {
		return nil, err
	}

	// 5. Chain submission
	phase(PhaseSubmitting)
	tx, err := wallet.MintTo(ctx, fid, content.URI, o.config.MintPrice)
	if err != nil {
		return nil, err
	}

	result = &Result{
		Wallet:   wallet,
		Record:   record,
		Metadata: &doc,
		Content:  content,
		Tx:       tx,
	}

	// 6. Finalization, only after a successful receipt
	phase(PhaseFinalizing)
	if err := o.store.MarkMinted(ctx, store.MarkMintedInput{Identity: identity.ID, Metadata: doc}); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("mint finalization failed: %w", err),
			zap.String("identity", identity.ID),
			zap.String("txHash", tx.TxHash),
			zap.String("contentURI", content.URI))
		o.publish(ctx, domain.EventFinalizationFailed, record, content, tx, err)

		return result, domain.NewError(domain.KindFinalization, "mint", fmt.Errorf("%w: %v", domain.ErrFinalizationFailed, err))
	}

	now := o.clock.Now()
	record.Minted = true
	record.MintedMetadata = &doc
	record.MintedAt = &now
	result.Outcome = OutcomeMinted

	logger.InfoCtx(ctx, "Mint completed",
		zap.String("identity", identity.ID),
		zap.String("txHash", tx.TxHash),
		zap.String("contentURI", content.URI))
	o.publish(ctx, domain.EventMinted, record, content, tx, nil)

	phase(PhaseMinted)
	return result, nil
}

// publish sends a lifecycle event; failures are logged and never change the outcome
func (o *orchestrator) publish(ctx context.Context, eventType domain.EventType, record *domain.AssignmentRecord, content *domain.ContentReference, tx *domain.TxResult, cause error) {
	if o.events == nil {
		return
	}

	event := &domain.LifecycleEvent{
		Type:          eventType,
		Identity:      record.Identity,
		AssignedIndex: record.AssignedIndex,
		RarityTier:    record.RarityTier,
		Timestamp:     o.clock.Now(),
	}
	if content != nil {
		event.ContentURI = content.URI
	}
	if tx != nil {
		event.TxHash = tx.TxHash
		event.BlockNumber = tx.BlockNumber
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	if err := o.events.PublishEvent(ctx, event); err != nil {
		logger.WarnCtx(ctx, "Failed to publish lifecycle event",
			zap.Error(err),
			zap.String("type", string(eventType)),
			zap.String("identity", record.Identity))
	}
}
