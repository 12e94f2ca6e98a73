package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-minter/internal/adapter"
	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/generator"
	"github.com/feral-file/ff-minter/internal/identity"
	"github.com/feral-file/ff-minter/internal/logger"
	"github.com/feral-file/ff-minter/internal/metadata"
	"github.com/feral-file/ff-minter/internal/minting"
	"github.com/feral-file/ff-minter/internal/providers/ethereum"
	"github.com/feral-file/ff-minter/internal/store"
)

// ToastType is the severity of a notification
type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastInfo    ToastType = "info"
)

// Toast is the last transient notification of a session
type Toast struct {
	Type    ToastType `json:"type"`
	Message string    `json:"message"`
}

// Dependencies are the process-wide collaborators shared by every session
type Dependencies struct {
	Resolver     identity.Resolver
	Generator    generator.Engine
	Orchestrator minting.Orchestrator
	Store        store.Store
	Builder      *metadata.Builder
	Clock        adapter.Clock
}

// Config holds the session settings
type Config struct {
	TTL                 time.Duration
	GenerateDebounce    time.Duration
	MintDebounce        time.Duration
	MaxSupply           int
	MintedCountFallback int64
}

// Assignment is the public view of an assignment record
type Assignment struct {
	AssignedIndex int               `json:"assigned_index"`
	RarityTier    domain.RarityTier `json:"rarity_tier"`
	ImageURL      string            `json:"image_url"`
	Minted        bool              `json:"minted"`
}

// Snapshot is a consistent read of a session
type Snapshot struct {
	ID               string        `json:"id"`
	State            State         `json:"state"`
	Message          string        `json:"message"`
	Toast            *Toast        `json:"toast,omitempty"`
	Identity         string        `json:"identity,omitempty"`
	DisplayName      string        `json:"display_name,omitempty"`
	Assignment       *Assignment   `json:"assignment,omitempty"`
	Generating       bool          `json:"generating"`
	GenerateProgress float64       `json:"generate_progress"`
	MintPhase        minting.Phase `json:"mint_phase"`
	WalletAddress    string        `json:"wallet_address,omitempty"`
	MintedCount      int64         `json:"minted_count"`
	MaxSupply        int           `json:"max_supply"`
	TxHash           string        `json:"tx_hash,omitempty"`
	ContentURI       string        `json:"content_uri,omitempty"`
}

// Session is the controller of one user's eligibility, generation and mint flow
type Session struct {
	id     string
	deps   Dependencies
	config Config
	guard  *Guard

	mu                sync.RWMutex
	state             State
	message           string
	toast             *Toast
	identity          *domain.Identity
	record            *domain.AssignmentRecord
	wallet            ethereum.Wallet
	phase             minting.Phase
	generating        bool
	generateStartedAt time.Time
	mintedCount       int64
	tx                *domain.TxResult
	content           *domain.ContentReference
	unfinalized       bool
	lastActive        time.Time
}

// New creates a session in the loading state
func New(id string, deps Dependencies, config Config) *Session {
	return &Session{
		id:     id,
		deps:   deps,
		config: config,
		guard: NewGuard(deps.Clock, map[Action]time.Duration{
			ActionGenerate: config.GenerateDebounce,
			ActionMint:     config.MintDebounce,
		}),
		state:       StateLoading,
		phase:       minting.PhaseIdle,
		mintedCount: config.MintedCountFallback,
		lastActive:  deps.Clock.Now(),
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Bootstrap resolves the identity once and derives the initial state from the stored record.
// It never fails; an unresolved identity lands in the ineligible state.
func (s *Session) Bootstrap(ctx context.Context, creds identity.Credentials) {
	s.refreshMintedCount(ctx)

	id, err := s.deps.Resolver.Resolve(ctx, creds)
	if err != nil {
		message := MessageIneligible
		if creds.Token == "" {
			message = MessageOpenInHost
		}
		logger.InfoCtx(ctx, "Session is ineligible", zap.String("session_id", s.id), zap.Error(err))

		s.mu.Lock()
		defer s.mu.Unlock()
		s.setState(StateIneligible)
		s.message = message
		return
	}

	ctx = logger.WithSession(ctx, logger.SessionInfo{SessionID: s.id, Identity: id.ID})
	record, err := s.deps.Store.GetRecord(ctx, id.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id

	if err != nil {
		logger.ErrorCtx(ctx, err)
		s.setState(StateIneligible)
		s.message = MessageIneligible
		s.notify(ToastError, MessageIneligible)
		return
	}

	switch {
	case record == nil:
		s.setState(StateEligible)
		s.message = MessageEligible
	case record.Minted:
		s.record = record
		s.setState(StateDone)
		s.message = MessageAlreadyMinted
	default:
		s.record = record
		s.setState(StateGenerated)
		s.message = MessageReadyToMint
	}
}

// Generate assigns the collectible. Only allowed from the eligible state and once per session.
func (s *Session) Generate(ctx context.Context) error {
	release, err := s.guard.Acquire(ActionGenerate)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	if s.state == StateMinting {
		s.mu.Unlock()
		return domain.ErrActionInProgress
	}
	if s.record != nil {
		s.mu.Unlock()
		return domain.ErrAlreadyGenerated
	}
	if s.state != StateEligible {
		state, resolved := s.state, s.identity != nil
		s.mu.Unlock()
		if !resolved {
			return domain.NewError(domain.KindPrecondition, "generate", errors.New(ToastNoIdentity))
		}
		return transition(state, StateGenerated)
	}
	id := *s.identity
	s.generating = true
	s.generateStartedAt = s.deps.Clock.Now()
	s.message = MessageGenerating
	s.toast = nil
	s.mu.Unlock()
	defer s.recoverGenerate()

	ctx = logger.WithSession(ctx, logger.SessionInfo{SessionID: s.id, Identity: id.ID})
	record, err := s.deps.Generator.Generate(ctx, id.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false

	if err != nil {
		logger.ErrorCtx(ctx, err)
		s.message = MessageEligible
		s.notify(ToastError, ToastGenerateFailed)
		return err
	}

	s.record = record
	if record.Minted {
		s.setState(StateDone)
		s.message = MessageAlreadyMinted
		return nil
	}

	s.setState(StateGenerated)
	s.message = MessageReadyToMint
	s.notify(ToastSuccess, ToastGenerated)
	return nil
}

// recoverGenerate puts a panicking generate back to eligible and re-panics
func (s *Session) recoverGenerate() {
	r := recover()
	if r == nil {
		return
	}

	s.mu.Lock()
	if s.generating {
		s.generating = false
		s.message = MessageEligible
		s.notify(ToastError, ToastGenerateFailed)
	}
	s.mu.Unlock()
	panic(r)
}

// Mint runs one orchestration pass. Only allowed from the generated state.
func (s *Session) Mint(ctx context.Context) error {
	release, err := s.guard.Acquire(ActionMint)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	switch {
	case s.state == StateDone:
		s.mu.Unlock()
		return domain.NewError(domain.KindPrecondition, "mint", domain.ErrAlreadyMinted)
	case s.state == StateMinting:
		s.mu.Unlock()
		return domain.ErrActionInProgress
	case s.record == nil && s.identity != nil && s.state == StateEligible:
		s.notify(ToastError, ToastNoAssignment)
		s.mu.Unlock()
		return domain.NewError(domain.KindPrecondition, "mint", domain.ErrNoAssignment)
	case s.state != StateGenerated:
		state := s.state
		s.mu.Unlock()
		return transition(state, StateMinting)
	case s.unfinalized:
		s.mu.Unlock()
		return domain.NewError(domain.KindFinalization, "mint", domain.ErrFinalizationFailed)
	}
	s.setState(StateMinting)
	s.message = MessagePreparing
	s.toast = nil
	id := *s.identity
	wallet := s.wallet
	s.mu.Unlock()
	defer s.recoverMint()

	ctx = logger.WithSession(ctx, logger.SessionInfo{SessionID: s.id, Identity: id.ID})
	result, err := s.deps.Orchestrator.Mint(ctx, minting.Request{
		Identity: id,
		Wallet:   wallet,
		OnPhase:  s.onPhase,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = minting.PhaseIdle

	if err != nil {
		s.mintFailed(ctx, result, err)
		return err
	}

	switch result.Outcome {
	case minting.OutcomeWalletConnected:
		s.wallet = result.Wallet
		s.setState(StateGenerated)
		s.message = MessageConnected
		s.notify(ToastInfo, ToastWalletConnected)
	case minting.OutcomeMinted:
		s.record = result.Record
		s.tx = result.Tx
		s.content = result.Content
		s.phase = minting.PhaseMinted
		s.mintedCount++
		s.setState(StateDone)
		s.message = ToastMinted
		s.notify(ToastSuccess, ToastMinted)
	}
	return nil
}

// recoverMint puts a panicking mint pass back to generated and re-panics
func (s *Session) recoverMint() {
	r := recover()
	if r == nil {
		return
	}

	s.mu.Lock()
	if s.state == StateMinting {
		s.phase = minting.PhaseIdle
		s.setState(StateGenerated)
		s.message = MessageTryAgain
		s.notify(ToastError, MessageTryAgain)
	}
	s.mu.Unlock()
	panic(r)
}

// mintFailed returns the session to a usable state after a failed pass. Callers hold mu.
func (s *Session) mintFailed(ctx context.Context, result *minting.Result, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyMinted):
		if s.record != nil {
			s.record.Minted = true
		}
		s.setState(StateDone)
		s.message = MessageAlreadyMinted
		s.notify(ToastError, MessageAlreadyMinted)
	case errors.Is(err, domain.ErrNoAssignment):
		s.setState(StateGenerated)
		s.message = MessageTryAgain
		s.notify(ToastError, ToastNoAssignment)
	case domain.KindOf(err) == domain.KindFinalization:
		// the chain write went through, another pass would mint twice
		s.unfinalized = true
		if result != nil {
			s.tx = result.Tx
			s.content = result.Content
		}
		s.setState(StateGenerated)
		s.message = MessageFinalizeFailed
		s.notify(ToastError, err.Error())
	default:
		logger.WarnCtx(ctx, "Mint pass failed", zap.Error(err), zap.String("kind", string(domain.KindOf(err))))
		s.setState(StateGenerated)
		s.message = MessageTryAgain
		s.notify(ToastError, err.Error())
	}
}

// onPhase mirrors orchestrator progress into the status message
func (s *Session) onPhase(phase minting.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = phase
	switch phase {
	case minting.PhaseConnecting, minting.PhasePreflight:
		s.message = MessagePreparing
	case minting.PhasePublishing:
		s.message = MessageUploading
	case minting.PhaseSubmitting:
		s.message = MessageMintingOnChain
	case minting.PhaseFinalizing:
		s.message = MessageFinalizing
	}
}

// Snapshot returns a consistent copy of the session
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:          s.id,
		State:       s.state,
		Message:     s.message,
		Generating:  s.generating,
		MintPhase:   s.phase,
		MintedCount: s.mintedCount,
		MaxSupply:   s.config.MaxSupply,
	}
	if s.toast != nil {
		toast := *s.toast
		snap.Toast = &toast
	}
	if s.identity != nil {
		snap.Identity = s.identity.ID
		snap.DisplayName = s.identity.DisplayName
	}
	if s.record != nil {
		snap.Assignment = &Assignment{
			AssignedIndex: s.record.AssignedIndex,
			RarityTier:    s.record.RarityTier,
			Minted:        s.record.Minted,
		}
		if s.deps.Builder != nil {
			snap.Assignment.ImageURL = s.deps.Builder.ImageURL(s.record.AssignedIndex)
		}
		snap.GenerateProgress = 1
	}
	if s.generating {
		snap.GenerateProgress = progress(s.deps.Clock.Since(s.generateStartedAt), s.deps.Generator.Delay())
	}
	if s.wallet != nil {
		snap.WalletAddress = s.wallet.Address()
	}
	if s.tx != nil {
		snap.TxHash = s.tx.TxHash
	}
	if s.content != nil {
		snap.ContentURI = s.content.URI
	}
	return snap
}

// Busy reports whether an action is in flight
func (s *Session) Busy() bool {
	return s.guard.Busy()
}

// Touch records activity for idle eviction
func (s *Session) Touch() {
	now := s.deps.Clock.Now()
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

// idleSince returns when the session was last used
func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// refreshMintedCount loads the advisory count, keeping the placeholder on failure
func (s *Session) refreshMintedCount(ctx context.Context) {
	count, err := s.deps.Store.CountMinted(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to count minted records, using placeholder",
			zap.Error(err),
			zap.Int64("fallback", s.config.MintedCountFallback))
		return
	}

	s.mu.Lock()
	s.mintedCount = count
	s.mu.Unlock()
}

// setState moves the machine, callers hold mu. Disallowed moves are programming errors
// and are logged without changing the state.
func (s *Session) setState(to State) {
	if err := transition(s.state, to); err != nil {
		logger.Error(err, zap.String("session_id", s.id))
		return
	}
	s.state = to
}

func (s *Session) notify(t ToastType, message string) {
	s.toast = &Toast{Type: t, Message: message}
}

func progress(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	p := float64(elapsed) / float64(total)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}
