package minting_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/logger"
	"github.com/feral-file/ff-minter/internal/metadata"
	"github.com/feral-file/ff-minter/internal/minting"
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

var (
	mintPrice = big.NewInt(10_000_000_000_000_000) // 0.01 ether
	fixedNow  = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	fid       = domain.Identity{ID: "123", DisplayName: "alice"}
)

type testOrchestratorMocks struct {
	ctrl         *gomock.Controller
	store        *mocks.MockStore
	connector    *mocks.MockWalletConnector
	wallet       *mocks.MockWallet
	publisher    *mocks.MockMetadataPublisher
	events       *mocks.MockPublisher
	clock        *mocks.MockClock
	orchestrator minting.Orchestrator
}

func setupTestOrchestrator(t *testing.T) *testOrchestratorMocks {
	ctrl := gomock.NewController(t)

	tm := &testOrchestratorMocks{
		ctrl:      ctrl,
		store:     mocks.NewMockStore(ctrl),
		connector: mocks.NewMockWalletConnector(ctrl),
		wallet:    mocks.NewMockWallet(ctrl),
		publisher: mocks.NewMockMetadataPublisher(ctrl),
		events:    mocks.NewMockPublisher(ctrl),
		clock:     mocks.NewMockClock(ctrl),
	}

	o, err := minting.NewOrchestrator(
		minting.Config{MintPrice: mintPrice},
		tm.store,
		tm.connector,
		metadata.NewBuilder("https://minter.example.com/images"),
		tm.publisher,
		tm.events,
		tm.clock,
	)
	require.NoError(t, err)
	tm.orchestrator = o

	tm.clock.EXPECT().Now().Return(fixedNow).AnyTimes()
	return tm
}

func unminted() *domain.AssignmentRecord {
	return &domain.AssignmentRecord{
		Identity:      "123",
		AssignedIndex: 1500,
		RarityTier:    domain.RarityYellow,
		CreatedAt:     fixedNow.Add(-time.Hour),
	}
}

func contentRef() *domain.ContentReference {
	return &domain.ContentReference{
		URI:        "ipfs://QmTest",
		GatewayURL: "https://gateway.pinata.cloud/ipfs/QmTest",
		Hash:       "QmTest",
	}
}

// phaseRecorder collects the phases reported by a pass
type phaseRecorder struct {
	phases []minting.Phase
}

func (p *phaseRecorder) record(phase minting.Phase) {
	p.phases = append(p.phases, phase)
}

func TestNewOrchestrator_MissingPrice(t *testing.T) {
	_, err := minting.NewOrchestrator(minting.Config{}, nil, nil, nil, nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestOrchestrator_Mint_Preconditions(t *testing.T) {
	minted := unminted()
	minted.Minted = true

	tests := []struct {
		name     string
		record   *domain.AssignmentRecord
		identity domain.Identity
		wantErr  error
	}{
		{
			name:     "no record",
			record:   nil,
			identity: fid,
			wantErr:  domain.ErrNoAssignment,
		},
		{
			name:     "already minted",
			record:   minted,
			identity: fid,
			wantErr:  domain.ErrAlreadyMinted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestOrchestrator(t)
			defer tm.ctrl.Finish()

			tm.store.EXPECT().GetRecord(gomock.Any(), tt.identity.ID).Return(tt.record, nil)

			// no wallet, connector or publisher expectations: any such call fails the test
			result, err := tm.orchestrator.Mint(context.Background(), minting.Request{
				Identity: tt.identity,
				Wallet:   tm.wallet,
			})

			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, domain.KindPrecondition, domain.KindOf(err))
			assert.False(t, domain.Retryable(err))
		})
	}
}

func TestOrchestrator_Mint_StoreReadFailure(t *testing.T) {
	tm := setupTestOrchestrator(t)
	defer tm.ctrl.Finish()

	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(nil, errors.New("connection refused"))

	_, err := tm.orchestrator.Mint(context.Background(), minting.Request{Identity: fid, Wallet: tm.wallet})
	require.Error(t, err)
	assert.Equal(t, domain.KindTransport, domain.KindOf(err))
}

func TestOrchestrator_Mint_ConnectsAndStops(t *testing.T) {
	tm := setupTestOrchestrator(t)
	defer tm.ctrl.Finish()

	phases := &phaseRecorder{}

	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(unminted(), nil)
	tm.connector.EXPECT().Connect(gomock.Any()).Return(tm.wallet, nil)
	tm.wallet.EXPECT().Address().Return("0x1b977cea265ec47c25361e6b96de22e3b2107257")

	result, err := tm.orchestrator.Mint(context.Background(), minting.Request{
		Identity: fid,
		OnPhase:  phases.record,
	})

	require.NoError(t, err)
	assert.Equal(t, minting.OutcomeWalletConnected, result.Outcome)
	assert.Equal(t, tm.wallet, result.Wallet)
	assert.Nil(t, result.Tx)
	assert.Equal(t, []minting.Phase{minting.PhaseConnecting, minting.PhaseIdle}, phases.phases)
}

func TestOrchestrator_Mint_ConnectFailure(t *testing.T) {
	tm := setupTestOrchestrator(t)
	defer tm.ctrl.Finish()

	phases := &phaseRecorder{}

	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(unminted(), nil)
	tm.connector.EXPECT().Connect(gomock.Any()).Return(nil, domain.NewError(domain.KindChain, "connect", errors.New("dial tcp: timeout")))

	_, err := tm.orchestrator.Mint(context.Background(), minting.Request{Identity: fid, OnPhase: phases.record})
	require.Error(t, err)
	assert.Equal(t, domain.KindChain, domain.KindOf(err))
	assert.Equal(t, []minting.Phase{minting.PhaseConnecting, minting.PhaseIdle}, phases.phases)
}

func TestOrchestrator_Mint_NoConnector(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStore(ctrl)
	o, err := minting.NewOrchestrator(minting.Config{MintPrice: mintPrice}, st, nil,
		metadata.NewBuilder("https://minter.example.com/images"), mocks.NewMockMetadataPublisher(ctrl), nil, mocks.NewMockClock(ctrl))
	require.NoError(t, err)

	st.EXPECT().GetRecord(gomock.Any(), "123").Return(unminted(), nil)

	_, err = o.Mint(context.Background(), minting.Request{Identity: fid})
	assert.ErrorIs(t, err, domain.ErrNoWalletConnector)
}

func TestOrchestrator_Mint_InsufficientBalance(t *testing.T) {
	tm := setupTestOrchestrator(t)
	defer tm.ctrl.Finish()

	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(unminted(), nil)
	tm.wallet.EXPECT().Balance(gomock.Any()).Return(big.NewInt(1), nil)

	// nothing is published and nothing is submitted
	_, err := tm.orchestrator.Mint(context.Background(), minting.Request{Identity: fid, Wallet: tm.wallet})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, domain.KindPrecondition, domain.KindOf(err))
}

func TestOrchestrator_Mint_Success(t *testing.T) {
	tm := setupTestOrchestrator(t)
	defer tm.ctrl.Finish()

	phases := &phaseRecorder{}
	ref := contentRef()
	tx := &domain.TxResult{TxHash: "0xabc", BlockNumber: 42}
	expectedDoc := metadata.NewBuilder("https://minter.example.com/images").Build(fid, unminted())

	gomock.InOrder(
		tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(unminted(), nil),
		tm.wallet.EXPECT().Balance(gomock.Any()).Return(new(big.Int).Mul(mintPrice, big.NewInt(2)), nil),
		tm.publisher.EXPECT().Publish(gomock.Any(), expectedDoc).Return(ref, nil),
		tm.wallet.EXPECT().MintTo(gomock.Any(), big.NewInt(123), "ipfs://QmTest", mintPrice).Return(tx, nil),
		tm.store.EXPECT().MarkMinted(gomock.Any(), store.MarkMintedInput{Identity: "123", Metadata: expectedDoc}).Return(nil),
		tm.events.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, event *domain.LifecycleEvent) error {
				assert.Equal(t, domain.EventMinted, event.Type)
				assert.Equal(t, "123", event.Identity)
				assert.Equal(t, "0xabc", event.TxHash)
				assert.Equal(t, "ipfs://QmTest", event.ContentURI)
				assert.Equal(t, uint64(42), event.BlockNumber)
				return nil
			}),
	)

	result, err := tm.orchestrator.Mint(context.Background(), minting.Request{
		Identity: fid,
		Wallet:   tm.wallet,
		OnPhase:  phases.record,
	})

	require.NoError(t, err)
	assert.Equal(t, minting.OutcomeMinted, result.Outcome)
	assert.Equal(t, tx, result.Tx)
	assert.Equal(t, ref, result.Content)
	assert.True(t, result.Record.Minted)
	assert.Equal(t, &expectedDoc, result.Record.MintedMetadata)
	assert.Equal(t, fixedNow, *result.Record.MintedAt)
	assert.Equal(t, []minting.Phase{
		minting.PhasePreflight,
		minting.PhasePublishing,
		minting.PhaseSubmitting,
		minting.PhaseFinalizing,
		minting.PhaseMinted,
	}, phases.phases)
}

func TestOrchestrator_Mint_PublishFailureThenRetry(t *testing.T) {
	tm := setupTestOrchestrator(t)
	defer tm.ctrl.Finish()

	ref := contentRef()
	tx := &domain.TxResult{TxHash: "0xabc", BlockNumber: 42}
	req := minting.Request{Identity: fid, Wallet: tm.wallet}

	// first pass: the publisher answers with a non-JSON body, no chain write happens
	gomock.InOrder(
		tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(unminted(), nil),
		tm.wallet.EXPECT().Balance(gomock.Any()).Return(mintPrice, nil),
		tm.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
			Return(nil, domain.NewError(domain.KindTransport, "pin json", domain.ErrNonJSONResponse)),
	)

	_, err := tm.orchestrator.Mint(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNonJSONResponse)
	assert.True(t, domain.Retryable(err))

	// retry with a healthy publisher succeeds
	gomock.InOrder(
		tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(unminted(), nil),
		tm.wallet.EXPECT().Balance(gomock.Any()).Return(mintPrice, nil),
		tm.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(ref, nil),
		tm.wallet.EXPECT().MintTo(gomock.Any(), big.NewInt(123), ref.URI, mintPrice).Return(tx, nil),
		tm.store.EXPECT().MarkMinted(gomock.Any(), gomock.Any()).Return(nil),
		tm.events.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(nil),
	)

	result, err := tm.orchestrator.Mint(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, minting.OutcomeMinted, result.Outcome)
}

func TestOrchestrator_Mint_ChainFailureThenRetryMarksOnce(t *testing.T) {
	tm := setupTestOrchestrator(t)
	defer tm.ctrl.Finish()

	ref := contentRef()
	tx := &domain.TxResult{TxHash: "0xdef", BlockNumber: 43}
	req := minting.Request{Identity: fid, Wallet: tm.wallet}
	phases := &phaseRecorder{}
	req.OnPhase = phases.record

	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(unminted(), nil).Times(2)
	tm.wallet.EXPECT().Balance(gomock.Any()).Return(mintPrice, nil).Times(2)
	tm.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(ref, nil).Times(2)
	gomock.InOrder(
		tm.wallet.EXPECT().MintTo(gomock.Any(), big.NewInt(123), ref.URI, mintPrice).
			Return(nil, domain.NewError(domain.KindChain, "mint", domain.ErrTransactionReverted)),
		tm.wallet.EXPECT().MintTo(gomock.Any(), big.NewInt(123), ref.URI, mintPrice).Return(tx, nil),
	)
	// MarkMinted is expected exactly once, after the successful receipt
	tm.store.EXPECT().MarkMinted(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	tm.events.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	_, err := tm.orchestrator.Mint(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransactionReverted)
	assert.Equal(t, domain.KindChain, domain.KindOf(err))
	assert.True(t, domain.Retryable(err))
	assert.Equal(t, minting.PhaseIdle, phases.phases[len(phases.phases)-1])

	result, err := tm.orchestrator.Mint(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "0xdef", result.Tx.TxHash)
	assert.True(t, result.Record.Minted)
}

func TestOrchestrator_Mint_FinalizationFailure(t *testing.T) {
	tm := setupTestOrchestrator(t)
	defer tm.ctrl.Finish()

	ref := contentRef()
	tx := &domain.TxResult{TxHash: "0xabc", BlockNumber: 42}

	gomock.InOrder(
		tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(unminted(), nil),
		tm.wallet.EXPECT().Balance(gomock.Any()).Return(mintPrice, nil),
		tm.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(ref, nil),
		tm.wallet.EXPECT().MintTo(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(tx, nil),
		tm.store.EXPECT().MarkMinted(gomock.Any(), gomock.Any()).Return(errors.New("connection reset")),
		tm.events.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, event *domain.LifecycleEvent) error {
				assert.Equal(t, domain.EventFinalizationFailed, event.Type)
				assert.Equal(t, "0xabc", event.TxHash)
				assert.Equal(t, "connection reset", event.Error)
				return nil
			}),
	)

	result, err := tm.orchestrator.Mint(context.Background(), minting.Request{Identity: fid, Wallet: tm.wallet})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFinalizationFailed)
	assert.Equal(t, domain.KindFinalization, domain.KindOf(err))
	assert.False(t, domain.Retryable(err))
	require.NotNil(t, result)
	assert.Equal(t, tx, result.Tx)
	assert.False(t, result.Record.Minted)
}

func TestOrchestrator_Mint_EventFailureDoesNotChangeOutcome(t *testing.T) {
	tm := setupTestOrchestrator(t)
	defer tm.ctrl.Finish()

	tm.store.EXPECT().GetRecord(gomock.Any(), "123").Return(unminted(), nil)
	tm.wallet.EXPECT().Balance(gomock.Any()).Return(mintPrice, nil)
	tm.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(contentRef(), nil)
	tm.wallet.EXPECT().MintTo(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.TxResult{TxHash: "0xabc"}, nil)
	tm.store.EXPECT().MarkMinted(gomock.Any(), gomock.Any()).Return(nil)
	tm.events.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(errors.New("nats: timeout"))

	result, err := tm.orchestrator.Mint(context.Background(), minting.Request{Identity: fid, Wallet: tm.wallet})
	require.NoError(t, err)
	assert.Equal(t, minting.OutcomeMinted, result.Outcome)
}
