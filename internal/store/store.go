package store

import (
	"context"

	"github.com/feral-file/ff-minter/internal/domain"
)

//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore

// Store defines the interface for assignment record persistence
type Store interface {
	// GetRecord retrieves the assignment record for an identity, nil if none exists
	GetRecord(ctx context.Context, identity string) (*domain.AssignmentRecord, error)
	// InsertRecord inserts an unminted record if none exists for the identity.
	// It returns the persisted record and whether this call created it.
	InsertRecord(ctx context.Context, input InsertRecordInput) (*domain.AssignmentRecord, bool, error)
	// MarkMinted flips minted to true and stores the published metadata.
	// It returns domain.ErrAlreadyMinted when the record is already minted
	// and domain.ErrNoAssignment when no record exists.
	MarkMinted(ctx context.Context, input MarkMintedInput) error
	// CountMinted returns the number of minted records
	CountMinted(ctx context.Context) (int64, error)
}

// InsertRecordInput is the input for InsertRecord
type InsertRecordInput struct {
	Identity      string
	AssignedIndex int
	RarityTier    domain.RarityTier
}

// MarkMintedInput is the input for MarkMinted
type MarkMintedInput struct {
	Identity string
	Metadata domain.TokenMetadata
}
