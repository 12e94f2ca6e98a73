package dto

import (
	"time"

	"github.com/feral-file/ff-minter/internal/domain"
)

// CreateSessionRequest is the optional body of POST /api/v1/sessions
type CreateSessionRequest struct {
	// DisplayName is used when the host token carries no username
	DisplayName string `json:"display_name"`
}

// RecordResponse is an assignment record as returned by the API
type RecordResponse struct {
	Identity       string                `json:"identity"`
	AssignedIndex  int                   `json:"assigned_index"`
	RarityTier     domain.RarityTier     `json:"rarity_tier"`
	ImageURL       string                `json:"image_url"`
	Minted         bool                  `json:"minted"`
	MintedMetadata *domain.TokenMetadata `json:"minted_metadata,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	MintedAt       *time.Time            `json:"minted_at,omitempty"`
}

// NewRecordResponse maps a record to its response
func NewRecordResponse(record *domain.AssignmentRecord, imageURL string) RecordResponse {
	return RecordResponse{
		Identity:       record.Identity,
		AssignedIndex:  record.AssignedIndex,
		RarityTier:     record.RarityTier,
		ImageURL:       imageURL,
		Minted:         record.Minted,
		MintedMetadata: record.MintedMetadata,
		CreatedAt:      record.CreatedAt,
		MintedAt:       record.MintedAt,
	}
}

// UploadMetadataResponse is the response of POST /api/v1/metadata
type UploadMetadataResponse struct {
	Success bool   `json:"success"`
	IPFS    string `json:"ipfs"`
	Gateway string `json:"gateway"`
	Hash    string `json:"hash"`
}

// StatsResponse is the advisory collection progress
type StatsResponse struct {
	MintedCount int64 `json:"minted_count"`
	MaxSupply   int   `json:"max_supply"`
	// Placeholder is true when the count could not be read
	Placeholder bool `json:"placeholder"`
}
