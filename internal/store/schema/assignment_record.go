package schema

import (
	"time"

	"gorm.io/datatypes"
)

// AssignmentRecord represents the assignment_records table - one generated collectible per identity
type AssignmentRecord struct {
	// Identity is the caller's FID, unique across the table
	Identity string `gorm:"column:identity;primaryKey;type:text"`
	// AssignedIndex is the pool index chosen at generation time, never changed afterwards
	AssignedIndex int `gorm:"column:assigned_index;not null"`
	// RarityTier is derived from AssignedIndex at generation time
	RarityTier string `gorm:"column:rarity_tier;not null;type:text"`
	// Minted flips from false to true exactly once
	Minted bool `gorm:"column:minted;not null;default:false"`
	// MintedMetadata is the metadata document that was published for the mint
	MintedMetadata datatypes.JSON `gorm:"column:minted_metadata;type:jsonb"`
	// CreatedAt is the timestamp when the record was generated
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// MintedAt is the timestamp when the record was marked minted
	MintedAt *time.Time `gorm:"column:minted_at;type:timestamptz"`
}

// TableName specifies the table name for the AssignmentRecord model
func (AssignmentRecord) TableName() string {
	return "assignment_records"
}
