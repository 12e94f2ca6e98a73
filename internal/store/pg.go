package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/logger"
	"github.com/feral-file/ff-minter/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

func hasDBResolver(db *gorm.DB) bool {
	return db != nil && db.Callback().Query().Get("gorm:db_resolver") != nil
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// GetRecord retrieves the assignment record for an identity
func (s *pgStore) GetRecord(ctx context.Context, identity string) (*domain.AssignmentRecord, error) {
	var row schema.AssignmentRecord

	query := func(db *gorm.DB) error {
		return db.WithContext(ctx).Where("identity = ?", identity).First(&row).Error
	}

	err := query(s.db)
	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) && hasDBResolver(s.db) {
		// Replica can lag behind primary; retry on primary before returning not found.
		err = query(s.db.Clauses(dbresolver.Write))
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assignment record: %w", err)
	}

	return toDomainRecord(&row)
}

// InsertRecord inserts an unminted record unless one already exists for the identity
func (s *pgStore) InsertRecord(ctx context.Context, input InsertRecordInput) (*domain.AssignmentRecord, bool, error) {
	if input.Identity == "" {
		return nil, false, fmt.Errorf("identity is required")
	}
	if !input.RarityTier.Valid() {
		return nil, false, fmt.Errorf("invalid rarity tier: %s", input.RarityTier)
	}

	row := schema.AssignmentRecord{
		Identity:      input.Identity,
		AssignedIndex: input.AssignedIndex,
		RarityTier:    string(input.RarityTier),
		Minted:        false,
		CreatedAt:     time.Now().UTC(),
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to insert assignment record: %w", result.Error)
	}

	if result.RowsAffected == 1 {
		record, err := toDomainRecord(&row)
		return record, true, err
	}

	// Lost the race to a concurrent generation, the stored record wins
	var existing schema.AssignmentRecord
	err := s.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("identity = ?", input.Identity).
		First(&existing).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to read existing assignment record: %w", err)
	}

	logger.DebugCtx(ctx, "Assignment record already exists",
		zap.String("identity", input.Identity),
		zap.Int("assignedIndex", existing.AssignedIndex))

	record, err := toDomainRecord(&existing)
	return record, false, err
}

// MarkMinted flips minted to true only when it is still false
func (s *pgStore) MarkMinted(ctx context.Context, input MarkMintedInput) error {
	metadataJSON, err := json.Marshal(input.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&schema.AssignmentRecord{}).
		Where("identity = ? AND minted = ?", input.Identity, false).
		Updates(map[string]any{
			"minted":          true,
			"minted_metadata": datatypes.JSON(metadataJSON),
			"minted_at":       now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark record minted: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	// Nothing updated: tell apart a missing record from an already minted one
	var row schema.AssignmentRecord
	err = s.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("identity = ?", input.Identity).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNoAssignment
		}
		return fmt.Errorf("failed to read assignment record: %w", err)
	}

	return domain.ErrAlreadyMinted
}

// CountMinted returns the number of minted records
func (s *pgStore) CountMinted(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.AssignmentRecord{}).
		Where("minted = ?", true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count minted records: %w", err)
	}
	return count, nil
}

// toDomainRecord converts a database row to the domain record
func toDomainRecord(row *schema.AssignmentRecord) (*domain.AssignmentRecord, error) {
	record := &domain.AssignmentRecord{
		Identity:      row.Identity,
		AssignedIndex: row.AssignedIndex,
		RarityTier:    domain.RarityTier(row.RarityTier),
		Minted:        row.Minted,
		CreatedAt:     row.CreatedAt,
		MintedAt:      row.MintedAt,
	}

	if len(row.MintedMetadata) > 0 && string(row.MintedMetadata) != "null" {
		var metadata domain.TokenMetadata
		if err := json.Unmarshal(row.MintedMetadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal minted metadata: %w", err)
		}
		record.MintedMetadata = &metadata
	}

	return record, nil
}
