package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amplifrens/amplifrens-indexer/internal/store/schema"
)

// CursorStore defines the interface for storing and retrieving block cursors
//
//go:generate mockgen -source=cursor_store.go -destination=../mocks/cursor_store.go -package=mocks -mock_names=CursorStore=MockCursorStore
type CursorStore interface {
	// GetBlockCursor retrieves the last fully processed block number for a chain
	GetBlockCursor(ctx context.Context, chain string) (uint64, error)
	// SetBlockCursor stores the last fully processed block number for a chain
	SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error
}

func blockCursorKey(chain string) string {
	return fmt.Sprintf("block_cursor:%s", chain)
}

type cursorStore struct {
	db *gorm.DB
}

// NewCursorStore creates a new cursor store
func NewCursorStore(db *gorm.DB) CursorStore {
	return &cursorStore{db: db}
}

// GetBlockCursor retrieves the last processed block number for a chain
func (s *cursorStore) GetBlockCursor(ctx context.Context, chain string) (uint64, error) {
	value, err := getKeyValue(ctx, s.db, blockCursorKey(chain))
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}
	if value == "" {
		return 0, nil
	}

	blockNumber, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block cursor: %w", err)
	}

	return blockNumber, nil
}

// SetBlockCursor stores the last processed block number for a chain
func (s *cursorStore) SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error {
	if err := setKeyValue(ctx, s.db, blockCursorKey(chain), strconv.FormatUint(blockNumber, 10)); err != nil {
		return fmt.Errorf("failed to set block cursor: %w", err)
	}
	return nil
}

// getKeyValue returns "" when the key does not exist
func getKeyValue(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var kv schema.KeyValueStore
	err := db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return kv.Value, nil
}

func setKeyValue(ctx context.Context, db *gorm.DB, key, value string) error {
	kv := schema.KeyValueStore{
		Key:   key,
		Value: value,
	}

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&kv).Error
}
