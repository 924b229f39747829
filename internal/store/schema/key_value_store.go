package schema

import "time"

// KeyValueStore stores indexer state that is not an entity
// Used for block cursors and the current day bucket
type KeyValueStore struct {
	// Key is the state name (e.g., "block_cursor:eip155:1", "current_day")
	Key string `gorm:"column:key;primaryKey;type:text"`
	// Value is the state value rendered as text
	Value string `gorm:"column:value;type:text;not null"`
	// UpdatedAt is the timestamp of the last write
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
	// CreatedAt is the timestamp of the first write
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the KeyValueStore model
func (KeyValueStore) TableName() string {
	return "key_value_store"
}
