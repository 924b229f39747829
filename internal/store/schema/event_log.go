package schema

import (
	"time"

	"gorm.io/datatypes"
)

// EventLog represents the event_logs table - the append-only audit trail of observed events
type EventLog struct {
	// TxHash is the transaction hash that emitted the event
	TxHash string `gorm:"column:tx_hash;primaryKey;type:text"`
	// LogIndex is the log position inside the block
	LogIndex int64 `gorm:"column:log_index;primaryKey;autoIncrement:false;index:idx_event_logs_position,priority:2"`
	// BlockNumber is the block containing the log
	BlockNumber int64 `gorm:"column:block_number;not null;index:idx_event_logs_position,priority:1"`
	// ContractAddress is the emitting contract
	ContractAddress string `gorm:"column:contract_address;not null;type:text;default:''"`
	// Kind is the event variant (e.g., contribution_created, sbt_minted)
	Kind string `gorm:"column:kind;not null;type:text;index:idx_event_logs_kind_key,priority:1"`
	// NaturalKey is the event-specific key (contribution id, vote key, address, txHash-logIndex)
	NaturalKey string `gorm:"column:natural_key;not null;type:text;index:idx_event_logs_kind_key,priority:2"`
	// Payload is the full event as JSON
	Payload datatypes.JSON `gorm:"column:payload;type:jsonb;not null"`
	// CreatedAt is the timestamp when the event was indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName specifies the table name for the EventLog model
func (EventLog) TableName() string {
	return "event_logs"
}
