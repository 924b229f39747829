package schema

import "time"

// VoteRecord represents the vote_records table
// There is at most one row per (contribution, voter, polarity); a flip supersedes the opposite row
type VoteRecord struct {
	ContributionID uint64 `gorm:"column:contribution_id;primaryKey;autoIncrement:false"`
	Voter          string `gorm:"column:voter;primaryKey;type:text"`
	// Polarity is "up" or "down"
	Polarity string `gorm:"column:polarity;primaryKey;type:text"`
	// Status is live or superseded
	Status    string    `gorm:"column:status;not null;type:text;default:live"`
	Timestamp int64     `gorm:"column:timestamp;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName specifies the table name for the VoteRecord model
func (VoteRecord) TableName() string {
	return "vote_records"
}
