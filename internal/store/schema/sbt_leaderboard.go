package schema

import "time"

// SBTLeaderboard represents the sbt_leaderboard table
type SBTLeaderboard struct {
	// Address is the badge owner
	Address string `gorm:"column:address;primaryKey;type:text"`
	// Username is copied from the owner's profile on first mint
	Username string `gorm:"column:username;not null;type:text;default:''"`
	// TopContributionsCount counts mint events; revocations do not decrement it
	TopContributionsCount int64     `gorm:"column:top_contributions_count;not null;default:0"`
	CreatedAt             time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName specifies the table name for the SBTLeaderboard model
func (SBTLeaderboard) TableName() string {
	return "sbt_leaderboard"
}
