package schema

import "time"

// Profile represents the profiles table
type Profile struct {
	// Address is the lowercase hex address owning the profile
	Address string `gorm:"column:address;primaryKey;type:text"`
	// Status is the lifecycle status (live, blacklisted, deleted)
	Status string `gorm:"column:status;not null;type:text;default:live"`
	Username        string `gorm:"column:username;not null;type:text;index:idx_profiles_username"`
	LensHandle      string `gorm:"column:lens_handle;not null;type:text;default:''"`
	DiscordHandle   string `gorm:"column:discord_handle;not null;type:text;default:''"`
	TwitterHandle   string `gorm:"column:twitter_handle;not null;type:text;default:''"`
	Email           string `gorm:"column:email;not null;type:text;default:''"`
	WebsiteURL      string `gorm:"column:website_url;not null;type:text;default:''"`
	BlacklistReason string `gorm:"column:blacklist_reason;not null;type:text;default:''"`
	// Timestamp is the on-chain timestamp of the last profile event
	Timestamp int64     `gorm:"column:timestamp;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName specifies the table name for the Profile model
func (Profile) TableName() string {
	return "profiles"
}
