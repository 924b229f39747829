package schema

import "time"

// Contribution represents the contributions table - the projected state of every submitted link
type Contribution struct {
	// ID is the on-chain contribution id, assigned once and never reused
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement:false"`
	// Author is the address that created the contribution (kept after removal)
	Author string `gorm:"column:author;not null;type:text;index:idx_contributions_author"`
	// Status is the lifecycle status (live, removed)
	Status string `gorm:"column:status;not null;type:text;default:live"`
	// Category is the contribution category (0..7)
	Category int16 `gorm:"column:category;not null"`
	// Title is the contribution title
	Title string `gorm:"column:title;not null;type:text"`
	// URL is the contributed link
	URL string `gorm:"column:url;not null;type:text"`
	// Timestamp is the on-chain timestamp of the last create/update
	Timestamp int64 `gorm:"column:timestamp;not null"`
	// Votes is the sum of live upvotes minus live downvotes
	Votes int64 `gorm:"column:votes;not null;default:0"`
	// DayCounter is the day bucket the contribution competes in
	DayCounter int64 `gorm:"column:day_counter;not null;index:idx_contributions_day"`
	// BestContribution is set once the contribution wins its day
	BestContribution bool `gorm:"column:best_contribution;not null;default:false"`
	// HasProfile records whether the author had a live profile at creation time
	HasProfile bool `gorm:"column:has_profile;not null;default:false"`
	// Username is the author's username at creation time
	Username string `gorm:"column:username;not null;type:text;default:''"`
	// FromStatus is the author's status tier at creation time
	FromStatus int `gorm:"column:from_status;not null;default:0"`
	// CreatedAt is the timestamp when this record was first indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	// UpdatedAt is the timestamp when this record was last changed
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName specifies the table name for the Contribution model
func (Contribution) TableName() string {
	return "contributions"
}
