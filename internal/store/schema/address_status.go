package schema

import "time"

// AddressStatus represents the statuses table
type AddressStatus struct {
	Address   string    `gorm:"column:address;primaryKey;type:text"`
	Tier      int       `gorm:"column:tier;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName specifies the table name for the AddressStatus model
func (AddressStatus) TableName() string {
	return "statuses"
}
