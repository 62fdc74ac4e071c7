package models

import "time"

// Registration is one activated device. HardwareKey carries the unique index
// that keeps two rows from ever sharing a key.
type Registration struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	HardwareKey string    `gorm:"column:hardware_key;type:text;not null;uniqueIndex" json:"hardware_key"`
	FirstSeen   time.Time `gorm:"column:first_seen;not null;default:CURRENT_TIMESTAMP" json:"first_seen"`
	LastSeen    time.Time `gorm:"column:last_seen;not null;default:CURRENT_TIMESTAMP" json:"last_seen"`
	IPAddress   *string   `gorm:"column:ip_address;type:text" json:"ip_address,omitempty"`
}

// TableName keeps the table name the activation database has always used.
func (Registration) TableName() string { return "users" }

// NewRegistration builds a row for a first activation seen at now.
func NewRegistration(key, addr string, now time.Time) *Registration {
	return &Registration{
		HardwareKey: key,
		FirstSeen:   now,
		LastSeen:    now,
		IPAddress:   NullableString(addr),
	}
}

// NullableString maps an empty address to NULL.
func NullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
