package store

import "time"

// Customer is the master record a booking's customer snapshot is copied from.
type Customer struct {
	ID      string `gorm:"primaryKey;size:50;unique"`
	Name    string `gorm:"size:200;not null"`
	Phone   string `gorm:"size:20;not null;unique"`
	Email   string `gorm:"size:256"`
	Address string `gorm:"type:text;not null"`

	// Statistics
	TotalBookings     int `gorm:"not null;default:0"`
	CompletedBookings int `gorm:"not null;default:0"`
	CancelledBookings int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null"`
}
