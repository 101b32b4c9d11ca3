package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Hostel represents a rental property listed by a landlord
type Hostel struct {
	gorm.Model
	LandlordID     uint      `gorm:"index"`
	Landlord       *Landlord `gorm:"foreignKey:LandlordID"`
	Name           string    `gorm:"not null"`
	Address        string
	City           string
	TotalUnits     int
	AvailableUnits int
	UnitPrice      decimal.Decimal `gorm:"type:decimal(12,2)"`
	Description    string
}

// Room represents a single rentable unit within a hostel
type Room struct {
	gorm.Model
	HostelID   uint    `gorm:"index"`
	Hostel     *Hostel `gorm:"foreignKey:HostelID"`
	RoomNumber string
	Capacity   int
	Price      decimal.Decimal `gorm:"type:decimal(12,2)"`
	IsVacant   bool
}
