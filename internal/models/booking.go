package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Booking statuses. The application flow uses pending/active/completed/terminated,
// the request flow uses applied/approved/rejected.
const (
	BookingPending    = "pending"
	BookingActive     = "active"
	BookingConfirmed  = "confirmed"
	BookingCompleted  = "completed"
	BookingTerminated = "terminated"
	BookingApplied    = "applied"
	BookingApproved   = "approved"
	BookingRejected   = "rejected"
)

// Booking links a tenant to a hostel and optionally a room
type Booking struct {
	gorm.Model
	TenantID   uint            `gorm:"index;not null"`
	Tenant     *Tenant         `gorm:"foreignKey:TenantID"`
	HostelID   uint            `gorm:"index"`
	Hostel     *Hostel         `gorm:"foreignKey:HostelID"`
	RoomID     *uint           `gorm:"index"`
	Room       *Room           `gorm:"foreignKey:RoomID"`
	Status     string          `gorm:"index;not null"`
	RentAmount decimal.Decimal `gorm:"type:decimal(12,2)"`
	StartDate  time.Time
	EndDate    *time.Time
}
