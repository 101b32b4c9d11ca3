package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Server-side payment statuses
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Payment is the server of record for a rent payment. ReferenceNumber is
// unique so a client retrying an upload can never create a second row.
type Payment struct {
	gorm.Model
	BookingID       *uint           `gorm:"index"`
	TenantID        uint            `gorm:"index;not null"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PaymentMethod   string
	PaymentDate     time.Time
	ReferenceNumber string `gorm:"uniqueIndex;not null"`
	Status          string `gorm:"not null"`
}
