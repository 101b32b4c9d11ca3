package localstore

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SyncStatus is the upload state of a cached payment
type SyncStatus string

const (
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusPending  SyncStatus = "pending_sync"
	SyncStatusFailed   SyncStatus = "failed_sync"
	SyncStatusConflict SyncStatus = "conflict"
)

// Kind tags the entity type carried by a Record
type Kind string

const (
	KindTenant    Kind = "tenant"
	KindLandlord  Kind = "landlord"
	KindHostel    Kind = "hostel"
	KindRoom      Kind = "room"
	KindBooking   Kind = "booking"
	KindPayment   Kind = "payment"
	KindQueueItem Kind = "queue_item"
)

// Queue actions
const (
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Local table names
const (
	TableTenants   = "tenants"
	TableLandlords = "landlords"
	TableHostels   = "hostels"
	TableRooms     = "rooms"
	TableBookings  = "bookings"
	TablePayments  = "payments"
	TableSyncQueue = "sync_queue"
)

// Record is a row of one of the local tables
type Record interface {
	Kind() Kind
	TableName() string
}

// LocalRecord is a Record whose primary key is assigned on the device
type LocalRecord interface {
	Record
	LocalKey() uint
}

// Tenant is the cached profile of the signed-in tenant
type Tenant struct {
	ID          uint       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ClerkUserID string     `gorm:"index" json:"clerk_user_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	SyncedAt    *time.Time `gorm:"index" json:"synced_at"`
}

func (Tenant) Kind() Kind        { return KindTenant }
func (Tenant) TableName() string { return TableTenants }

// Landlord is a cached property owner
type Landlord struct {
	ID          uint       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ClerkUserID string     `gorm:"index" json:"clerk_user_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	SyncedAt    *time.Time `gorm:"index" json:"synced_at"`
}

func (Landlord) Kind() Kind        { return KindLandlord }
func (Landlord) TableName() string { return TableLandlords }

// Hostel is a cached property
type Hostel struct {
	ID             uint            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	LandlordID     uint            `gorm:"index" json:"landlord_id"`
	Name           string          `json:"name"`
	Address        string          `json:"address"`
	City           string          `json:"city"`
	TotalUnits     int             `json:"total_units"`
	AvailableUnits int             `json:"available_units"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_price"`
	Description    string          `json:"description"`
	SyncedAt       *time.Time      `gorm:"index" json:"synced_at"`
}

func (Hostel) Kind() Kind        { return KindHostel }
func (Hostel) TableName() string { return TableHostels }

// Room is a cached unit of a hostel
type Room struct {
	ID         uint            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	HostelID   uint            `gorm:"index" json:"hostel_id"`
	RoomNumber string          `json:"room_number"`
	Capacity   int             `json:"capacity"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	IsVacant   bool            `json:"is_vacant"`
	SyncedAt   *time.Time      `gorm:"index" json:"synced_at"`
}

func (Room) Kind() Kind        { return KindRoom }
func (Room) TableName() string { return TableRooms }

// Booking is a cached tenancy
type Booking struct {
	ID         uint            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	TenantID   uint            `gorm:"index" json:"tenant_id"`
	HostelID   uint            `gorm:"index" json:"hostel_id"`
	RoomID     *uint           `gorm:"index" json:"room_id"`
	Status     string          `gorm:"index" json:"status"`
	RentAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"rent_amount"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    *time.Time      `json:"end_date"`
	SyncedAt   *time.Time      `gorm:"index" json:"synced_at"`
}

func (Booking) Kind() Kind        { return KindBooking }
func (Booking) TableName() string { return TableBookings }

// Payment is a cached or locally recorded payment. LocalID never leaves the
// device; ID stays nil until the payment exists on the server.
type Payment struct {
	LocalID         uint            `gorm:"primaryKey;autoIncrement" json:"local_id"`
	ID              *uint           `gorm:"uniqueIndex" json:"id"`
	BookingID       *uint           `gorm:"index" json:"booking_id"`
	TenantID        uint            `gorm:"index" json:"tenant_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentDate     time.Time       `json:"payment_date"`
	ReferenceNumber string          `gorm:"index" json:"reference_number"`
	Status          string          `gorm:"index" json:"status"`
	SyncStatus      SyncStatus      `gorm:"index" json:"sync_status"`
	SyncError       string          `json:"sync_error,omitempty"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	SyncedAt        *time.Time      `gorm:"index" json:"synced_at"`
}

func (Payment) Kind() Kind        { return KindPayment }
func (Payment) TableName() string { return TablePayments }
func (p Payment) LocalKey() uint  { return p.LocalID }

// SyncQueueItem is a pending mutation of a remote entity other than a payment create.
// Data holds the partial update and is opaque to the store.
type SyncQueueItem struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityType string         `gorm:"index" json:"entity_type"`
	EntityID   uint           `gorm:"index" json:"entity_id"`
	Action     string         `gorm:"index" json:"action"`
	Data       datatypes.JSON `json:"data"`
	CreatedAt  time.Time      `json:"created_at"`
	Synced     int            `gorm:"index" json:"synced"`
	SyncError  string         `json:"sync_error,omitempty"`
}

func (SyncQueueItem) Kind() Kind        { return KindQueueItem }
func (SyncQueueItem) TableName() string { return TableSyncQueue }
func (q SyncQueueItem) LocalKey() uint  { return q.ID }

// allRecords lists every local table model, parents first
func allRecords() []interface{} {
	return []interface{}{
		&Landlord{},
		&Tenant{},
		&Hostel{},
		&Room{},
		&Booking{},
		&Payment{},
		&SyncQueueItem{},
	}
}
