// Package remotetest provides a SQLite-backed remote store and a call
// recorder for tests of code that talks to the server of record.
package remotetest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/beesaferoot/propertyhub/internal/models"
	"github.com/beesaferoot/propertyhub/internal/remote"
)

// NewStore opens a migrated remote store in a temporary directory
func NewStore(t testing.TB) *remote.GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "remote.db")), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store, err := remote.NewGormStore(db)
	require.NoError(t, err)
	_, err = store.Migrator().Up()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Fixture is the server-side data of one seeded tenant
type Fixture struct {
	Tenant   models.Tenant
	Landlord models.Landlord
	Hostel   models.Hostel
	Room     models.Room
	Booking  models.Booking
	Payments []models.Payment
}

// Seed creates a tenant with an active booking in a hostel room and the given
// number of completed payments, one day apart.
func Seed(t testing.TB, store *remote.GormStore, clerkUserID string, payments int) Fixture {
	t.Helper()
	db := store.DB()

	f := Fixture{
		Landlord: models.Landlord{ClerkUserID: clerkUserID + "_landlord", Name: "Mr. Banda"},
		Tenant:   models.Tenant{ClerkUserID: clerkUserID, FirstName: "Thoko", LastName: "Phiri", Email: "thoko@example.com"},
	}
	require.NoError(t, db.Create(&f.Landlord).Error)
	require.NoError(t, db.Create(&f.Tenant).Error)

	f.Hostel = models.Hostel{
		LandlordID:     f.Landlord.ID,
		Name:           "Chancellor Hostel",
		Address:        "Chirunga Road",
		City:           "Zomba",
		TotalUnits:     40,
		AvailableUnits: 3,
		UnitPrice:      decimal.NewFromInt(45000),
	}
	require.NoError(t, db.Create(&f.Hostel).Error)

	f.Room = models.Room{HostelID: f.Hostel.ID, RoomNumber: "B12", Capacity: 2, Price: decimal.NewFromInt(45000)}
	require.NoError(t, db.Create(&f.Room).Error)

	f.Booking = models.Booking{
		TenantID:   f.Tenant.ID,
		HostelID:   f.Hostel.ID,
		RoomID:     &f.Room.ID,
		Status:     models.BookingActive,
		RentAmount: decimal.NewFromInt(45000),
		StartDate:  time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&f.Booking).Error)

	base := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < payments; i++ {
		p := models.Payment{
			BookingID:       &f.Booking.ID,
			TenantID:        f.Tenant.ID,
			Amount:          decimal.NewFromInt(45000),
			PaymentMethod:   "airtel_money",
			PaymentDate:     base.AddDate(0, 0, i),
			ReferenceNumber: fmt.Sprintf("SRV-%s-%03d", clerkUserID, i),
			Status:          models.PaymentCompleted,
		}
		p.CreatedAt = base.AddDate(0, 0, i)
		require.NoError(t, db.Create(&p).Error)
		f.Payments = append(f.Payments, p)
	}
	return f
}

// Recorder wraps a remote store, counting calls per operation and failing
// chosen calls.
type Recorder struct {
	Next remote.Store

	// BeforeCall, when set, runs before every call is forwarded
	BeforeCall func(op string)

	mu         sync.Mutex
	calls      map[string]int
	failInsert map[int]error
	failAll    error
}

// NewRecorder wraps next
func NewRecorder(next remote.Store) *Recorder {
	return &Recorder{Next: next, calls: make(map[string]int), failInsert: make(map[int]error)}
}

// FailInsert makes the n-th Insert call (1-based) return err
func (r *Recorder) FailInsert(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failInsert[n] = err
}

// FailAll makes every call return err; nil restores normal behaviour
func (r *Recorder) FailAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAll = err
}

// Calls returns how many times op has been called
func (r *Recorder) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// Total returns the number of calls across all operations
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *Recorder) enter(op string) error {
	if r.BeforeCall != nil {
		r.BeforeCall(op)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[op]++
	if r.failAll != nil {
		return r.failAll
	}
	if op == "insert" {
		if err, ok := r.failInsert[r.calls[op]]; ok {
			return err
		}
	}
	return nil
}

func (r *Recorder) SelectWhere(ctx context.Context, table string, q remote.Query, dest interface{}) error {
	if err := r.enter("select_where"); err != nil {
		return err
	}
	return r.Next.SelectWhere(ctx, table, q, dest)
}

func (r *Recorder) SelectOne(ctx context.Context, table string, q remote.Query, dest interface{}) error {
	if err := r.enter("select_one"); err != nil {
		return err
	}
	return r.Next.SelectOne(ctx, table, q, dest)
}

func (r *Recorder) Insert(ctx context.Context, table string, record interface{}) error {
	if err := r.enter("insert"); err != nil {
		return err
	}
	return r.Next.Insert(ctx, table, record)
}

func (r *Recorder) Update(ctx context.Context, table string, id uint, fields map[string]interface{}) error {
	if err := r.enter("update"); err != nil {
		return err
	}
	return r.Next.Update(ctx, table, id, fields)
}

func (r *Recorder) Delete(ctx context.Context, table string, id uint) error {
	if err := r.enter("delete"); err != nil {
		return err
	}
	return r.Next.Delete(ctx, table, id)
}

func (r *Recorder) Ping(ctx context.Context) error {
	if err := r.enter("ping"); err != nil {
		return err
	}
	if p, ok := r.Next.(remote.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
