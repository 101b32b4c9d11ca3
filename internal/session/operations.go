package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/beesaferoot/propertyhub/internal/localstore"
	"github.com/beesaferoot/propertyhub/internal/models"
)

// OfflineReferencePrefix starts the reference number of every payment
// recorded on the device
const OfflineReferencePrefix = "OFFLINE-"

// Kinds accepted by ReadCached
const (
	CachedTenant   = "tenant"
	CachedBooking  = "booking"
	CachedPayments = "payments"
	CachedHostel   = "hostel"
)

// PaymentInput is a payment entered while offline
type PaymentInput struct {
	TenantID      uint            `json:"tenant_id" binding:"required"`
	BookingID     *uint           `json:"booking_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	PaymentDate   *time.Time      `json:"payment_date"`
}

func (in PaymentInput) validate() error {
	if in.TenantID == 0 {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return nil
}

// newReference returns a reference number unique across devices, even for
// payments recorded within the same millisecond
func newReference(at time.Time) string {
	return fmt.Sprintf("%s%d-%s", OfflineReferencePrefix, at.UnixMilli(), uuid.NewString())
}

// RecordOfflinePayment stores a payment for upload on the next sync and
// returns its local id
func (c *Controller) RecordOfflinePayment(ctx context.Context, in PaymentInput) (uint, error) {
	if c.identity == "" {
		return 0, ErrUnauthenticated
	}
	if err := in.validate(); err != nil {
		return 0, err
	}

	now := c.timestamp()
	payment := &localstore.Payment{
		BookingID:       in.BookingID,
		TenantID:        in.TenantID,
		Amount:          in.Amount,
		PaymentMethod:   in.PaymentMethod,
		PaymentDate:     now,
		ReferenceNumber: newReference(now),
		Status:          models.PaymentPending,
		SyncStatus:      localstore.SyncStatusPending,
		CreatedAt:       now,
	}
	if in.PaymentDate != nil {
		payment.PaymentDate = in.PaymentDate.UTC()
	}

	localID, err := c.engine.Local().Add(ctx, payment)
	if err != nil {
		return 0, fmt.Errorf("failed to record offline payment: %w", err)
	}
	c.refreshPending(ctx)
	c.logger.Info("offline payment recorded", "local_id", localID, "reference", payment.ReferenceNumber)
	return localID, nil
}

// QueueMutation records a change to a remote entity for upload on the next sync
func (c *Controller) QueueMutation(ctx context.Context, entityType string, entityID uint, action string, data json.RawMessage) (uint, error) {
	if c.identity == "" {
		return 0, ErrUnauthenticated
	}
	if _, ok := models.ModelTypeRegistry[entityType]; !ok {
		return 0, fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, entityType)
	}
	if entityID == 0 {
		return 0, fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}

	item := &localstore.SyncQueueItem{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		CreatedAt:  c.timestamp(),
	}
	switch action {
	case localstore.ActionUpdate:
		var fields map[string]interface{}
		if err := json.Unmarshal(data, &fields); err != nil || len(fields) == 0 {
			return 0, fmt.Errorf("%w: update needs a non-empty JSON object", ErrInvalidInput)
		}
		item.Data = datatypes.JSON(data)
	case localstore.ActionDelete:
	default:
		return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
	}

	id, err := c.engine.Local().Add(ctx, item)
	if err != nil {
		return 0, fmt.Errorf("failed to queue change: %w", err)
	}
	c.refreshPending(ctx)
	return id, nil
}

// RetryFailed makes every payment that failed to upload pending again and
// returns how many were moved
func (c *Controller) RetryFailed(ctx context.Context) (int64, error) {
	n, err := c.engine.Local().RequeueFailedPayments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue payments: %w", err)
	}
	c.refreshPending(ctx)
	return n, nil
}

// ReadCached reads cached data for the UI. It returns nil when nothing is
// cached or the kind is unknown; read failures are logged and also give nil.
func (c *Controller) ReadCached(ctx context.Context, kind string, tenantID uint) interface{} {
	v, err := c.readCached(ctx, kind, tenantID)
	if err != nil {
		c.logger.Error("failed to read offline data", "kind", kind, "tenant_id", tenantID, "error", err)
		return nil
	}
	return v
}

func (c *Controller) readCached(ctx context.Context, kind string, tenantID uint) (interface{}, error) {
	local := c.engine.Local()
	switch kind {
	case CachedTenant:
		var tenant localstore.Tenant
		if err := local.Get(ctx, &tenant, tenantID); err != nil {
			return nil, ignoreNotFound(err)
		}
		return &tenant, nil
	case CachedBooking:
		booking, err := local.CurrentBooking(ctx, tenantID)
		if err != nil || booking == nil {
			return nil, err
		}
		return booking, nil
	case CachedPayments:
		payments, err := local.PaymentsForTenant(ctx, tenantID)
		if err != nil || len(payments) == 0 {
			return nil, err
		}
		return payments, nil
	case CachedHostel:
		booking, err := local.CurrentBooking(ctx, tenantID)
		if err != nil || booking == nil {
			return nil, err
		}
		var hostel localstore.Hostel
		if err := local.Get(ctx, &hostel, booking.HostelID); err != nil {
			return nil, ignoreNotFound(err)
		}
		return &hostel, nil
	default:
		return nil, nil
	}
}

func ignoreNotFound(err error) error {
	if errors.Is(err, localstore.ErrNotFound) {
		return nil
	}
	return err
}
