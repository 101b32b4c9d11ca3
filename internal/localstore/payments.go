package localstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/beesaferoot/propertyhub/internal/models"
)

// PendingPayments returns every payment waiting for upload, oldest first
func (s *Store) PendingPayments(ctx context.Context) ([]Payment, error) {
	var payments []Payment
	err := s.Query(ctx, TablePayments, Query{
		Where: map[string]interface{}{"sync_status": SyncStatusPending},
		Order: "local_id",
	}, &payments)
	return payments, err
}

// PaymentsForTenant returns the cached payments of a tenant, newest first
func (s *Store) PaymentsForTenant(ctx context.Context, tenantID uint) ([]Payment, error) {
	var payments []Payment
	err := s.Query(ctx, TablePayments, Query{
		Where: map[string]interface{}{"tenant_id": tenantID},
		Order: "-created_at",
	}, &payments)
	return payments, err
}

// MarkPaymentSynced records the server id of an uploaded payment in place.
// A copy of the same server row brought in by an earlier download is
// dropped so the locally recorded row keeps its identity.
func (s *Store) MarkPaymentSynced(ctx context.Context, localID, serverID uint, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND local_id <> ?", serverID, localID).Delete(&Payment{}).Error
		if err != nil {
			return err
		}
		res := tx.Model(&Payment{}).Where("local_id = ?", localID).Updates(map[string]interface{}{
			"id":          serverID,
			"sync_status": SyncStatusSynced,
			"sync_error":  "",
			"synced_at":   at,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s %d", ErrNotFound, TablePayments, localID)
		}
		return nil
	})
}

// MarkPaymentFailed records why an upload failed
func (s *Store) MarkPaymentFailed(ctx context.Context, localID uint, reason string) error {
	return s.Update(ctx, TablePayments, localID, map[string]interface{}{
		"sync_status": SyncStatusFailed,
		"sync_error":  reason,
	})
}

// RequeueFailedPayments moves every failed payment back to pending and
// returns how many were moved.
func (s *Store) RequeueFailedPayments(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Payment{}).
		Where("sync_status = ?", SyncStatusFailed).
		Updates(map[string]interface{}{"sync_status": SyncStatusPending, "sync_error": ""})
	return res.RowsAffected, res.Error
}

// UnsyncedQueueItems returns every queued mutation not yet applied remotely, oldest first
func (s *Store) UnsyncedQueueItems(ctx context.Context) ([]SyncQueueItem, error) {
	var items []SyncQueueItem
	err := s.Query(ctx, TableSyncQueue, Query{
		Where: map[string]interface{}{"synced": 0},
		Order: "id",
	}, &items)
	return items, err
}

// MarkQueueItemSynced flags a queued mutation as applied
func (s *Store) MarkQueueItemSynced(ctx context.Context, id uint) error {
	return s.Update(ctx, TableSyncQueue, id, map[string]interface{}{"synced": 1, "sync_error": ""})
}

// MarkQueueItemFailed keeps a queued mutation pending and records the failure
func (s *Store) MarkQueueItemFailed(ctx context.Context, id uint, reason string) error {
	return s.Update(ctx, TableSyncQueue, id, map[string]interface{}{"sync_error": reason})
}

// PendingCount is the number of pending payments plus unsynced queue items.
// Both lookups are served by the sync_status and synced indexes.
func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	payments, err := s.Count(ctx, TablePayments, Query{
		Where: map[string]interface{}{"sync_status": SyncStatusPending},
	})
	if err != nil {
		return 0, err
	}
	queued, err := s.Count(ctx, TableSyncQueue, Query{
		Where: map[string]interface{}{"synced": 0},
	})
	if err != nil {
		return 0, err
	}
	return payments + queued, nil
}

// CurrentBooking returns the tenant's active or confirmed booking, or nil
func (s *Store) CurrentBooking(ctx context.Context, tenantID uint) (*Booking, error) {
	var bookings []Booking
	err := s.Query(ctx, TableBookings, Query{
		Where: map[string]interface{}{
			"tenant_id": tenantID,
			"status":    []string{models.BookingActive, models.BookingConfirmed},
		},
		Order: "id",
		Limit: 1,
	}, &bookings)
	if err != nil || len(bookings) == 0 {
		return nil, err
	}
	return &bookings[0], nil
}
