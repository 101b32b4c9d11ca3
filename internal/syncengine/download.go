package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beesaferoot/propertyhub/internal/models"
	"github.com/beesaferoot/propertyhub/internal/remote"
)

// DownloadResult counts the rows a download wrote
type DownloadResult struct {
	TenantID  uint      `json:"tenant_id"`
	Bookings  int       `json:"bookings"`
	Rooms     int       `json:"rooms"`
	Hostels   int       `json:"hostels"`
	Landlords int       `json:"landlords"`
	Payments  int       `json:"payments"`
	SyncedAt  time.Time `json:"synced_at"`
}

// DownloadSnapshot caches the tenant identified by identity together with
// their bookings (with room, hostel and landlord) and their most recent
// payments. Every row is overwritten and stamped with the same synced_at.
// A failure part way leaves the rows already written in place; running the
// download again converges to the same state.
func (e *Engine) DownloadSnapshot(ctx context.Context, identity string, rs remote.Store) (DownloadResult, error) {
	res := DownloadResult{SyncedAt: e.timestamp()}
	at := res.SyncedAt

	var tenant models.Tenant
	err := rs.SelectOne(ctx, models.TableTenants, remote.Query{
		Where: map[string]interface{}{"clerk_user_id": identity},
	}, &tenant)
	if errors.Is(err, remote.ErrNotFound) {
		return res, fmt.Errorf("%w: %s", ErrNotFound, identity)
	}
	if err != nil {
		return res, e.downloadFailed(identity, remoteErr("download tenant", err))
	}
	if err := e.local.Put(ctx, cachedTenant(tenant, at)); err != nil {
		return res, e.downloadFailed(identity, fmt.Errorf("failed to cache tenant: %w", err))
	}
	res.TenantID = tenant.ID

	var bookings []models.Booking
	err = rs.SelectWhere(ctx, models.TableBookings, remote.Query{
		Where:   map[string]interface{}{"tenant_id": tenant.ID},
		Preload: []string{"Room", "Hostel", "Hostel.Landlord"},
	}, &bookings)
	if err != nil {
		return res, e.downloadFailed(identity, remoteErr("download bookings", err))
	}
	for _, b := range bookings {
		if err := e.local.Put(ctx, cachedBooking(b, at)); err != nil {
			return res, e.downloadFailed(identity, fmt.Errorf("failed to cache booking %d: %w", b.ID, err))
		}
		res.Bookings++

		if b.Room != nil {
			if err := e.local.Put(ctx, cachedRoom(*b.Room, at)); err != nil {
				return res, e.downloadFailed(identity, fmt.Errorf("failed to cache room %d: %w", b.Room.ID, err))
			}
			res.Rooms++
		}
		if b.Hostel != nil {
			if err := e.local.Put(ctx, cachedHostel(*b.Hostel, at)); err != nil {
				return res, e.downloadFailed(identity, fmt.Errorf("failed to cache hostel %d: %w", b.Hostel.ID, err))
			}
			res.Hostels++

			if l := b.Hostel.Landlord; l != nil {
				if err := e.local.Put(ctx, cachedLandlord(*l, at)); err != nil {
					return res, e.downloadFailed(identity, fmt.Errorf("failed to cache landlord %d: %w", l.ID, err))
				}
				res.Landlords++
			}
		}
	}

	var payments []models.Payment
	err = rs.SelectWhere(ctx, models.TablePayments, remote.Query{
		Where: map[string]interface{}{"tenant_id": tenant.ID},
		Order: "-created_at",
		Limit: e.limit,
	}, &payments)
	if err != nil {
		return res, e.downloadFailed(identity, remoteErr("download payments", err))
	}
	for _, p := range payments {
		if err := e.local.Put(ctx, cachedPayment(p, at)); err != nil {
			return res, e.downloadFailed(identity, fmt.Errorf("failed to cache payment %d: %w", p.ID, err))
		}
		res.Payments++
	}

	e.logger.Info("snapshot downloaded",
		"identity", identity,
		"bookings", res.Bookings,
		"payments", res.Payments)
	return res, nil
}

func (e *Engine) downloadFailed(identity string, err error) error {
	e.logger.Error("snapshot download failed", "identity", identity, "error", err)
	return err
}
