package syncengine

import (
	"time"

	"github.com/beesaferoot/propertyhub/internal/localstore"
	"github.com/beesaferoot/propertyhub/internal/models"
)

func cachedTenant(t models.Tenant, at time.Time) *localstore.Tenant {
	return &localstore.Tenant{
		ID:          t.ID,
		ClerkUserID: t.ClerkUserID,
		FirstName:   t.FirstName,
		LastName:    t.LastName,
		Email:       t.Email,
		Phone:       t.Phone,
		SyncedAt:    &at,
	}
}

func cachedLandlord(l models.Landlord, at time.Time) *localstore.Landlord {
	return &localstore.Landlord{
		ID:          l.ID,
		ClerkUserID: l.ClerkUserID,
		Name:        l.Name,
		Email:       l.Email,
		Phone:       l.Phone,
		SyncedAt:    &at,
	}
}

func cachedHostel(h models.Hostel, at time.Time) *localstore.Hostel {
	return &localstore.Hostel{
		ID:             h.ID,
		LandlordID:     h.LandlordID,
		Name:           h.Name,
		Address:        h.Address,
		City:           h.City,
		TotalUnits:     h.TotalUnits,
		AvailableUnits: h.AvailableUnits,
		UnitPrice:      h.UnitPrice,
		Description:    h.Description,
		SyncedAt:       &at,
	}
}

func cachedRoom(r models.Room, at time.Time) *localstore.Room {
	return &localstore.Room{
		ID:         r.ID,
		HostelID:   r.HostelID,
		RoomNumber: r.RoomNumber,
		Capacity:   r.Capacity,
		Price:      r.Price,
		IsVacant:   r.IsVacant,
		SyncedAt:   &at,
	}
}

func cachedBooking(b models.Booking, at time.Time) *localstore.Booking {
	return &localstore.Booking{
		ID:         b.ID,
		TenantID:   b.TenantID,
		HostelID:   b.HostelID,
		RoomID:     b.RoomID,
		Status:     b.Status,
		RentAmount: b.RentAmount,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		SyncedAt:   &at,
	}
}

// cachedPayment marks a server-side payment as synced: it originated on the server
func cachedPayment(p models.Payment, at time.Time) *localstore.Payment {
	id := p.ID
	return &localstore.Payment{
		ID:              &id,
		BookingID:       p.BookingID,
		TenantID:        p.TenantID,
		Amount:          p.Amount,
		PaymentMethod:   p.PaymentMethod,
		PaymentDate:     p.PaymentDate,
		ReferenceNumber: p.ReferenceNumber,
		Status:          p.Status,
		SyncStatus:      localstore.SyncStatusSynced,
		CreatedAt:       p.CreatedAt,
		SyncedAt:        &at,
	}
}

// serverPayment maps a locally recorded payment to the row the server stores.
// LocalID stays on the device.
func serverPayment(p localstore.Payment) *models.Payment {
	return &models.Payment{
		BookingID:       p.BookingID,
		TenantID:        p.TenantID,
		Amount:          p.Amount,
		PaymentMethod:   p.PaymentMethod,
		PaymentDate:     p.PaymentDate,
		ReferenceNumber: p.ReferenceNumber,
		Status:          models.PaymentPending,
	}
}
