package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/beesaferoot/propertyhub/internal/localstore"
	"github.com/beesaferoot/propertyhub/internal/models"
	"github.com/beesaferoot/propertyhub/internal/remote"
)

// Item types reported in ItemError
const (
	ItemPayment = "payment"
	ItemQueue   = "queue"
)

// Counts tallies the outcome of one upload pass
type Counts struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// ItemError describes one item that failed to upload
type ItemError struct {
	Type  string `json:"type"`
	ID    uint   `json:"id"`
	Error string `json:"error"`
}

// UploadResult aggregates both upload passes
type UploadResult struct {
	Payments     Counts      `json:"payments"`
	Queue        Counts      `json:"queue"`
	Errors       []ItemError `json:"errors"`
	GeneralError string      `json:"general_error,omitempty"`
}

// Err returns a *PartialFailureError when any item failed, or nil
func (r UploadResult) Err() error {
	failed := r.Payments.Failed + r.Queue.Failed
	if failed == 0 {
		return nil
	}
	return &PartialFailureError{Succeeded: r.Payments.Success + r.Queue.Success, Failed: failed}
}

// UploadPendingChanges pushes every pending payment and every unsynced queue
// item to rs. The two passes run independently and neither stops at a failed
// item; failures are recorded on the local rows and in the result. The
// returned error is reserved for failures that prevented a pass from running
// at all.
func (e *Engine) UploadPendingChanges(ctx context.Context, identity string, rs remote.Store) (UploadResult, error) {
	var (
		res                        UploadResult
		paymentErrors, queueErrors []ItemError
		g                          errgroup.Group
	)

	g.Go(func() error {
		var err error
		res.Payments, paymentErrors, err = e.uploadPayments(ctx, rs)
		return err
	})
	g.Go(func() error {
		var err error
		res.Queue, queueErrors, err = e.uploadQueue(ctx, rs)
		return err
	})
	err := g.Wait()

	res.Errors = append(paymentErrors, queueErrors...)
	if err != nil {
		res.GeneralError = err.Error()
		e.logger.Error("upload failed", "identity", identity, "error", err)
		return res, err
	}
	if len(res.Errors) > 0 {
		e.logger.Warn("upload finished with failures",
			"identity", identity,
			"payments_failed", res.Payments.Failed,
			"queue_failed", res.Queue.Failed)
	}
	return res, nil
}

func (e *Engine) uploadPayments(ctx context.Context, rs remote.Store) (Counts, []ItemError, error) {
	var (
		counts Counts
		errs   []ItemError
	)

	pending, err := e.local.PendingPayments(ctx)
	if err != nil {
		return counts, nil, fmt.Errorf("failed to read pending payments: %w", err)
	}

	for _, p := range pending {
		serverID, err := uploadPayment(ctx, rs, p)
		if err == nil {
			err = e.local.MarkPaymentSynced(ctx, p.LocalID, serverID, e.timestamp())
		} else if markErr := e.local.MarkPaymentFailed(ctx, p.LocalID, err.Error()); markErr != nil {
			e.logger.Error("failed to record payment failure", "local_id", p.LocalID, "error", markErr)
		}
		if err != nil {
			e.logger.Warn("payment upload failed", "local_id", p.LocalID, "reference", p.ReferenceNumber, "error", err)
			counts.Failed++
			errs = append(errs, ItemError{Type: ItemPayment, ID: p.LocalID, Error: err.Error()})
			continue
		}
		counts.Success++
	}
	return counts, errs, nil
}

// uploadPayment inserts p on the server unless a row with its reference
// number already exists, and returns the server id either way.
func uploadPayment(ctx context.Context, rs remote.Store, p localstore.Payment) (uint, error) {
	if id, err := paymentByReference(ctx, rs, p.ReferenceNumber); err == nil {
		return id, nil
	} else if !errors.Is(err, remote.ErrNotFound) {
		return 0, err
	}

	record := serverPayment(p)
	err := rs.Insert(ctx, models.TablePayments, record)
	if errors.Is(err, remote.ErrDuplicate) {
		return paymentByReference(ctx, rs, p.ReferenceNumber)
	}
	if err != nil {
		return 0, err
	}
	return record.ID, nil
}

func paymentByReference(ctx context.Context, rs remote.Store, reference string) (uint, error) {
	var existing models.Payment
	err := rs.SelectOne(ctx, models.TablePayments, remote.Query{
		Where: map[string]interface{}{"reference_number": reference},
	}, &existing)
	if err != nil {
		return 0, err
	}
	return existing.ID, nil
}

func (e *Engine) uploadQueue(ctx context.Context, rs remote.Store) (Counts, []ItemError, error) {
	var (
		counts Counts
		errs   []ItemError
	)

	items, err := e.local.UnsyncedQueueItems(ctx)
	if err != nil {
		return counts, nil, fmt.Errorf("failed to read sync queue: %w", err)
	}

	for _, item := range items {
		err := applyQueueItem(ctx, rs, item)
		if err == nil {
			err = e.local.MarkQueueItemSynced(ctx, item.ID)
		} else if markErr := e.local.MarkQueueItemFailed(ctx, item.ID, err.Error()); markErr != nil {
			e.logger.Error("failed to record queue failure", "id", item.ID, "error", markErr)
		}
		if err != nil {
			e.logger.Warn("queue item upload failed", "id", item.ID, "entity", item.EntityType, "action", item.Action, "error", err)
			counts.Failed++
			errs = append(errs, ItemError{Type: ItemQueue, ID: item.ID, Error: err.Error()})
			continue
		}
		counts.Success++
	}
	return counts, errs, nil
}

func applyQueueItem(ctx context.Context, rs remote.Store, item localstore.SyncQueueItem) error {
	switch item.Action {
	case localstore.ActionUpdate:
		var fields map[string]interface{}
		if err := json.Unmarshal(item.Data, &fields); err != nil {
			return fmt.Errorf("invalid update payload: %w", err)
		}
		if len(fields) == 0 {
			return fmt.Errorf("empty update payload")
		}
		return rs.Update(ctx, item.EntityType, item.EntityID, fields)
	case localstore.ActionDelete:
		return rs.Delete(ctx, item.EntityType, item.EntityID)
	default:
		return fmt.Errorf("unknown queue action %q", item.Action)
	}
}
