// Package syncengine moves a tenant's data between the on-device cache and
// the server of record: download of a fresh snapshot, upload of everything
// recorded offline, and the combined upload-then-download sync.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/beesaferoot/propertyhub/internal/localstore"
	"github.com/beesaferoot/propertyhub/internal/logging"
	"github.com/beesaferoot/propertyhub/internal/remote"
)

// DefaultPaymentHistoryLimit is how many recent payments a download caches
const DefaultPaymentHistoryLimit = 50

var (
	ErrNotFound          = errors.New("tenant has no remote record")
	ErrRemoteUnavailable = errors.New("remote store unavailable")
)

// PartialFailureError reports an upload in which some items failed. It is
// informational: failed items stay local for the next attempt.
type PartialFailureError struct {
	Succeeded int
	Failed    int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d of %d items failed to sync", e.Failed, e.Succeeded+e.Failed)
}

// Options tunes an Engine
type Options struct {
	PaymentHistoryLimit int
	Now                 func() time.Time
	Logger              *slog.Logger
}

// Engine runs the synchronization protocol against one local store
type Engine struct {
	local  *localstore.Store
	limit  int
	now    func() time.Time
	logger *slog.Logger
}

// New creates an Engine over local
func New(local *localstore.Store, opts Options) *Engine {
	e := &Engine{
		local:  local,
		limit:  opts.PaymentHistoryLimit,
		now:    opts.Now,
		logger: logging.OrDiscard(opts.Logger),
	}
	if e.limit <= 0 {
		e.limit = DefaultPaymentHistoryLimit
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Local returns the store the engine writes to
func (e *Engine) Local() *localstore.Store {
	return e.local
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

// PendingCount is the number of payments and queued mutations awaiting upload
func (e *Engine) PendingCount(ctx context.Context) (int64, error) {
	return e.local.PendingCount(ctx)
}

// FullSyncResult aggregates an upload followed by a download
type FullSyncResult struct {
	Upload      UploadResult
	UploadErr   error
	Download    DownloadResult
	DownloadErr error
	// Success requires a clean download and no failed payment uploads.
	// Failed queue items do not clear it.
	Success bool
}

// Err summarizes why the sync was not successful, or nil
func (r FullSyncResult) Err() error {
	if r.Success {
		return nil
	}
	var partial error
	if r.Upload.Payments.Failed > 0 {
		partial = r.Upload.Err()
	}
	return errors.Join(r.UploadErr, r.DownloadErr, partial)
}

// FullSync uploads pending changes and then downloads a fresh snapshot, so
// local edits reach the server before the cache is overwritten.
func (e *Engine) FullSync(ctx context.Context, identity string, rs remote.Store) FullSyncResult {
	var res FullSyncResult
	res.Upload, res.UploadErr = e.UploadPendingChanges(ctx, identity, rs)
	res.Download, res.DownloadErr = e.DownloadSnapshot(ctx, identity, rs)
	res.Success = res.UploadErr == nil && res.DownloadErr == nil && res.Upload.Payments.Failed == 0
	e.logger.Info("full sync finished",
		"identity", identity,
		"success", res.Success,
		"payments_uploaded", res.Upload.Payments.Success,
		"payments_failed", res.Upload.Payments.Failed,
		"queue_failed", res.Upload.Queue.Failed)
	return res
}

// remoteErr classifies a failed remote call
func remoteErr(step string, err error) error {
	if errors.Is(err, ErrRemoteUnavailable) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %v", step, ErrRemoteUnavailable, err)
}
