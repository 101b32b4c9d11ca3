// Package session holds the offline session of the signed-in tenant: whether
// offline mode is on, connectivity, the syncing guard and the operations the
// UI invokes. A Controller is built by the application root at start and
// closed at sign-out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/beesaferoot/propertyhub/internal/logging"
	"github.com/beesaferoot/propertyhub/internal/prefs"
	"github.com/beesaferoot/propertyhub/internal/remote"
	"github.com/beesaferoot/propertyhub/internal/syncengine"
)

var (
	ErrPreconditionFailed = errors.New("must be online and signed in to enable offline mode")
	ErrUnauthenticated    = errors.New("user not authenticated")
	ErrOffline            = errors.New("cannot sync while offline")
	ErrSyncInProgress     = errors.New("a sync is already in progress")
	ErrFlushIncomplete    = errors.New("pending changes could not be uploaded")
	ErrInvalidInput       = errors.New("invalid input")
)

// AutoSyncFailed is the error shown when an automatic or manual sync finishes
// with failures
const AutoSyncFailed = "some items failed to sync"

// FlagStore persists the cross-session flags
type FlagStore interface {
	Load(identity string) (prefs.Flags, error)
	Save(identity string, flags prefs.Flags) error
	Clear(identity string) error
}

// State is the value surface the UI renders
type State struct {
	OfflineMode      bool       `json:"offline_mode"`
	Online           bool       `json:"online"`
	Syncing          bool       `json:"syncing"`
	PendingSyncCount int64      `json:"pending_sync_count"`
	LastSyncTime     *time.Time `json:"last_sync_time"`
	LastError        string     `json:"last_error"`
	// Confirmed is false while the mode was only restored from the flags
	// and no sync has succeeded yet in this process.
	Confirmed bool `json:"confirmed"`
}

// Options configures a Controller
type Options struct {
	Identity string
	Online   bool
	Now      func() time.Time
	Logger   *slog.Logger
}

// Controller is the offline session state machine
type Controller struct {
	engine   *syncengine.Engine
	remote   remote.Store
	flags    FlagStore
	identity string
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	subs    map[int]chan State
	nextSub int
	closed  bool
}

// New creates a Controller in the disabled mode. Call Restore to pick up the
// flags of a previous run.
func New(engine *syncengine.Engine, rs remote.Store, flags FlagStore, opts Options) *Controller {
	c := &Controller{
		engine:   engine,
		remote:   rs,
		flags:    flags,
		identity: opts.Identity,
		now:      opts.Now,
		logger:   logging.OrDiscard(opts.Logger),
		state:    State{Online: opts.Online, Confirmed: true},
		subs:     make(map[int]chan State),
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Identity returns the authenticated identity, empty when signed out
func (c *Controller) Identity() string {
	return c.identity
}

// State returns a snapshot of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel receiving the state after every change, and a
// function to stop receiving. Slow readers only see the latest state.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close releases every subscriber
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// update applies fn to the state under the lock and notifies subscribers
func (c *Controller) update(fn func(*State)) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	c.publish()
	return c.state
}

func (c *Controller) publish() {
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- c.state
	}
}

// beginSync takes the syncing guard
func (c *Controller) beginSync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Syncing {
		return ErrSyncInProgress
	}
	c.state.Syncing = true
	c.state.LastError = ""
	c.publish()
	return nil
}

// endSync releases the guard together with the final state changes
func (c *Controller) endSync(fn func(*State)) {
	c.update(func(s *State) {
		if fn != nil {
			fn(s)
		}
		s.Syncing = false
	})
}

func (c *Controller) timestamp() time.Time {
	return c.now().UTC()
}

// Restore re-derives the mode from the flags saved by a previous run. The
// restored mode is advisory until the next successful sync.
func (c *Controller) Restore(ctx context.Context) error {
	if c.identity == "" {
		return nil
	}
	flags, err := c.flags.Load(c.identity)
	if err != nil {
		return fmt.Errorf("failed to restore offline flags: %w", err)
	}
	if !flags.OfflineMode {
		return nil
	}

	pending, err := c.engine.PendingCount(ctx)
	if err != nil {
		c.logger.Warn("failed to count pending changes", "error", err)
	}
	c.update(func(s *State) {
		s.OfflineMode = true
		s.LastSyncTime = flags.LastSync
		s.PendingSyncCount = pending
		s.Confirmed = false
	})
	c.logger.Info("offline mode restored", "identity", c.identity, "last_sync", flags.LastSync)
	return nil
}

// Enable downloads a snapshot of the tenant's data and turns offline mode on
func (c *Controller) Enable(ctx context.Context) error {
	if c.identity == "" || !c.State().Online {
		c.update(func(s *State) { s.LastError = ErrPreconditionFailed.Error() })
		return ErrPreconditionFailed
	}
	if err := c.beginSync(); err != nil {
		return err
	}

	var final func(*State)
	defer func() { c.endSync(final) }()

	if _, err := c.engine.DownloadSnapshot(ctx, c.identity, c.remote); err != nil {
		final = func(s *State) { s.LastError = err.Error() }
		return err
	}

	at := c.timestamp()
	if err := c.flags.Save(c.identity, prefs.Flags{OfflineMode: true, LastSync: &at}); err != nil {
		c.logger.Error("failed to persist offline flags", "error", err)
	}
	pending, err := c.engine.PendingCount(ctx)
	if err != nil {
		c.logger.Warn("failed to count pending changes", "error", err)
	}
	final = func(s *State) {
		s.OfflineMode = true
		s.LastSyncTime = &at
		s.PendingSyncCount = pending
		s.Confirmed = true
	}
	c.logger.Info("offline mode enabled", "identity", c.identity)
	return nil
}

// DisableOptions tunes Disable
type DisableOptions struct {
	// KeepOnFlushFailure leaves offline mode and the cache untouched when
	// the final upload could not send everything.
	KeepOnFlushFailure bool
}

// Disable uploads pending changes when possible, then purges the cache and
// turns offline mode off. The result of the final upload is returned when
// one was attempted.
func (c *Controller) Disable(ctx context.Context, opts DisableOptions) (*syncengine.UploadResult, error) {
	if err := c.beginSync(); err != nil {
		return nil, err
	}

	var final func(*State)
	defer func() { c.endSync(final) }()

	var (
		flush    *syncengine.UploadResult
		flushErr error
	)
	if c.State().Online && c.identity != "" {
		res, err := c.engine.UploadPendingChanges(ctx, c.identity, c.remote)
		flush = &res
		if err == nil {
			err = res.Err()
		}
		if err != nil {
			c.logger.Warn("final upload before disabling was incomplete", "identity", c.identity, "error", err)
			flushErr = err
		}
	} else if opts.KeepOnFlushFailure {
		pending, err := c.engine.PendingCount(ctx)
		if err == nil && pending > 0 {
			err = fmt.Errorf("%d changes pending while offline", pending)
		}
		flushErr = err
	}

	if opts.KeepOnFlushFailure && flushErr != nil {
		final = func(s *State) { s.LastError = ErrFlushIncomplete.Error() }
		return flush, fmt.Errorf("%w: %v", ErrFlushIncomplete, flushErr)
	}

	if err := c.engine.Local().ClearAll(ctx); err != nil {
		final = func(s *State) { s.LastError = err.Error() }
		return flush, fmt.Errorf("failed to clear offline data: %w", err)
	}
	if c.identity != "" {
		if err := c.flags.Clear(c.identity); err != nil {
			c.logger.Error("failed to clear offline flags", "error", err)
		}
	}

	final = func(s *State) {
		s.OfflineMode = false
		s.PendingSyncCount = 0
		s.LastSyncTime = nil
		s.Confirmed = true
	}
	c.logger.Info("offline mode disabled", "identity", c.identity)
	return flush, nil
}

// ManualSync runs a full sync now
func (c *Controller) ManualSync(ctx context.Context) (syncengine.FullSyncResult, error) {
	if !c.State().Online {
		c.update(func(s *State) { s.LastError = ErrOffline.Error() })
		return syncengine.FullSyncResult{}, ErrOffline
	}
	return c.autoSync(ctx)
}

// SetOnline records a connectivity transition. Going online with offline
// mode on syncs before returning; going offline only flips the flag.
func (c *Controller) SetOnline(ctx context.Context, online bool) {
	var wentOnline, enabled bool
	c.update(func(s *State) {
		wentOnline = online && !s.Online
		enabled = s.OfflineMode
		s.Online = online
	})
	c.logger.Info("connectivity changed", "online", online)

	if !wentOnline || !enabled || c.identity == "" {
		return
	}
	if _, err := c.autoSync(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
		c.logger.Warn("automatic sync failed", "error", err)
	}
}

func (c *Controller) autoSync(ctx context.Context) (syncengine.FullSyncResult, error) {
	if c.identity == "" {
		return syncengine.FullSyncResult{}, ErrUnauthenticated
	}
	if err := c.beginSync(); err != nil {
		return syncengine.FullSyncResult{}, err
	}

	var final func(*State)
	defer func() { c.endSync(final) }()

	res := c.engine.FullSync(ctx, c.identity, c.remote)
	enabled := c.State().OfflineMode
	pending := c.pendingCount(ctx, enabled)
	if !res.Success {
		c.logger.Warn("sync finished with failures", "identity", c.identity, "error", res.Err())
		final = func(s *State) {
			s.LastError = AutoSyncFailed
			s.PendingSyncCount = pending
		}
		return res, res.Err()
	}

	at := c.timestamp()
	if enabled {
		if err := c.flags.Save(c.identity, prefs.Flags{OfflineMode: true, LastSync: &at}); err != nil {
			c.logger.Error("failed to persist offline flags", "error", err)
		}
	}
	final = func(s *State) {
		s.LastSyncTime = &at
		s.PendingSyncCount = pending
		s.Confirmed = true
	}
	return res, nil
}

func (c *Controller) pendingCount(ctx context.Context, enabled bool) int64 {
	if !enabled {
		return 0
	}
	n, err := c.engine.PendingCount(ctx)
	if err != nil {
		c.logger.Warn("failed to count pending changes", "error", err)
		return c.State().PendingSyncCount
	}
	return n
}

// refreshPending recomputes the pending count shown to the UI
func (c *Controller) refreshPending(ctx context.Context) {
	pending := c.pendingCount(ctx, c.State().OfflineMode)
	c.update(func(s *State) { s.PendingSyncCount = pending })
}

// ClearError resets the user-visible error
func (c *Controller) ClearError() {
	c.update(func(s *State) { s.LastError = "" })
}
