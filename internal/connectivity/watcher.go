// Package connectivity turns probe results and pushed online/offline signals
// into transitions delivered to a Listener.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/beesaferoot/propertyhub/internal/logging"
	"github.com/beesaferoot/propertyhub/internal/remote"
)

// DefaultInterval is the time between two probes
const DefaultInterval = 10 * time.Second

// Prober reports whether the server of record is reachable
type Prober interface {
	Probe(ctx context.Context) error
}

// Listener receives connectivity transitions
type Listener interface {
	SetOnline(ctx context.Context, online bool)
}

// HTTPProber considers the network up when URL answers with a non-5xx status
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func (p HTTPProber) Probe(ctx context.Context) error {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe %s: status %d", p.URL, resp.StatusCode)
	}
	return nil
}

// PingProber probes the remote store directly
type PingProber struct {
	Pinger remote.Pinger
}

func (p PingProber) Probe(ctx context.Context) error {
	return p.Pinger.Ping(ctx)
}

// Options configures a Watcher
type Options struct {
	Interval time.Duration
	// Initial seeds the last known state. When nil the first observation is
	// always delivered.
	Initial *bool
	Logger  *slog.Logger
}

// Watcher delivers a transition to its listener whenever the observed state
// differs from the last one delivered.
type Watcher struct {
	prober   Prober
	listener Listener
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	known   bool
	online  bool
	changes int
}

// NewWatcher creates a Watcher
func NewWatcher(prober Prober, listener Listener, opts Options) *Watcher {
	w := &Watcher{
		prober:   prober,
		listener: listener,
		interval: opts.Interval,
		logger:   logging.OrDiscard(opts.Logger),
	}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	if opts.Initial != nil {
		w.known = true
		w.online = *opts.Initial
	}
	return w
}

// Online returns the last known state
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Transitions returns how many transitions were delivered
func (w *Watcher) Transitions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changes
}

// Report records an observation pushed by the platform. It returns true when
// the observation was a transition.
func (w *Watcher) Report(ctx context.Context, online bool) bool {
	w.mu.Lock()
	if w.known && w.online == online {
		w.mu.Unlock()
		return false
	}
	w.known = true
	w.online = online
	w.changes++
	w.mu.Unlock()

	w.logger.Info("connectivity transition", "online", online)
	if w.listener != nil {
		w.listener.SetOnline(ctx, online)
	}
	return true
}

// Check probes once and reports the result
func (w *Watcher) Check(ctx context.Context) bool {
	if w.prober == nil {
		return w.Online()
	}
	err := w.prober.Probe(ctx)
	if err != nil {
		w.logger.Debug("connectivity probe failed", "error", err)
	}
	online := err == nil
	w.Report(ctx, online)
	return online
}

// Run probes immediately and then on every interval until ctx is done
func (w *Watcher) Run(ctx context.Context) {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}
