// Package markets maintains an in-memory registry of market metadata from
// the partner API: an initial paginated sync, then periodic reconciliation.
package markets

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/chaintrader/internal/rest"
)

// Lister is the slice of the REST client the registry needs.
type Lister interface {
	GetAllMarketsWithOptions(ctx context.Context, opts rest.GetMarketsOptions) ([]rest.Market, error)
}

// Config holds registry configuration.
type Config struct {
	ReconcileInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval: 5 * time.Minute,
	}
}

// Change describes one observed market transition.
type Change struct {
	AppID     int64
	OldStatus string
	NewStatus string
}

// Registry caches market metadata and notifies on status changes.
type Registry struct {
	cfg    Config
	rest   Lister
	logger *slog.Logger

	mu         sync.RWMutex
	markets    map[int64]rest.Market
	lastSyncAt time.Time

	changes chan Change

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Registry backed by the given REST client.
func New(cfg Config, lister Lister, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:     cfg,
		rest:    lister,
		logger:  logger,
		markets: make(map[int64]rest.Market),
		changes: make(chan Change, 256),
	}
}

// Start runs the initial sync, then reconciles in the background.
func (r *Registry) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.sync(r.ctx); err != nil {
		r.cancel()
		return err
	}

	r.wg.Add(1)
	go r.reconcileLoop()

	r.logger.Info("market registry started",
		"markets", r.Len(),
		"reconcile_interval", r.cfg.ReconcileInterval,
	)
	return nil
}

// Stop gracefully shuts down.
func (r *Registry) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("market registry stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns a market by application ID.
func (r *Registry) Get(appID int64) (rest.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[appID]
	return m, ok
}

// Trading returns all markets currently open for trading.
func (r *Registry) Trading() []rest.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []rest.Market
	for _, m := range r.markets {
		if m.Status == "trading" {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of cached markets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// Changes returns the market transition channel. Transitions are dropped,
// not blocked on, when the channel is full.
func (r *Registry) Changes() <-chan Change {
	return r.changes
}

// reconcileLoop refreshes the cache on a fixed interval.
func (r *Registry) reconcileLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.sync(r.ctx); err != nil {
				r.logger.Warn("market reconcile failed", "error", err)
			}
		}
	}
}

// sync fetches all markets and applies them to the cache.
func (r *Registry) sync(ctx context.Context) error {
	start := time.Now()

	fetched, err := r.rest.GetAllMarketsWithOptions(ctx, rest.GetMarketsOptions{})
	if err != nil {
		return err
	}

	r.mu.Lock()
	for _, m := range fetched {
		old, known := r.markets[m.AppID]
		r.markets[m.AppID] = m

		if known && old.Status != m.Status {
			select {
			case r.changes <- Change{AppID: m.AppID, OldStatus: old.Status, NewStatus: m.Status}:
			default:
				r.logger.Warn("change channel full, dropping transition", "app_id", m.AppID)
			}
		}
	}
	r.lastSyncAt = time.Now()
	r.mu.Unlock()

	r.logger.Debug("market sync complete",
		"markets", len(fetched),
		"duration", time.Since(start),
	)
	return nil
}
