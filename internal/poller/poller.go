package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/chaintrader/internal/book"
	"github.com/rickgao/chaintrader/internal/ledger"
	"github.com/rickgao/chaintrader/internal/model"
	"github.com/rickgao/chaintrader/internal/rest"
)

// MarketSource provides the markets to poll.
type MarketSource interface {
	Trading() []rest.Market
}

// Snapshot is one fresh book projection.
type Snapshot struct {
	MarketAppID int64
	Book        model.Orderbook
	TakenAt     time.Time
}

// SnapshotHandler receives fresh projections.
type SnapshotHandler interface {
	HandleSnapshot(snapshot Snapshot) error
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(Snapshot) error

func (f SnapshotHandlerFunc) HandleSnapshot(s Snapshot) error {
	return f(s)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 1m)
	Concurrency int           // Max concurrent markets (default: 10)
	Timeout     time.Duration // Per-market timeout (default: 15s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		Concurrency: 10,
		Timeout:     15 * time.Second,
	}
}

// Poller periodically projects orderbooks from the ledger.
type Poller struct {
	cfg     Config
	lgr     ledger.Ledger
	markets MarketSource
	handler SnapshotHandler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, lgr ledger.Ledger, markets MarketSource, handler SnapshotHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		lgr:     lgr,
		markets: markets,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("book poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("book poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll projects books for all trading markets concurrently.
func (p *Poller) pollAll() {
	start := time.Now()

	markets := p.markets.Trading()
	if len(markets) == 0 {
		p.logger.Debug("no trading markets to poll")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, errors atomic.Int64

	for _, market := range markets {
		wg.Add(1)
		go func(appID int64) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			if err := p.pollMarket(appID); err != nil {
				p.logger.Warn("failed to poll market",
					"app_id", appID,
					"err", err,
				)
				errors.Add(1)
				return
			}

			fetched.Add(1)
		}(market.AppID)
	}

	wg.Wait()

	p.logger.Info("poll cycle complete",
		"markets", len(markets),
		"fetched", fetched.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

// pollMarket projects and handles a single market's book.
func (p *Poller) pollMarket(appID int64) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	b, err := book.LoadBook(ctx, p.lgr, appID, p.logger)
	if err != nil {
		return err
	}

	if p.handler != nil {
		return p.handler.HandleSnapshot(Snapshot{
			MarketAppID: appID,
			Book:        b,
			TakenAt:     time.Now(),
		})
	}

	return nil
}
