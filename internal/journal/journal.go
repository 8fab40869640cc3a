// Package journal persists submitted settlements to PostgreSQL for audit
// and analysis. Journaling is best-effort bookkeeping: a failed insert is
// logged and counted, never surfaced to the trading path.
package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one journaled trade: a settlement submitted by this wallet or a
// fill observed on the event feed. Feed-observed rows leave the settlement
// fields (EscrowAppID, Slippage, Funded, Fee, Fills, ConfirmedRound) zero.
type Entry struct {
	TradeID        uuid.UUID
	MarketAppID    int64
	EscrowAppID    int64 // 0 = unresolved at submission time
	Buying         bool
	Position       string // "yes" or "no"
	Price          int64
	Quantity       int64
	Slippage       int64
	Funded         int64
	Fee            int64
	Fills          int
	ConfirmedRound int64
	SubmittedAt    time.Time
}

// Config holds journal batching settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
	}
}

// Metrics counts journal activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

// batchConn is the slice of pgxpool.Pool the journal writes through.
type batchConn interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Journal batches settlement entries and writes them to the trades table.
type Journal struct {
	cfg    Config
	logger *slog.Logger
	db     batchConn

	batch       []Entry
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates a Journal writing through the given pool.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Journal{
		cfg:    cfg,
		logger: logger,
		batch:  make([]Entry, 0, cfg.BatchSize),
	}
	if db != nil {
		j.db = db
	}
	return j
}

// Start begins the periodic flush loop.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.flushTicker = time.NewTicker(j.cfg.FlushInterval)

	j.wg.Add(1)
	go j.flushLoop()

	j.logger.Info("journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop flushes pending entries and shuts down.
func (j *Journal) Stop(ctx context.Context) error {
	if j.cancel != nil {
		j.cancel()
	}
	if j.flushTicker != nil {
		j.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		j.logger.Warn("journal stop timed out")
	}

	// The loop context is already cancelled; the final flush runs on the
	// caller's ctx so the last batch still lands.
	j.flush(ctx)
	j.logger.Info("journal stopped")
	return nil
}

// Record queues one settlement entry.
func (j *Journal) Record(e Entry) {
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = time.Now()
	}

	j.batchMu.Lock()
	j.batch = append(j.batch, e)
	shouldFlush := len(j.batch) >= j.cfg.BatchSize
	j.batchMu.Unlock()

	if shouldFlush {
		j.flush(j.ctx)
	}
}

// Pending returns the number of queued, unflushed entries.
func (j *Journal) Pending() int {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	return len(j.batch)
}

// Stats returns current metrics.
func (j *Journal) Stats() Metrics {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	return j.metrics
}

// flushLoop periodically flushes the batch.
func (j *Journal) flushLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-j.flushTicker.C:
			j.flush(j.ctx)
		}
	}
}

// flush writes the current batch to the database.
func (j *Journal) flush(ctx context.Context) {
	j.batchMu.Lock()
	if j.db == nil || len(j.batch) == 0 {
		j.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := j.batch
	j.batch = make([]Entry, 0, j.cfg.BatchSize)
	j.batchMu.Unlock()

	start := time.Now()

	conflicts, err := j.batchInsert(ctx, batch)
	if err != nil {
		j.logger.Error("journal insert failed", "error", err, "count", len(batch))
		j.batchMu.Lock()
		j.metrics.Errors++
		j.batchMu.Unlock()
		return
	}

	j.batchMu.Lock()
	j.metrics.Inserts += int64(len(batch) - conflicts)
	j.metrics.Conflicts += int64(conflicts)
	j.metrics.Flushes++
	j.batchMu.Unlock()

	j.logger.Debug("flushed settlements",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts entries using pgx.Batch with ON CONFLICT DO NOTHING.
func (j *Journal) batchInsert(ctx context.Context, entries []Entry) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO settlements (trade_id, market_app_id, escrow_app_id, buying, position,
				price, quantity, slippage, funded, fee, fills, confirmed_round, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (trade_id) DO NOTHING
		`, e.TradeID, e.MarketAppID, e.EscrowAppID, e.Buying, e.Position,
			e.Price, e.Quantity, e.Slippage, e.Funded, e.Fee, e.Fills,
			e.ConfirmedRound, e.SubmittedAt.UnixMicro())
	}

	results := j.db.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
