package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeBatchResults answers every queued statement with one inserted row.
type fakeBatchResults struct {
	execs int
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	r.execs++
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (r *fakeBatchResults) Close() error             { return nil }

type batchSend struct {
	ctx  context.Context
	size int
}

// fakeBatchConn records each SendBatch call and the context it arrived on.
type fakeBatchConn struct {
	mu    sync.Mutex
	sends []batchSend
}

func (c *fakeBatchConn) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, batchSend{ctx: ctx, size: b.Len()})
	return &fakeBatchResults{}
}

func TestRecord_Accumulates(t *testing.T) {
	j := New(Config{BatchSize: 10, FlushInterval: time.Hour}, nil, nil)

	j.Record(Entry{TradeID: uuid.New(), MarketAppID: 777, Position: "yes"})
	j.Record(Entry{TradeID: uuid.New(), MarketAppID: 777, Position: "no"})

	if got := j.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}
}

func TestRecord_StampsSubmittedAt(t *testing.T) {
	j := New(Config{BatchSize: 10, FlushInterval: time.Hour}, nil, nil)

	before := time.Now()
	j.Record(Entry{TradeID: uuid.New()})

	j.batchMu.Lock()
	stamped := j.batch[0].SubmittedAt
	j.batchMu.Unlock()

	if stamped.Before(before) {
		t.Errorf("SubmittedAt = %v, want stamped at record time", stamped)
	}
}

func TestRecord_KeepsExplicitSubmittedAt(t *testing.T) {
	j := New(Config{BatchSize: 10, FlushInterval: time.Hour}, nil, nil)

	at := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	j.Record(Entry{TradeID: uuid.New(), SubmittedAt: at})

	j.batchMu.Lock()
	stamped := j.batch[0].SubmittedAt
	j.batchMu.Unlock()

	if !stamped.Equal(at) {
		t.Errorf("SubmittedAt = %v, want %v", stamped, at)
	}
}

func TestFlush_EmptyBatchIsNoOp(t *testing.T) {
	j := New(DefaultConfig(), nil, nil)
	// Must not touch the nil pool when there is nothing to write.
	j.flush(context.Background())
	if got := j.Stats().Flushes; got != 0 {
		t.Errorf("Flushes = %d, want 0", got)
	}
}

func TestFlush_WritesBatch(t *testing.T) {
	conn := &fakeBatchConn{}
	j := New(Config{BatchSize: 10, FlushInterval: time.Hour}, nil, nil)
	j.db = conn

	j.Record(Entry{TradeID: uuid.New()})
	j.Record(Entry{TradeID: uuid.New()})
	j.flush(context.Background())

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.sends) != 1 || conn.sends[0].size != 2 {
		t.Fatalf("sends = %+v, want one batch of 2", conn.sends)
	}
	if got := j.Stats().Inserts; got != 2 {
		t.Errorf("Inserts = %d, want 2", got)
	}
	if got := j.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0 after flush", got)
	}
}

func TestStop_FlushesLastBatchOnLiveContext(t *testing.T) {
	conn := &fakeBatchConn{}
	j := New(Config{BatchSize: 100, FlushInterval: time.Hour}, nil, nil)
	j.db = conn

	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	j.Record(Entry{TradeID: uuid.New(), MarketAppID: 777})

	if err := j.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.sends) != 1 {
		t.Fatalf("sends = %d, want 1 shutdown flush", len(conn.sends))
	}
	// The loop context is cancelled by Stop; the shutdown flush must not
	// ride on it or the final batch is always lost.
	if err := conn.sends[0].ctx.Err(); err != nil {
		t.Errorf("shutdown flush ctx already dead: %v", err)
	}
	if got := j.Stats().Inserts; got != 1 {
		t.Errorf("Inserts = %d, want 1", got)
	}
}
