package trade

import (
	"encoding/binary"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rickgao/chaintrader/internal/config"
	"github.com/rickgao/chaintrader/internal/ledger"
	"github.com/rickgao/chaintrader/internal/retry"
)

// Flat ledger fee per inner operation, in native microunits. The guarantee
// payment fronts these costs so the contract's inner operations never fail
// on fee budget.
const (
	baseOpFee       = 1_000
	escrowCreateFee = 4 * baseOpFee
	matchFeeBuy     = 2 * baseOpFee
	// The sell path settles both legs through the counterparty escrow and
	// runs twice the inner operations of the buy path.
	matchFeeSell = 2 * matchFeeBuy
)

// Market contract entry points.
var (
	methodOrder  = []byte("order")
	methodMatch  = []byte("match")
	methodCancel = []byte("cancel")
	methodSplit  = []byte("split")
	methodMerge  = []byte("merge")
)

// Trader orchestrates settlements for one wallet. It holds everything an
// orchestration call needs explicitly; there is no process-wide state.
type Trader struct {
	lgr    ledger.Ledger
	wallet string
	policy retry.Policy
	logger *slog.Logger
}

// Option configures a Trader.
type Option func(*Trader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trader) { t.logger = logger }
}

// WithRetryPolicy sets the escrow-identifier resolution schedule.
func WithRetryPolicy(p retry.Policy) Option {
	return func(t *Trader) { t.policy = p }
}

// New creates a Trader for the given wallet address.
func New(lgr ledger.Ledger, wallet string, opts ...Option) *Trader {
	t := &Trader{
		lgr:    lgr,
		wallet: wallet,
		policy: retry.DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewFromConfig builds a Trader from the loaded application config: the
// wallet address becomes the sender and trading.resolve_delays, when set,
// replaces the default resolution schedule. The ledger client is still
// supplied by the caller.
func NewFromConfig(lgr ledger.Ledger, cfg *config.TraderConfig, opts ...Option) (*Trader, error) {
	if cfg.Wallet.Address == "" {
		return nil, errors.New("wallet.address is required")
	}

	base := []Option{}
	if len(cfg.Trading.ResolveDelays) > 0 {
		base = append(base, WithRetryPolicy(retry.Policy{Delays: cfg.Trading.ResolveDelays}))
	}

	return New(lgr, cfg.Wallet.Address, append(base, opts...)...), nil
}

// Receipt is the confirmation of a submitted bundle.
type Receipt struct {
	TradeID        uuid.UUID
	TxIDs          []string
	ConfirmedRound int64
}

func receiptOf(res *ledger.SubmitResult) Receipt {
	return Receipt{
		TradeID:        uuid.New(),
		TxIDs:          res.TxIDs,
		ConfirmedRound: res.ConfirmedRound,
	}
}

// uint64Arg encodes an application-call integer argument.
func uint64Arg(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}
