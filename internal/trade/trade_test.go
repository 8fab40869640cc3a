package trade

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rickgao/chaintrader/internal/config"
	"github.com/rickgao/chaintrader/internal/ledger"
	"github.com/rickgao/chaintrader/internal/model"
	"github.com/rickgao/chaintrader/internal/retry"
)

// fakeLedger is a scriptable ledger collaborator. The secondary index
// behavior is a sensor: the operation record becomes visible only after
// lookupAfter queries.
type fakeLedger struct {
	holdings map[int64]int64
	escrows  []ledger.AppRecord

	submitted [][]ledger.Operation
	submitErr error
	result    ledger.SubmitResult

	lookupAfter  int
	lookupCalls  int
	createdAppID int64
}

func (f *fakeLedger) AppState(context.Context, int64) (map[string]ledger.Value, error) {
	return nil, ledger.ErrNotFound
}

func (f *fakeLedger) AccountAssets(context.Context, string) (map[int64]int64, error) {
	return f.holdings, nil
}

func (f *fakeLedger) CreatedApps(context.Context, string, string) ([]ledger.AppRecord, string, error) {
	return f.escrows, "", nil
}

func (f *fakeLedger) SubmitGroup(_ context.Context, ops []ledger.Operation) (*ledger.SubmitResult, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, ops)

	res := f.result
	if len(res.TxIDs) == 0 {
		for i := range ops {
			res.TxIDs = append(res.TxIDs, fmt.Sprintf("tx-%d", i))
		}
	}
	if res.ConfirmedRound == 0 {
		res.ConfirmedRound = 1000
	}
	return &res, nil
}

func (f *fakeLedger) LookupOperation(context.Context, string) (*ledger.OperationRecord, error) {
	f.lookupCalls++
	if f.lookupCalls <= f.lookupAfter {
		return nil, ledger.ErrNotFound
	}
	return &ledger.OperationRecord{CreatedAppID: f.createdAppID}, nil
}

func (f *fakeLedger) AppAddress(appID int64) string {
	return fmt.Sprintf("app-%d", appID)
}

func (f *fakeLedger) EncodeAddress(raw []byte) string {
	return string(raw)
}

const (
	collateralID = int64(10)
	yesAssetID   = int64(11)
	noAssetID    = int64(12)
)

func testMarket() *ledger.Market {
	return &ledger.Market{
		AppID:             777,
		CollateralAssetID: collateralID,
		YesAssetID:        yesAssetID,
		NoAssetID:         noAssetID,
		Activated:         true,
		FeeBasePercent:    70_000,
		FeeAddress:        "fee-account",
		Title:             "test market",
	}
}

func fastPolicy() retry.Policy {
	return retry.Policy{Delays: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}}
}

func allOptedIn() map[int64]int64 {
	return map[int64]int64{collateralID: 5_000_000, yesAssetID: 0, noAssetID: 0}
}

func newTestTrader(f *fakeLedger) *Trader {
	return New(f, "taker", WithRetryPolicy(fastPolicy()))
}

func escrowState(pos, side, price, quantity, filled, slippage uint64, owner string) map[string]ledger.Value {
	raw := make([]byte, 32)
	copy(raw, owner)
	return map[string]ledger.Value{
		"position":        ledger.UintValue(pos),
		"side":            ledger.UintValue(side),
		"price":           ledger.UintValue(price),
		"quantity":        ledger.UintValue(quantity),
		"quantity_filled": ledger.UintValue(filled),
		"slippage":        ledger.UintValue(slippage),
		"owner":           ledger.BytesValue(raw),
		"market_app_id":   ledger.UintValue(777),
	}
}

func TestPlaceOrder_LimitBuy(t *testing.T) {
	f := &fakeLedger{holdings: allOptedIn(), result: ledger.SubmitResult{AppID: 5001}}
	tr := newTestTrader(f)

	req := model.TradeRequest{Buying: true, Yes: true, Quantity: 1_000_000, Price: 500_000}
	p, err := tr.PlaceOrder(context.Background(), testMarket(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if p.EscrowID != 5001 {
		t.Errorf("EscrowID = %d, want 5001 from primary result", p.EscrowID)
	}
	if len(p.Fills) != 0 {
		t.Errorf("Fills = %+v, want none for a pure limit order", p.Fills)
	}

	ops := f.submitted[0]
	if len(ops) != 3 {
		t.Fatalf("len(ops) = %d, want 3 (guarantee, principal, create)", len(ops))
	}

	if ops[0].Type != ledger.OpPayment || ops[0].Amount != escrowCreateFee {
		t.Errorf("ops[0] = %+v, want %d microunit guarantee payment", ops[0], escrowCreateFee)
	}

	// floor(1e6 * 0.5) + fee(1e6, 500000, 70000) = 500000 + 17500
	if ops[1].Type != ledger.OpAssetTransfer || ops[1].AssetID != collateralID || ops[1].Amount != 517_500 {
		t.Errorf("ops[1] = %+v, want 517500 collateral principal", ops[1])
	}
	if p.Funded != 517_500 || p.Fee != 17_500 {
		t.Errorf("Funded/Fee = %d/%d, want 517500/17500", p.Funded, p.Fee)
	}

	if ops[2].Type != ledger.OpAppCall || ops[2].AppID != 777 {
		t.Errorf("ops[2] = %+v, want order app call on market 777", ops[2])
	}
	if string(ops[2].Args[0]) != "order" {
		t.Errorf("create method = %q, want order", ops[2].Args[0])
	}
}

func TestPlaceOrder_OptInPrepended(t *testing.T) {
	// Holds collateral only: buying YES requires a YES-token opt-in first.
	f := &fakeLedger{holdings: map[int64]int64{collateralID: 5_000_000}, result: ledger.SubmitResult{AppID: 5001}}
	tr := newTestTrader(f)

	req := model.TradeRequest{Buying: true, Yes: true, Quantity: 1_000_000, Price: 500_000}
	if _, err := tr.PlaceOrder(context.Background(), testMarket(), req); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	ops := f.submitted[0]
	if len(ops) != 4 {
		t.Fatalf("len(ops) = %d, want 4 with opt-in prepended", len(ops))
	}
	if ops[0].Type != ledger.OpAssetOptIn || ops[0].AssetID != yesAssetID {
		t.Errorf("ops[0] = %+v, want YES asset opt-in", ops[0])
	}
}

func TestPlaceOrder_SellPrincipalIsOutcomeToken(t *testing.T) {
	f := &fakeLedger{holdings: allOptedIn(), result: ledger.SubmitResult{AppID: 5001}}
	tr := newTestTrader(f)

	req := model.TradeRequest{Buying: false, Yes: true, Quantity: 2_000_000, Price: 400_000}
	p, err := tr.PlaceOrder(context.Background(), testMarket(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	ops := f.submitted[0]
	principal := ops[1]
	if principal.AssetID != yesAssetID || principal.Amount != 2_000_000 {
		t.Errorf("principal = %+v, want 2000000 of the YES token", principal)
	}
	if p.Funded != 2_000_000 || p.Fee != 0 {
		t.Errorf("Funded/Fee = %d/%d, want 2000000/0", p.Funded, p.Fee)
	}
}

func TestPlaceOrder_MarketOrderMatches(t *testing.T) {
	f := &fakeLedger{
		holdings: allOptedIn(),
		escrows: []ledger.AppRecord{
			{ID: 9001, State: escrowState(1, 1, 450_000, 2_000_000, 0, 0, "maker-a")},
			{ID: 9002, State: escrowState(1, 1, 500_000, 1_000_000, 0, 0, "maker-b")},
		},
		result: ledger.SubmitResult{AppID: 5001},
	}
	tr := newTestTrader(f)

	req := model.TradeRequest{Buying: true, Yes: true, Quantity: 1_500_000, Price: 450_000, Slippage: 50_000}
	p, err := tr.PlaceOrder(context.Background(), testMarket(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if len(p.Fills) != 1 {
		t.Fatalf("len(Fills) = %d, want 1 (cheapest ask covers the full quantity)", len(p.Fills))
	}

	ops := f.submitted[0]
	// guarantee, principal, create, one match proposal
	if len(ops) != 4 {
		t.Fatalf("len(ops) = %d, want 4", len(ops))
	}

	if want := int64(escrowCreateFee + matchFeeBuy); ops[0].Amount != want {
		t.Errorf("guarantee = %d, want %d", ops[0].Amount, want)
	}

	matchOp := ops[3]
	if string(matchOp.Args[0]) != "match" {
		t.Errorf("match method = %q, want match", matchOp.Args[0])
	}
	if len(matchOp.ForeignApps) != 1 || matchOp.ForeignApps[0] != 9001 {
		t.Errorf("ForeignApps = %v, want [9001]", matchOp.ForeignApps)
	}
	if len(matchOp.Accounts) != 2 || matchOp.Accounts[1] != "fee-account" {
		t.Errorf("Accounts = %v, want maker then fee account", matchOp.Accounts)
	}
}

func TestPlaceOrder_SellDoublesMatchGuarantee(t *testing.T) {
	f := &fakeLedger{
		holdings: allOptedIn(),
		escrows: []ledger.AppRecord{
			{ID: 9001, State: escrowState(1, 0, 500_000, 1_000_000, 0, 0, "maker-a")},
			{ID: 9002, State: escrowState(1, 0, 480_000, 1_000_000, 0, 0, "maker-b")},
		},
		result: ledger.SubmitResult{AppID: 5001},
	}
	tr := newTestTrader(f)

	req := model.TradeRequest{Buying: false, Yes: true, Quantity: 2_000_000, Price: 480_000, Slippage: 10_000}
	p, err := tr.PlaceOrder(context.Background(), testMarket(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(p.Fills) != 2 {
		t.Fatalf("len(Fills) = %d, want 2", len(p.Fills))
	}

	if want := int64(escrowCreateFee + 2*matchFeeSell); f.submitted[0][0].Amount != want {
		t.Errorf("guarantee = %d, want %d (sell-side match fee doubled)", f.submitted[0][0].Amount, want)
	}
}

func TestPlaceOrder_ResolvesEscrowFromLaggingIndex(t *testing.T) {
	f := &fakeLedger{
		holdings:     allOptedIn(),
		lookupAfter:  3,
		createdAppID: 6001,
	}
	tr := newTestTrader(f)

	req := model.TradeRequest{Buying: true, Yes: true, Quantity: 1_000_000, Price: 500_000}
	p, err := tr.PlaceOrder(context.Background(), testMarket(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if p.EscrowID != 6001 {
		t.Errorf("EscrowID = %d, want 6001 resolved from the index", p.EscrowID)
	}
	if f.lookupCalls != 4 {
		t.Errorf("lookupCalls = %d, want 4 (3 misses then a hit)", f.lookupCalls)
	}
	if !p.Resolved() {
		t.Error("Resolved() = false, want true")
	}
}

func TestPlaceOrder_UnresolvedEscrowIsSentinelNotError(t *testing.T) {
	f := &fakeLedger{
		holdings:    allOptedIn(),
		lookupAfter: 100, // never appears within the schedule
	}
	tr := newTestTrader(f)

	req := model.TradeRequest{Buying: true, Yes: true, Quantity: 1_000_000, Price: 500_000}
	p, err := tr.PlaceOrder(context.Background(), testMarket(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v, want success with sentinel ID", err)
	}
	if p.EscrowID != 0 {
		t.Errorf("EscrowID = %d, want 0 sentinel", p.EscrowID)
	}
	if p.Resolved() {
		t.Error("Resolved() = true, want false")
	}
	if p.ConfirmedRound != 1000 {
		t.Errorf("ConfirmedRound = %d, want 1000", p.ConfirmedRound)
	}
}

func TestPlaceOrder_SubmitFailurePropagates(t *testing.T) {
	boom := errors.New("insufficient funds")
	f := &fakeLedger{holdings: allOptedIn(), submitErr: boom}
	tr := newTestTrader(f)

	req := model.TradeRequest{Buying: true, Yes: true, Quantity: 1_000_000, Price: 500_000}
	if _, err := tr.PlaceOrder(context.Background(), testMarket(), req); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped submit failure", err)
	}
}

func TestPlaceOrder_Validation(t *testing.T) {
	f := &fakeLedger{holdings: allOptedIn()}
	tr := newTestTrader(f)
	market := testMarket()

	if _, err := tr.PlaceOrder(context.Background(), market, model.TradeRequest{Buying: true, Yes: true, Price: 500_000}); !errors.Is(err, ErrBadQuantity) {
		t.Errorf("zero quantity err = %v, want ErrBadQuantity", err)
	}
	if _, err := tr.PlaceOrder(context.Background(), market, model.TradeRequest{Buying: true, Yes: true, Quantity: 1, Price: 1_000_001}); !errors.Is(err, ErrBadPrice) {
		t.Errorf("price > 1e6 err = %v, want ErrBadPrice", err)
	}

	resolved := testMarket()
	resolved.Resolved = true
	if _, err := tr.PlaceOrder(context.Background(), resolved, model.TradeRequest{Buying: true, Yes: true, Quantity: 1, Price: 500_000}); !errors.Is(err, ErrMarketResolved) {
		t.Errorf("resolved market err = %v, want ErrMarketResolved", err)
	}
}

func TestPlaceOrder_DefaultsFeeBaseFromMarket(t *testing.T) {
	f := &fakeLedger{holdings: allOptedIn(), result: ledger.SubmitResult{AppID: 5001}}
	tr := newTestTrader(f)

	req := model.TradeRequest{Buying: true, Yes: true, Quantity: 1_000_000, Price: 500_000, FeeBase: 140_000}
	p, err := tr.PlaceOrder(context.Background(), testMarket(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if p.Fee != 35_000 {
		t.Errorf("explicit feeBase Fee = %d, want 35000", p.Fee)
	}

	req.FeeBase = 0 // fall back to the market's 70000
	p, err = tr.PlaceOrder(context.Background(), testMarket(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if p.Fee != 17_500 {
		t.Errorf("default feeBase Fee = %d, want 17500", p.Fee)
	}
}

func TestCancel(t *testing.T) {
	f := &fakeLedger{}
	tr := newTestTrader(f)

	r, err := tr.Cancel(context.Background(), 777, 9001, "maker-a")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if r.ConfirmedRound != 1000 {
		t.Errorf("ConfirmedRound = %d, want 1000", r.ConfirmedRound)
	}

	ops := f.submitted[0]
	if len(ops) != 1 {
		t.Fatalf("len(ops) = %d, want 1", len(ops))
	}
	op := ops[0]
	if string(op.Args[0]) != "cancel" {
		t.Errorf("method = %q, want cancel", op.Args[0])
	}
	if len(op.ForeignApps) != 1 || op.ForeignApps[0] != 9001 {
		t.Errorf("ForeignApps = %v, want [9001]", op.ForeignApps)
	}
	if len(op.Accounts) != 1 || op.Accounts[0] != "maker-a" {
		t.Errorf("Accounts = %v, want the supplied owner", op.Accounts)
	}
}

func TestSplitAndMerge(t *testing.T) {
	t.Run("split opts into both outcome tokens", func(t *testing.T) {
		f := &fakeLedger{holdings: map[int64]int64{collateralID: 5_000_000}}
		tr := newTestTrader(f)

		if _, err := tr.Split(context.Background(), testMarket(), 1_000_000); err != nil {
			t.Fatalf("Split: %v", err)
		}

		ops := f.submitted[0]
		if len(ops) != 4 {
			t.Fatalf("len(ops) = %d, want 4 (two opt-ins, transfer, call)", len(ops))
		}
		if ops[0].Type != ledger.OpAssetOptIn || ops[0].AssetID != yesAssetID {
			t.Errorf("ops[0] = %+v, want YES opt-in", ops[0])
		}
		if ops[1].Type != ledger.OpAssetOptIn || ops[1].AssetID != noAssetID {
			t.Errorf("ops[1] = %+v, want NO opt-in", ops[1])
		}
		if ops[2].AssetID != collateralID || ops[2].Amount != 1_000_000 {
			t.Errorf("ops[2] = %+v, want 1000000 collateral transfer", ops[2])
		}
		if string(ops[3].Args[0]) != "split" {
			t.Errorf("method = %q, want split", ops[3].Args[0])
		}
	})

	t.Run("merge sends both outcome tokens", func(t *testing.T) {
		f := &fakeLedger{holdings: allOptedIn()}
		tr := newTestTrader(f)

		if _, err := tr.Merge(context.Background(), testMarket(), 1_000_000); err != nil {
			t.Fatalf("Merge: %v", err)
		}

		ops := f.submitted[0]
		if len(ops) != 3 {
			t.Fatalf("len(ops) = %d, want 3 (two transfers, call)", len(ops))
		}
		if ops[0].AssetID != yesAssetID || ops[1].AssetID != noAssetID {
			t.Errorf("transfers = %+v, %+v, want YES then NO", ops[0], ops[1])
		}
		if string(ops[2].Args[0]) != "merge" {
			t.Errorf("method = %q, want merge", ops[2].Args[0])
		}
	})

	t.Run("split then merge moves equal amounts both ways", func(t *testing.T) {
		f := &fakeLedger{holdings: allOptedIn()}
		tr := newTestTrader(f)

		const amount = int64(3_000_000)
		if _, err := tr.Split(context.Background(), testMarket(), amount); err != nil {
			t.Fatalf("Split: %v", err)
		}
		if _, err := tr.Merge(context.Background(), testMarket(), amount); err != nil {
			t.Fatalf("Merge: %v", err)
		}

		splitOps, mergeOps := f.submitted[0], f.submitted[1]
		// Collateral out on split equals collateral-pair burned on merge.
		if splitOps[0].Amount != amount {
			t.Errorf("split collateral = %d, want %d", splitOps[0].Amount, amount)
		}
		if mergeOps[0].Amount != amount || mergeOps[1].Amount != amount {
			t.Errorf("merge amounts = %d/%d, want %d each", mergeOps[0].Amount, mergeOps[1].Amount, amount)
		}
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Run("wires wallet and resolve delays", func(t *testing.T) {
		cfg := &config.TraderConfig{}
		cfg.Wallet.Address = "taker"
		cfg.Trading.ResolveDelays = []time.Duration{time.Millisecond, time.Millisecond}

		f := &fakeLedger{
			holdings:     allOptedIn(),
			lookupAfter:  2,
			createdAppID: 6001,
		}
		tr, err := NewFromConfig(f, cfg)
		if err != nil {
			t.Fatalf("NewFromConfig: %v", err)
		}
		if tr.wallet != "taker" {
			t.Errorf("wallet = %q, want taker", tr.wallet)
		}
		if got := tr.policy.Attempts(); got != 3 {
			t.Errorf("policy.Attempts() = %d, want 3 from config delays", got)
		}

		req := model.TradeRequest{Buying: true, Yes: true, Quantity: 1_000_000, Price: 500_000}
		p, err := tr.PlaceOrder(context.Background(), testMarket(), req)
		if err != nil {
			t.Fatalf("PlaceOrder: %v", err)
		}
		if p.EscrowID != 6001 {
			t.Errorf("EscrowID = %d, want 6001 resolved under the config schedule", p.EscrowID)
		}
	})

	t.Run("default schedule without config delays", func(t *testing.T) {
		cfg := &config.TraderConfig{}
		cfg.Wallet.Address = "taker"

		tr, err := NewFromConfig(&fakeLedger{}, cfg)
		if err != nil {
			t.Fatalf("NewFromConfig: %v", err)
		}
		if got := tr.policy.Attempts(); got != retry.DefaultPolicy().Attempts() {
			t.Errorf("policy.Attempts() = %d, want default schedule", got)
		}
	})

	t.Run("missing wallet address", func(t *testing.T) {
		if _, err := NewFromConfig(&fakeLedger{}, &config.TraderConfig{}); err == nil {
			t.Error("expected error for empty wallet.address")
		}
	})

	t.Run("explicit options win over config", func(t *testing.T) {
		cfg := &config.TraderConfig{}
		cfg.Wallet.Address = "taker"
		cfg.Trading.ResolveDelays = []time.Duration{time.Second}

		tr, err := NewFromConfig(&fakeLedger{}, cfg, WithRetryPolicy(fastPolicy()))
		if err != nil {
			t.Fatalf("NewFromConfig: %v", err)
		}
		if got := tr.policy.Attempts(); got != fastPolicy().Attempts() {
			t.Errorf("policy.Attempts() = %d, want explicit option to win", got)
		}
	})
}
