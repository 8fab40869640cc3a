package trade

import (
	"context"
	"fmt"

	"github.com/rickgao/chaintrader/internal/book"
	"github.com/rickgao/chaintrader/internal/ledger"
	"github.com/rickgao/chaintrader/internal/model"
)

// Cancel instructs the market to destroy an escrow, returning its funds and
// minimum-balance deposit to owner. The owner address must be supplied by
// the caller; it is never inferred.
func (t *Trader) Cancel(ctx context.Context, marketAppID, escrowID int64, owner string) (*Receipt, error) {
	res, err := t.lgr.SubmitGroup(ctx, []ledger.Operation{{
		Type:        ledger.OpAppCall,
		Sender:      t.wallet,
		AppID:       marketAppID,
		Args:        [][]byte{methodCancel},
		ForeignApps: []int64{escrowID},
		Accounts:    []string{owner},
	}})
	if err != nil {
		return nil, fmt.Errorf("cancel escrow %d: %w", escrowID, err)
	}

	t.logger.Info("escrow cancelled", "escrow", escrowID, "round", res.ConfirmedRound)

	r := receiptOf(res)
	return &r, nil
}

// Split converts amount of collateral into amount of YES and amount of NO
// tokens. Opt-ins for the outcome tokens are prepended when missing.
func (t *Trader) Split(ctx context.Context, market *ledger.Market, amount int64) (*Receipt, error) {
	if amount <= 0 {
		return nil, ErrBadQuantity
	}

	custody := t.lgr.AppAddress(market.AppID)

	ops, err := t.optInOps(ctx, market.YesAssetID, market.NoAssetID)
	if err != nil {
		return nil, err
	}
	ops = append(ops,
		ledger.Operation{
			Type:     ledger.OpAssetTransfer,
			Sender:   t.wallet,
			Receiver: custody,
			AssetID:  market.CollateralAssetID,
			Amount:   amount,
		},
		ledger.Operation{
			Type:   ledger.OpAppCall,
			Sender: t.wallet,
			AppID:  market.AppID,
			Args:   [][]byte{methodSplit, uint64Arg(amount)},
		},
	)

	res, err := t.lgr.SubmitGroup(ctx, ops)
	if err != nil {
		return nil, fmt.Errorf("split %d on market %d: %w", amount, market.AppID, err)
	}

	t.logger.Info("collateral split", "market", market.AppID, "amount", amount, "round", res.ConfirmedRound)

	r := receiptOf(res)
	return &r, nil
}

// Merge burns amount of YES and amount of NO back into amount of collateral,
// the exact inverse of Split.
func (t *Trader) Merge(ctx context.Context, market *ledger.Market, amount int64) (*Receipt, error) {
	if amount <= 0 {
		return nil, ErrBadQuantity
	}

	custody := t.lgr.AppAddress(market.AppID)

	ops, err := t.optInOps(ctx, market.CollateralAssetID)
	if err != nil {
		return nil, err
	}
	ops = append(ops,
		ledger.Operation{
			Type:     ledger.OpAssetTransfer,
			Sender:   t.wallet,
			Receiver: custody,
			AssetID:  market.YesAssetID,
			Amount:   amount,
		},
		ledger.Operation{
			Type:     ledger.OpAssetTransfer,
			Sender:   t.wallet,
			Receiver: custody,
			AssetID:  market.NoAssetID,
			Amount:   amount,
		},
		ledger.Operation{
			Type:   ledger.OpAppCall,
			Sender: t.wallet,
			AppID:  market.AppID,
			Args:   [][]byte{methodMerge, uint64Arg(amount)},
		},
	)

	res, err := t.lgr.SubmitGroup(ctx, ops)
	if err != nil {
		return nil, fmt.Errorf("merge %d on market %d: %w", amount, market.AppID, err)
	}

	t.logger.Info("positions merged", "market", market.AppID, "amount", amount, "round", res.ConfirmedRound)

	r := receiptOf(res)
	return &r, nil
}

// OpenOrders returns the wallet's unfilled orders on a market.
func (t *Trader) OpenOrders(ctx context.Context, marketAppID int64) ([]model.OpenOrder, error) {
	escrows, err := book.Load(ctx, t.lgr, marketAppID, t.logger)
	if err != nil {
		return nil, err
	}
	return book.OpenOrders(escrows, t.wallet), nil
}

// Orderbook returns the market's current public book projection.
func (t *Trader) Orderbook(ctx context.Context, marketAppID int64) (model.Orderbook, error) {
	return book.LoadBook(ctx, t.lgr, marketAppID, t.logger)
}

// Market reads and decodes a market contract's state.
func (t *Trader) Market(ctx context.Context, appID int64) (*ledger.Market, error) {
	state, err := t.lgr.AppState(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("read market %d state: %w", appID, err)
	}
	return ledger.DecodeMarket(appID, state, t.lgr.EncodeAddress)
}

// optInOps returns opt-in operations for whichever of the given assets the
// wallet does not hold yet. Holdings are read once.
func (t *Trader) optInOps(ctx context.Context, assetIDs ...int64) ([]ledger.Operation, error) {
	holdings, err := t.lgr.AccountAssets(ctx, t.wallet)
	if err != nil {
		return nil, fmt.Errorf("read holdings of %s: %w", t.wallet, err)
	}

	var ops []ledger.Operation
	for _, id := range assetIDs {
		if _, held := holdings[id]; !held {
			ops = append(ops, ledger.Operation{
				Type:    ledger.OpAssetOptIn,
				Sender:  t.wallet,
				AssetID: id,
			})
		}
	}
	return ops, nil
}
