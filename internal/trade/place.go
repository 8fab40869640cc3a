package trade

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgao/chaintrader/internal/book"
	"github.com/rickgao/chaintrader/internal/fees"
	"github.com/rickgao/chaintrader/internal/ledger"
	"github.com/rickgao/chaintrader/internal/match"
	"github.com/rickgao/chaintrader/internal/model"
	"github.com/rickgao/chaintrader/internal/retry"
)

// Validation errors for PlaceOrder.
var (
	ErrMarketResolved = errors.New("trade: market already resolved")
	ErrBadQuantity    = errors.New("trade: quantity must be positive")
	ErrBadPrice       = errors.New("trade: price out of range")
)

// Placement is the result of a submitted order. EscrowID is zero when the
// bundle confirmed but the new escrow's identifier had not yet surfaced on
// the secondary index: submitted, not failed.
type Placement struct {
	Receipt
	EscrowID int64
	Fills    []model.Fill
	Funded   int64 // principal moved, microunits of the funded asset
	Fee      int64 // trading fee embedded in the funding, microunits
}

// Resolved reports whether the new escrow's identifier is known.
func (p *Placement) Resolved() bool { return p.EscrowID != 0 }

// PlaceOrder builds, submits, and confirms one settlement bundle for req
// against the given market. Market orders (positive slippage) are matched
// against a fresh book projection; pure limit orders rest unmatched.
func (t *Trader) PlaceOrder(ctx context.Context, market *ledger.Market, req model.TradeRequest) (*Placement, error) {
	if req.Quantity <= 0 {
		return nil, ErrBadQuantity
	}
	if req.Price < 0 || req.Price > model.Unit {
		return nil, ErrBadPrice
	}
	if market.Resolved {
		return nil, ErrMarketResolved
	}

	feeBase := req.FeeBase
	if feeBase == 0 {
		feeBase = market.FeeBasePercent
	}

	var fills []model.Fill
	if req.Slippage > 0 {
		b, err := book.LoadBook(ctx, t.lgr, market.AppID, t.logger)
		if err != nil {
			return nil, err
		}
		fills = match.Plan(b, req)
	}

	ops, createIndex, funded, fee, err := t.buildBundle(ctx, market, req, feeBase, fills)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("submitting settlement bundle",
		"market", market.AppID,
		"operations", len(ops),
		"fills", len(fills),
		"buying", req.Buying,
		"position", req.Position().String(),
	)

	res, err := t.lgr.SubmitGroup(ctx, ops)
	if err != nil {
		return nil, fmt.Errorf("submit settlement bundle: %w", err)
	}

	escrowID := t.resolveEscrowID(ctx, res, createIndex)

	t.logger.Info("order placed",
		"market", market.AppID,
		"escrow", escrowID,
		"round", res.ConfirmedRound,
		"fills", len(fills),
	)

	return &Placement{
		Receipt:  receiptOf(res),
		EscrowID: escrowID,
		Fills:    fills,
		Funded:   funded,
		Fee:      fee,
	}, nil
}

// buildBundle assembles the strictly ordered operation list:
// opt-in (conditional), fee guarantee, principal, escrow creation, one match
// proposal per fill. createIndex points at the escrow-creation operation.
func (t *Trader) buildBundle(ctx context.Context, market *ledger.Market, req model.TradeRequest, feeBase int64, fills []model.Fill) (ops []ledger.Operation, createIndex int, funded, fee int64, err error) {
	custody := t.lgr.AppAddress(market.AppID)

	// The taker must hold the asset the trade hands back: the outcome token
	// when buying, the collateral when selling.
	received := market.CollateralAssetID
	if req.Buying {
		received = market.AssetFor(req.Position())
	}
	ops, err = t.optInOps(ctx, received)
	if err != nil {
		return nil, 0, 0, 0, err
	}

	guarantee := int64(escrowCreateFee)
	if len(fills) > 0 {
		perMatch := int64(matchFeeBuy)
		if !req.Buying {
			perMatch = matchFeeSell
		}
		guarantee += int64(len(fills)) * perMatch
	}
	ops = append(ops, ledger.Operation{
		Type:     ledger.OpPayment,
		Sender:   t.wallet,
		Receiver: custody,
		Amount:   guarantee,
	})

	if req.Buying {
		worst := req.Price + req.Slippage
		fee = fees.Fee(req.Quantity, worst, feeBase)
		funded = req.Quantity*worst/model.Unit + fee
		ops = append(ops, ledger.Operation{
			Type:     ledger.OpAssetTransfer,
			Sender:   t.wallet,
			Receiver: custody,
			AssetID:  market.CollateralAssetID,
			Amount:   funded,
		})
	} else {
		funded = req.Quantity
		ops = append(ops, ledger.Operation{
			Type:     ledger.OpAssetTransfer,
			Sender:   t.wallet,
			Receiver: custody,
			AssetID:  market.AssetFor(req.Position()),
			Amount:   funded,
		})
	}

	createIndex = len(ops)
	ops = append(ops, ledger.Operation{
		Type:   ledger.OpAppCall,
		Sender: t.wallet,
		AppID:  market.AppID,
		Args: [][]byte{
			methodOrder,
			uint64Arg(req.Price),
			uint64Arg(req.Quantity),
			uint64Arg(req.Slippage),
			uint64Arg(int64(req.Position())),
		},
	})

	remaining := req.Quantity
	for _, f := range fills {
		quantity := min(f.Quantity, remaining)
		if quantity <= 0 {
			continue
		}
		remaining -= quantity

		ops = append(ops, ledger.Operation{
			Type:        ledger.OpAppCall,
			Sender:      t.wallet,
			AppID:       market.AppID,
			Args:        [][]byte{methodMatch, uint64Arg(quantity)},
			ForeignApps: []int64{f.AppID},
			Accounts:    []string{f.Owner, market.FeeAddress},
		})
	}

	return ops, createIndex, funded, fee, nil
}

// resolveEscrowID extracts the new escrow's application ID from the primary
// inclusion record, falling back to polling the secondary index under the
// retry schedule. Exhaustion yields the zero sentinel, never an error: the
// bundle did confirm.
func (t *Trader) resolveEscrowID(ctx context.Context, res *ledger.SubmitResult, createIndex int) int64 {
	if res.AppID != 0 {
		return res.AppID
	}
	if createIndex >= len(res.TxIDs) {
		return 0
	}
	txID := res.TxIDs[createIndex]

	var escrowID int64
	done, err := retry.Do(ctx, t.policy, func(ctx context.Context) (bool, error) {
		rec, err := t.lgr.LookupOperation(ctx, txID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if rec.CreatedAppID == 0 {
			return false, nil
		}
		escrowID = rec.CreatedAppID
		return true, nil
	})
	if !done {
		t.logger.Warn("escrow identifier unresolved, returning sentinel",
			"tx", txID,
			"attempts", t.policy.Attempts(),
			"error", err,
		)
		return 0
	}
	return escrowID
}
