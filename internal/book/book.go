// Package book projects raw escrow records into a normalized orderbook and
// per-wallet open-order views.
//
// Only pure limit orders (zero slippage) with remaining quantity appear on
// the public book; market orders never rest as liquidity. Projections are
// pure: they allocate fresh slices and never mutate their inputs.
package book

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/chaintrader/internal/ledger"
	"github.com/rickgao/chaintrader/internal/model"
)

// Project partitions escrow records into the four public-book buckets.
// Records with nothing left to fill, or with a slippage tolerance, are
// excluded; entry quantities are the remaining (unfilled) amounts.
func Project(escrows []*ledger.Escrow) model.Orderbook {
	var b model.Orderbook

	for _, esc := range escrows {
		remaining := esc.Quantity - esc.QuantityFilled
		if remaining <= 0 || esc.Slippage != 0 {
			continue
		}

		entry := model.Entry{
			Price:    esc.Price,
			Quantity: remaining,
			AppID:    esc.AppID,
			Owner:    esc.Owner,
		}

		switch {
		case esc.Position == model.PositionYes && esc.Side == model.SideBid:
			b.Yes.Bids = append(b.Yes.Bids, entry)
		case esc.Position == model.PositionYes && esc.Side == model.SideAsk:
			b.Yes.Asks = append(b.Yes.Asks, entry)
		case esc.Position == model.PositionNo && esc.Side == model.SideBid:
			b.No.Bids = append(b.No.Bids, entry)
		default:
			b.No.Asks = append(b.No.Asks, entry)
		}
	}

	return b
}

// OpenOrders returns the unfilled orders owned by one wallet, slippage
// orders included, with raw quantities retained for display.
func OpenOrders(escrows []*ledger.Escrow, owner string) []model.OpenOrder {
	var orders []model.OpenOrder

	for _, esc := range escrows {
		if esc.Owner != owner || esc.Quantity-esc.QuantityFilled <= 0 {
			continue
		}
		orders = append(orders, model.OpenOrder{
			AppID:          esc.AppID,
			Position:       esc.Position,
			Side:           esc.Side,
			Price:          esc.Price,
			Quantity:       esc.Quantity,
			QuantityFilled: esc.QuantityFilled,
			Slippage:       esc.Slippage,
			Owner:          esc.Owner,
		})
	}

	return orders
}

// Load fetches every escrow of a market from the ledger. Escrows are
// applications created by the market contract's own address; the enumeration
// is paginated and each record is decoded independently, so one corrupt
// record costs that record, not the whole book.
func Load(ctx context.Context, lgr ledger.Ledger, marketAppID int64, logger *slog.Logger) ([]*ledger.Escrow, error) {
	if logger == nil {
		logger = slog.Default()
	}

	creator := lgr.AppAddress(marketAppID)

	var (
		escrows   []*ledger.Escrow
		nextToken string
		dropped   int
	)
	for {
		apps, token, err := lgr.CreatedApps(ctx, creator, nextToken)
		if err != nil {
			return nil, fmt.Errorf("enumerate escrows for market %d: %w", marketAppID, err)
		}

		for _, app := range apps {
			esc, err := ledger.DecodeEscrow(app.ID, app.State, lgr.EncodeAddress)
			if err != nil {
				dropped++
				logger.Debug("skipping undecodable escrow",
					"app_id", app.ID,
					"error", err,
					"state", ledger.RenderState(app.State, lgr.EncodeAddress),
				)
				continue
			}
			if esc.MarketAppID != marketAppID {
				continue
			}
			escrows = append(escrows, esc)
		}

		if token == "" {
			break
		}
		nextToken = token
	}

	if dropped > 0 {
		logger.Warn("dropped undecodable escrow records", "market", marketAppID, "dropped", dropped)
	}

	return escrows, nil
}

// LoadBook is Load followed by Project.
func LoadBook(ctx context.Context, lgr ledger.Ledger, marketAppID int64, logger *slog.Logger) (model.Orderbook, error) {
	escrows, err := Load(ctx, lgr, marketAppID, logger)
	if err != nil {
		return model.Orderbook{}, err
	}
	return Project(escrows), nil
}
