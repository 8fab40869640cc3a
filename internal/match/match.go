// Package match turns a desired trade plus an orderbook snapshot into an
// ordered, quantity-bounded fill plan.
//
// Candidates come from two places: the direct side of the book for the
// traded outcome, and the opposite outcome's book reprojected at the
// complementary price (a resting NO bid at p is a YES ask at 1e6-p, since a
// matched pair's prices sum to one full unit). The plan is a pure function
// of its inputs; it never models liquidity depletion beyond the snapshot.
package match

import (
	"sort"

	"github.com/rickgao/chaintrader/internal/model"
)

// Plan returns the fills a trade request should propose against the book,
// best price first, total quantity bounded by the requested quantity. An
// empty book or no qualifying candidate yields an empty plan.
func Plan(b model.Orderbook, req model.TradeRequest) []model.Fill {
	if req.Quantity <= 0 {
		return nil
	}

	candidates := collect(b, req)
	if len(candidates) == 0 {
		return nil
	}

	// Stable sort keeps direct orders ahead of complementary ones at equal
	// price, in the order collect built them.
	if req.Buying {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].EffectivePrice < candidates[j].EffectivePrice
		})
	} else {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].EffectivePrice > candidates[j].EffectivePrice
		})
	}

	var fills []model.Fill
	remaining := req.Quantity
	for _, c := range candidates {
		if remaining <= 0 {
			break
		}
		take := min(remaining, c.Quantity)
		if take <= 0 {
			continue
		}
		c.Quantity = take
		fills = append(fills, c)
		remaining -= take
	}

	return fills
}

// collect builds the qualifying candidate list for the four isBuying×isYes
// cases: the direct book side first, then the complementary side at
// 1,000,000 minus its price.
func collect(b model.Orderbook, req model.TradeRequest) []model.Fill {
	direct, complementary := sides(b, req)

	var candidates []model.Fill

	if req.Buying {
		limit := req.Price + req.Slippage
		for _, e := range direct {
			if e.Price <= limit {
				candidates = append(candidates, fill(e, e.Price))
			}
		}
		for _, e := range complementary {
			if p := model.Unit - e.Price; p <= limit {
				candidates = append(candidates, fill(e, p))
			}
		}
		return candidates
	}

	limit := req.Price - req.Slippage
	for _, e := range direct {
		if e.Price >= limit {
			candidates = append(candidates, fill(e, e.Price))
		}
	}
	for _, e := range complementary {
		if p := model.Unit - e.Price; p >= limit {
			candidates = append(candidates, fill(e, p))
		}
	}
	return candidates
}

// sides picks the direct and complementary entry lists for a request.
// Buying takes the direct asks and the opposite outcome's bids; selling
// takes the direct bids and the opposite outcome's asks.
func sides(b model.Orderbook, req model.TradeRequest) (direct, complementary []model.Entry) {
	own, opposite := b.Yes, b.No
	if !req.Yes {
		own, opposite = b.No, b.Yes
	}
	if req.Buying {
		return own.Asks, opposite.Bids
	}
	return own.Bids, opposite.Asks
}

func fill(e model.Entry, effectivePrice int64) model.Fill {
	return model.Fill{
		AppID:          e.AppID,
		Quantity:       e.Quantity,
		Owner:          e.Owner,
		EffectivePrice: effectivePrice,
	}
}
