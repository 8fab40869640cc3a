package model

// Unit is the microunit scale factor: 1,000,000 microunits = one full unit.
// Prices are probabilities expressed on the same scale.
const Unit int64 = 1_000_000

// Position identifies one of the two outcome tokens of a binary market.
type Position uint8

const (
	PositionNo  Position = 0
	PositionYes Position = 1
)

// String returns "yes" or "no".
func (p Position) String() string {
	if p == PositionYes {
		return "yes"
	}
	return "no"
}

// Opposite returns the other outcome.
func (p Position) Opposite() Position {
	if p == PositionYes {
		return PositionNo
	}
	return PositionYes
}

// BookSide identifies which side of the book an order rests on.
type BookSide uint8

const (
	SideBid BookSide = 0
	SideAsk BookSide = 1
)

// String returns "bid" or "ask".
func (s BookSide) String() string {
	if s == SideAsk {
		return "ask"
	}
	return "bid"
}

// Entry is a single resting order on the public book.
// Quantity is the remaining (unfilled) amount.
type Entry struct {
	Price    int64  // Limit price (microunits, 0-1,000,000)
	Quantity int64  // Remaining quantity (microunits), always > 0
	AppID    int64  // On-chain escrow application ID
	Owner    string // Maker address
}

// OutcomeBook holds both sides of the book for one outcome token.
type OutcomeBook struct {
	Bids []Entry
	Asks []Entry
}

// Orderbook is a normalized two-sided, two-outcome book snapshot.
type Orderbook struct {
	Yes OutcomeBook
	No  OutcomeBook
}

// Empty reports whether the book holds no entries at all.
func (b Orderbook) Empty() bool {
	return len(b.Yes.Bids) == 0 && len(b.Yes.Asks) == 0 &&
		len(b.No.Bids) == 0 && len(b.No.Asks) == 0
}

// Fill is one proposed fill against one resting order. EffectivePrice is the
// price from the taker's point of view: for complementary candidates it is
// 1,000,000 minus the resting order's price.
type Fill struct {
	AppID          int64  // Counterparty escrow application ID
	Quantity       int64  // Quantity to match (microunits)
	Owner          string // Maker address
	EffectivePrice int64  // Price the taker pays/receives (microunits)
}

// TradeRequest is the taker's desired trade. Price is the limit (worst
// acceptable) price; Slippage widens it for market orders. Slippage of zero
// designates a pure limit order that never auto-matches. FeeBase of zero means
// "use the market's configured fee rate".
type TradeRequest struct {
	Buying   bool
	Yes      bool
	Quantity int64 // microunits
	Price    int64 // microunits, 0-1,000,000
	Slippage int64 // microunits of acceptable price movement
	FeeBase  int64 // microunit fraction feeding the fee curve, 0 = market default
}

// Position returns the outcome token the request trades.
func (r TradeRequest) Position() Position {
	if r.Yes {
		return PositionYes
	}
	return PositionNo
}

// OpenOrder is one resting order owned by a specific wallet, with raw
// quantities retained for display.
type OpenOrder struct {
	AppID          int64
	Position       Position
	Side           BookSide
	Price          int64 // microunits
	Quantity       int64 // total order quantity (microunits)
	QuantityFilled int64 // filled so far (microunits)
	Slippage       int64 // 0 = pure limit order
	Owner          string
}

// Remaining returns the unfilled quantity.
func (o OpenOrder) Remaining() int64 {
	return o.Quantity - o.QuantityFilled
}
