package rest

// MarketsResponse from GET /markets
type MarketsResponse struct {
	Markets   []Market `json:"markets"`
	NextToken string   `json:"next_token"`
}

// SingleMarketResponse from GET /markets/{appID}
type SingleMarketResponse struct {
	Market Market `json:"market"`
}

// Market is the partner API's view of a market. The on-chain state remains
// authoritative for trading; this metadata drives discovery and display.
type Market struct {
	AppID    int64  `json:"app_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Status   string `json:"status"` // unactivated, trading, resolved

	CollateralAssetID int64 `json:"collateral_asset_id"`
	YesAssetID        int64 `json:"yes_asset_id"`
	NoAssetID         int64 `json:"no_asset_id"`

	// Prices in microunits (0-1,000,000)
	YesBid int64 `json:"yes_bid"`
	YesAsk int64 `json:"yes_ask"`

	Volume         int64  `json:"volume"`
	ResolutionTime string `json:"resolution_time"` // ISO 8601
	CreatedTime    string `json:"created_time"`    // ISO 8601
}

// OrdersResponse from GET /markets/{appID}/orders
type OrdersResponse struct {
	Orders    []Order `json:"orders"`
	NextToken string  `json:"next_token"`
}

// Order is the partner API's view of one resting order.
type Order struct {
	EscrowAppID    int64  `json:"escrow_app_id"`
	MarketAppID    int64  `json:"market_app_id"`
	Owner          string `json:"owner"`
	Position       string `json:"position"` // "yes" or "no"
	Side           string `json:"side"`     // "bid" or "ask"
	Price          int64  `json:"price"`
	Quantity       int64  `json:"quantity"`
	QuantityFilled int64  `json:"quantity_filled"`
	Slippage       int64  `json:"slippage"`
}

// GetMarketsOptions filters a markets listing.
type GetMarketsOptions struct {
	Limit     int
	NextToken string
	Status    string
	Category  string
}
