package ledger

import (
	"fmt"

	"github.com/rickgao/chaintrader/internal/model"
)

// Escrow contract state keys.
const (
	keyPosition       = "position"
	keySide           = "side"
	keyPrice          = "price"
	keyQuantity       = "quantity"
	keyQuantityFilled = "quantity_filled"
	keySlippage       = "slippage"
	keyOwner          = "owner"
	keyMarketAppID    = "market_app_id"
)

// Market contract state keys.
const (
	keyCollateralAssetID = "collateral_asset_id"
	keyYesAssetID        = "yes_asset_id"
	keyNoAssetID         = "no_asset_id"
	keyIsResolved        = "is_resolved"
	keyIsActivated       = "is_activated"
	keyResolutionTime    = "resolution_time"
	keyFeeBasePercent    = "fee_base_percent"
	keyFeeAddress        = "fee_address"
	keyTitle             = "title"
)

// addressKeys are the state keys whose byte values are raw 32-byte public
// keys, rendered in the ledger's address encoding. Every other byte value is
// UTF-8 text.
var addressKeys = map[string]bool{
	keyOwner:         true,
	keyFeeAddress:    true,
	"oracle_address": true,
}

// Market is the decoded global state of a market contract.
type Market struct {
	AppID             int64
	CollateralAssetID int64
	YesAssetID        int64
	NoAssetID         int64
	Resolved          bool
	Activated         bool
	ResolutionTime    int64
	FeeBasePercent    int64 // microunit fraction feeding the fee curve
	FeeAddress        string
	Title             string
}

// AssetFor returns the outcome token asset for a position.
func (m *Market) AssetFor(p model.Position) int64 {
	if p == model.PositionYes {
		return m.YesAssetID
	}
	return m.NoAssetID
}

// Escrow is the decoded global state of one escrow (order) contract.
type Escrow struct {
	AppID          int64
	Position       model.Position
	Side           model.BookSide
	Price          int64
	Quantity       int64
	QuantityFilled int64
	Slippage       int64
	Owner          string
	MarketAppID    int64
}

// DecodeMarket decodes market contract state. Missing or mistyped required
// keys fail the whole record; a market is never partially decoded.
func DecodeMarket(appID int64, state map[string]Value, encode func([]byte) string) (*Market, error) {
	collateral, err := uintKey(state, keyCollateralAssetID)
	if err != nil {
		return nil, err
	}
	yes, err := uintKey(state, keyYesAssetID)
	if err != nil {
		return nil, err
	}
	no, err := uintKey(state, keyNoAssetID)
	if err != nil {
		return nil, err
	}
	resolved, err := uintKey(state, keyIsResolved)
	if err != nil {
		return nil, err
	}
	activated, err := uintKey(state, keyIsActivated)
	if err != nil {
		return nil, err
	}
	resolutionTime, err := uintKey(state, keyResolutionTime)
	if err != nil {
		return nil, err
	}
	feeBase, err := uintKey(state, keyFeeBasePercent)
	if err != nil {
		return nil, err
	}
	feeAddr, err := addressKey(state, keyFeeAddress, encode)
	if err != nil {
		return nil, err
	}
	title, err := textKey(state, keyTitle)
	if err != nil {
		return nil, err
	}

	return &Market{
		AppID:             appID,
		CollateralAssetID: int64(collateral),
		YesAssetID:        int64(yes),
		NoAssetID:         int64(no),
		Resolved:          resolved != 0,
		Activated:         activated != 0,
		ResolutionTime:    int64(resolutionTime),
		FeeBasePercent:    int64(feeBase),
		FeeAddress:        feeAddr,
		Title:             title,
	}, nil
}

// DecodeEscrow decodes escrow contract state. Missing or mistyped required
// keys fail the whole record.
func DecodeEscrow(appID int64, state map[string]Value, encode func([]byte) string) (*Escrow, error) {
	position, err := uintKey(state, keyPosition)
	if err != nil {
		return nil, err
	}
	if position > 1 {
		return nil, fmt.Errorf("escrow %d: position %d out of range", appID, position)
	}
	side, err := uintKey(state, keySide)
	if err != nil {
		return nil, err
	}
	if side > 1 {
		return nil, fmt.Errorf("escrow %d: side %d out of range", appID, side)
	}
	price, err := uintKey(state, keyPrice)
	if err != nil {
		return nil, err
	}
	quantity, err := uintKey(state, keyQuantity)
	if err != nil {
		return nil, err
	}
	filled, err := uintKey(state, keyQuantityFilled)
	if err != nil {
		return nil, err
	}
	slippage, err := uintKey(state, keySlippage)
	if err != nil {
		return nil, err
	}
	owner, err := addressKey(state, keyOwner, encode)
	if err != nil {
		return nil, err
	}
	marketAppID, err := uintKey(state, keyMarketAppID)
	if err != nil {
		return nil, err
	}

	return &Escrow{
		AppID:          appID,
		Position:       model.Position(position),
		Side:           model.BookSide(side),
		Price:          int64(price),
		Quantity:       int64(quantity),
		QuantityFilled: int64(filled),
		Slippage:       int64(slippage),
		Owner:          owner,
		MarketAppID:    int64(marketAppID),
	}, nil
}

// RenderValue formats one state entry for display: integers as-is, known
// address keys through the ledger encoding, other byte values as UTF-8.
func RenderValue(key string, v Value, encode func([]byte) string) string {
	if !v.IsBytes {
		return fmt.Sprintf("%d", v.Uint)
	}
	if addressKeys[key] && len(v.Bytes) == 32 {
		return encode(v.Bytes)
	}
	return string(v.Bytes)
}

// RenderState formats a whole state map for logging, one rendered string
// per key.
func RenderState(state map[string]Value, encode func([]byte) string) map[string]string {
	out := make(map[string]string, len(state))
	for key, v := range state {
		out[key] = RenderValue(key, v, encode)
	}
	return out
}

func uintKey(state map[string]Value, key string) (uint64, error) {
	v, present := state[key]
	if !present {
		return 0, fmt.Errorf("state key %q missing", key)
	}
	if v.IsBytes {
		return 0, fmt.Errorf("state key %q: want uint, got bytes", key)
	}
	return v.Uint, nil
}

func textKey(state map[string]Value, key string) (string, error) {
	v, present := state[key]
	if !present {
		return "", fmt.Errorf("state key %q missing", key)
	}
	if !v.IsBytes {
		return "", fmt.Errorf("state key %q: want bytes, got uint", key)
	}
	return string(v.Bytes), nil
}

func addressKey(state map[string]Value, key string, encode func([]byte) string) (string, error) {
	v, present := state[key]
	if !present {
		return "", fmt.Errorf("state key %q missing", key)
	}
	if !v.IsBytes {
		return "", fmt.Errorf("state key %q: want address bytes, got uint", key)
	}
	if len(v.Bytes) != 32 {
		return "", fmt.Errorf("state key %q: address is %d bytes, want 32", key, len(v.Bytes))
	}
	return encode(v.Bytes), nil
}
