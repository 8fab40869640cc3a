package ledger

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups when the requested object is not (yet)
// visible. The secondary index lags the primary ledger, so a miss there is
// frequently transient.
var ErrNotFound = errors.New("ledger: not found")

// Value is one decoded application key-value entry: either an integer or a
// byte string.
type Value struct {
	Uint    uint64
	Bytes   []byte
	IsBytes bool
}

// UintValue returns a Value holding an integer.
func UintValue(u uint64) Value { return Value{Uint: u} }

// BytesValue returns a Value holding a byte string.
func BytesValue(b []byte) Value { return Value{Bytes: b, IsBytes: true} }

// OpType discriminates the operation vocabulary.
type OpType uint8

const (
	OpPayment OpType = iota + 1
	OpAssetOptIn
	OpAssetTransfer
	OpAppCall
)

// Operation is one step of a settlement bundle. Exactly which fields are
// meaningful depends on Type:
//
//	OpPayment:       Sender, Receiver, Amount (native funding asset)
//	OpAssetOptIn:    Sender, AssetID (zero-value self transfer)
//	OpAssetTransfer: Sender, Receiver, AssetID, Amount
//	OpAppCall:       Sender, AppID, Args, ForeignApps, Accounts
type Operation struct {
	Type        OpType
	Sender      string
	Receiver    string
	AssetID     int64
	Amount      int64
	AppID       int64
	Args        [][]byte
	ForeignApps []int64
	Accounts    []string
}

// AppRecord is one application discovered by creator enumeration, with its
// decoded key-value state.
type AppRecord struct {
	ID    int64
	State map[string]Value
}

// SubmitResult is the outcome of an atomic group submission.
type SubmitResult struct {
	// TxIDs holds one identifier per submitted operation, in order.
	TxIDs []string

	// ConfirmedRound is the height at which the group confirmed.
	ConfirmedRound int64

	// AppID is the identifier of an application created by the group, when
	// the primary inclusion record exposes it immediately. Zero otherwise.
	AppID int64
}

// OperationRecord is a submitted operation as seen by the secondary index.
type OperationRecord struct {
	TxID           string
	ConfirmedRound int64

	// CreatedAppID is the application created by this operation (directly
	// or through inner operations), zero if none.
	CreatedAppID int64
}

// Ledger is the collaborator the trading engine submits through and reads
// from. Implementations must make SubmitGroup all-or-nothing: either every
// operation confirms or none does.
type Ledger interface {
	// AppState reads the decoded global key-value state of an application.
	AppState(ctx context.Context, appID int64) (map[string]Value, error)

	// AccountAssets returns the asset holdings of an address, keyed by
	// asset ID. Presence of a key means the account is opted in, even at a
	// zero balance.
	AccountAssets(ctx context.Context, address string) (map[int64]int64, error)

	// CreatedApps enumerates applications created by an address, one page
	// per call. A non-empty next token continues the enumeration; an empty
	// returned token ends it.
	CreatedApps(ctx context.Context, address, nextToken string) ([]AppRecord, string, error)

	// SubmitGroup executes an ordered group of operations atomically and
	// waits for confirmation.
	SubmitGroup(ctx context.Context, ops []Operation) (*SubmitResult, error)

	// LookupOperation reads a submitted operation from the secondary index.
	// Returns ErrNotFound while the index has not caught up.
	LookupOperation(ctx context.Context, txID string) (*OperationRecord, error)

	// AppAddress returns the custody address owned by an application.
	AppAddress(appID int64) string

	// EncodeAddress renders a raw 32-byte public key in the ledger's
	// address encoding.
	EncodeAddress(raw []byte) string
}
