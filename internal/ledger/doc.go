// Package ledger defines the narrow interface through which the trading
// engine consumes the underlying ledger and its secondary index, plus the
// decoding of on-chain market and escrow contract state.
//
// The package never talks to a network itself: a concrete implementation
// (node client, indexer client) is injected by the caller. Operation values
// describe what must be submitted; the implementation is responsible for
// turning them into real transactions and executing the group atomically.
package ledger
