// Package poller periodically re-projects orderbooks from the ledger for
// every market currently open for trading.
//
// The poller:
//   - Polls on a fixed interval with bounded concurrency
//   - Hands each fresh book projection to a handler
//   - Treats per-market failures as soft: logged, counted, never fatal
package poller
