// Package trade implements the settlement orchestrator: it turns a trade
// request into one atomic operation bundle (conditional opt-in, protocol-fee
// guarantee, principal transfer, escrow creation, match proposals), submits
// it through the ledger collaborator, and resolves the identifier of the
// newly created escrow.
//
// A bundle is built in memory, submitted exactly once, then discarded. The
// book snapshot used for matching may be stale by the time the bundle lands;
// no counterpart liquidity is reserved ahead of submission, so a proposal
// can fail on-chain, and that failure surfaces at the bundle level. The only
// built-in retry loop is the read-only escrow-identifier poll against the
// secondary index, which is bounded and never resubmits.
package trade
