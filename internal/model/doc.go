// Package model defines shared value types used across the chaintrader client.
//
// Conventions:
//   - Prices and quantities: integer microunits (1,000,000 = one full unit)
//   - Prices are probabilities in [0, 1,000,000]; the prices of a perfectly
//     matched YES/NO pair sum to exactly 1,000,000
//   - All types are immutable snapshots: produced and filtered, never mutated
package model
