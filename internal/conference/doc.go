// Package conference runs reconciliation cycles: it merges conference
// documents, detects whether the merged data changed, and applies the
// resulting mutation batch to the store in one transaction.
//
// A cycle proceeds as:
//
//  1. Parse every document into a staging handler set, lowest priority
//     first, and merge it over the previous ones.
//  2. Compute the canonical digest of the merged set.
//  3. Stop if the digest equals the one persisted by the last cycle.
//  4. Emit and apply the mutation batch atomically.
//  5. Persist the digest and notify observers once.
package conference
