// Package roster answers questions that span more than one day: it fans a
// date range out into per-day queries ([Aggregator]) and reduces the merged
// appointments into a customer list ([DeriveCustomers]).
//
// Aggregation is best effort. A failed day contributes no appointments and is
// reported in [RangeResult.Failed] instead of failing the whole range.
package roster
