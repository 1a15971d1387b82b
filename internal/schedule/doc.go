// Package schedule holds the task graph of a deal timeline and resolves it into
// concrete dates.
//
// Tasks reference each other by id only. A Project is recomputed explicitly by
// the caller after a batch of edits; there is no incremental update. Cycles and
// tasks blocked behind them are reported, never fatal.
package schedule
