// Package storage persists recompute history, the latest rendered schedule and
// the notifier's dedup state so they survive restarts.
package storage
