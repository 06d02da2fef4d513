// Package store is the SQLite run journal.
//
// Each protocol run gets a row in runs. The Recorder reactor mirrors the
// run's dispatched actions into it:
//   - commands: latest snapshot of every command, keyed by id, with the
//     enqueue position in seq
//   - errors: every recorded error occurrence
//   - labware_offsets: offsets registered for the run
//   - actions: one row per dispatched action, in dispatch order
//
// # Ordering
//
// All reads order by seq ASC, id COLLATE BINARY ASC. Timestamps are data,
// never sort keys.
//
// # Database Configuration
//
//   - WAL mode: history reads during a live run
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
