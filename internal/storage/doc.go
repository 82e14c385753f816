// Package storage provides a small key/value persistence layer for
// subsystem state (devtools panel toggles, the last stats snapshot).
//
// Drivers:
//   - "memory": process-local map, lost on exit
//   - "file":   JSON snapshot plus an append-only JSON Lines journal
//   - "sqlite": single-table SQLite database (modernc.org/sqlite, no cgo)
package storage
