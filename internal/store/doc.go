// Package store persists session snapshots: lifecycle status, the
// transcript log, and summary state. The core writes after committed ticks
// and status transitions and reads on cold subscribes; in-memory state
// remains authoritative when a write fails. The SQLite implementation uses
// the pure-Go modernc driver.
package store
