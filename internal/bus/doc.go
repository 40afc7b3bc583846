// Package bus implements the per-session ordered event broadcast.
// Publishing never blocks on subscriber speed: each subscriber owns a
// bounded buffer and the overflow policy is drop-oldest, so a slow
// observer loses its oldest undelivered events rather than stalling the
// producers. Late subscribers receive no replay; they are expected to read
// a snapshot first and rely on the bus for deltas.
package bus
