// Package transcript provides the append-only transcript segment log.
// Segments are immutable once appended and ordered by a monotonically
// increasing arrival index, which downstream consumers use as a watermark.
package transcript
