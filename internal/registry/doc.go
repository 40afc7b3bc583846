// Package registry owns the active session arena: at most one job record
// per session id, each holding the session's source, transcript log, event
// bus, summary pipeline, and the transcription driver loop. An external
// stop request only stops the source; the record is removed when the
// driver loop itself observes completion and deregisters, which removes
// any race between a stop request and an in-flight loop iteration.
package registry
