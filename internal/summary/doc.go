// Package summary implements the tick-driven pipeline that turns the raw
// transcript into stable, topic-scoped summaries. State lives in five text
// buffers (streaming, draft, done, interim, summarized); each tick absorbs
// new segments, extracts whole sentences for cleanup, re-segments the draft
// into topics, and commits finished topics pairwise into done/summarized.
// At most one tick runs per session; a tick requested while one is in
// flight is skipped, never queued.
package summary
