// Package transcription implements the HTTP client for the
// transcription/diarization backend. It uploads content chunks as
// multipart form data, bounds concurrency with a semaphore, and retries
// retryable failures with exponential backoff. A failed call degrades one
// chunk, never the session.
package transcription
