// Package source abstracts the origin of session audio behind a single
// capability contract. Two implementations exist: a live source wrapping a
// capture device, and a replay source that paces a pre-recorded buffer to
// simulate real-time delivery. Callers never branch on which variant they
// hold; stopped and drained sources are observable only through Complete
// and the end-of-stream sentinel.
package source
