// Package session defines the session record and its lifecycle states.
// Status transitions are the only externally visible lifecycle markers;
// everything else about a running session is observed through events
// or snapshot reads.
package session
