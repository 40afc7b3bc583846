// Package server implements the HTTP API for session control and
// monitoring: starting and stopping sessions, snapshot reads for late
// subscribers, health and statistics endpoints, and the Prometheus
// metrics endpoint.
package server
