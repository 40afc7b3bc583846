package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/live-summary-service/internal/config"
	"github.com/skypro1111/live-summary-service/internal/metrics"
	"github.com/skypro1111/live-summary-service/internal/registry"
	"github.com/skypro1111/live-summary-service/internal/source"
	"github.com/skypro1111/live-summary-service/internal/transcription"
)

// HTTPServer provides HTTP API endpoints for session control and monitoring
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	registry  *registry.Registry
	client    *transcription.Client
	metrics   *metrics.Metrics
	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, reg *registry.Registry, client *transcription.Client, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		registry:  reg,
		client:    client,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Session control and monitoring endpoints
	mux.HandleFunc("/sessions", h.withMetrics("/sessions", h.handleSessions))
	mux.HandleFunc("/sessions/", h.withMetrics("/sessions/{id}", h.handleSessionDetail))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	transcriptionStats := h.client.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "live-summary-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"registry": map[string]interface{}{
				"status":          "running",
				"active_sessions": h.registry.ActiveCount(),
			},
			"transcription": map[string]interface{}{
				"status":          "running",
				"total_requests":  transcriptionStats.TotalRequests,
				"success_rate":    transcriptionStats.SuccessRate,
				"active_requests": transcriptionStats.ActiveRequests,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleSessions implements the /sessions endpoint: GET lists active
// sessions, POST starts a new one from an uploaded recording.
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listSessions(w, r)
	case http.MethodPost:
		h.createSession(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPServer) listSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := h.registry.ActiveSessions()

	response := map[string]interface{}{
		"total_sessions": len(sessions),
		"timestamp":      time.Now().UTC(),
		"sessions":       sessions,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// createSessionRequest is the POST /sessions body. Chunk data is base64;
// durations are in seconds.
type createSessionRequest struct {
	SessionID string  `json:"session_id,omitempty"`
	Pace      bool    `json:"pace,omitempty"`
	Metadata  *struct {
		SampleRate int    `json:"sample_rate"`
		Channels   int    `json:"channels"`
		BitDepth   int    `json:"bit_depth"`
		Format     string `json:"format"`
	} `json:"metadata,omitempty"`
	Chunks []struct {
		Data     string  `json:"data"`
		Duration float64 `json:"duration"`
	} `json:"chunks"`
}

func (h *HTTPServer) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Chunks) == 0 {
		http.Error(w, "At least one chunk is required", http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	metadata := source.Metadata{SampleRate: 16000, Channels: 1, BitDepth: 16, Format: "pcm"}
	if req.Metadata != nil {
		metadata = source.Metadata{
			SampleRate: req.Metadata.SampleRate,
			Channels:   req.Metadata.Channels,
			BitDepth:   req.Metadata.BitDepth,
			Format:     req.Metadata.Format,
		}
	}

	chunks := make([]source.Chunk, 0, len(req.Chunks))
	for i, c := range req.Chunks {
		data, err := base64.StdEncoding.DecodeString(c.Data)
		if err != nil {
			http.Error(w, fmt.Sprintf("Chunk %d is not valid base64", i), http.StatusBadRequest)
			return
		}
		chunks = append(chunks, source.Chunk{
			Data:     data,
			Duration: time.Duration(c.Duration * float64(time.Second)),
		})
	}

	result, err := h.registry.Start(sessionID, source.NewReplay(chunks, metadata, req.Pace))
	if err != nil {
		http.Error(w, "Failed to start session: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if result == registry.AlreadyRunning {
		http.Error(w, "Session already running", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id": sessionID,
		"status":     "started",
		"chunks":     len(chunks),
	})
}

// handleSessionDetail implements /sessions/{id} and its sub-resources.
func (h *HTTPServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if rest == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	sessionID, action, _ := strings.Cut(rest, "/")

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.getSession(w, r, sessionID)
	case "stop":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.stopSession(w, sessionID)
	case "title":
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.setTitle(w, r, sessionID)
	case "attendees":
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.setAttendees(w, r, sessionID)
	default:
		http.NotFound(w, r)
	}
}

func (h *HTTPServer) getSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	snapshot, err := h.registry.Snapshot(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, registry.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

func (h *HTTPServer) stopSession(w http.ResponseWriter, sessionID string) {
	if err := h.registry.Stop(sessionID); err != nil {
		if errors.Is(err, registry.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to stop session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id": sessionID,
		"status":     "stopping",
	})
}

func (h *HTTPServer) setTitle(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req struct {
		Title  string `json:"title"`
		Source string `json:"source,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "Title cannot be empty", http.StatusBadRequest)
		return
	}
	if req.Source == "" {
		req.Source = "user"
	}

	if err := h.registry.SetTitle(sessionID, req.Title, req.Source); err != nil {
		if errors.Is(err, registry.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to set title: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPServer) setAttendees(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req struct {
		Attendees []string `json:"attendees"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.registry.SetAttendees(sessionID, req.Attendees); err != nil {
		if errors.Is(err, registry.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to set attendees: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"http": map[string]interface{}{
			"port":    h.config.HTTP.Port,
			"address": h.config.HTTP.Address,
		},
		"session": map[string]interface{}{
			"tick_interval":     h.config.Session.TickInterval,
			"failure_threshold": h.config.Session.FailureThreshold,
			"chunk_duration":    h.config.Session.ChunkDuration,
		},
		"bus": map[string]interface{}{
			"subscriber_buffer": h.config.Bus.SubscriberBuffer,
		},
		"transcription": map[string]interface{}{
			"endpoint":       h.config.Transcription.Endpoint,
			"timeout":        h.config.Transcription.Timeout,
			"max_retries":    h.config.Transcription.MaxRetries,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
			"language":       h.config.Transcription.Language,
			"model":          h.config.Transcription.Model,
			// Note: API key is intentionally omitted for security
		},
		"summary": map[string]interface{}{
			"cleanup_timeout":      h.config.Summary.CleanupTimeout,
			"segmentation_timeout": h.config.Summary.SegmentationTimeout,
		},
		"store": map[string]interface{}{
			"path": h.config.Store.Path,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	transcriptionStats := h.client.GetStats()
	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":        uptime.String(),
		"timestamp":     time.Now().UTC(),
		"transcription": transcriptionStats,
		"sessions": map[string]interface{}{
			"active_count": h.registry.ActiveCount(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Live Summary Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                        "API documentation",
			"GET /health":                  "Service health check",
			"GET /sessions":                "List all active sessions",
			"POST /sessions":               "Start a session from an uploaded recording",
			"GET /sessions/{id}":           "Get session snapshot (transcript and summary)",
			"POST /sessions/{id}/stop":     "Request the end of a session",
			"PUT /sessions/{id}/title":     "Set the session title",
			"PUT /sessions/{id}/attendees": "Set the session attendee list",
			"GET /config":                  "Get service configuration",
			"GET /stats":                   "Get service statistics",
			"GET /metrics":                 "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
