package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Dev stub for the transcription backend: accepts the service's multipart
// upload and returns canned diarized segments so a full session can be run
// locally without a real model.

type segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

type transcriptionResponse struct {
	Segments []segment `json:"segments"`
}

var cannedTexts = []string{
	"So let's get started with the agenda.",
	"The budget numbers look better than last quarter.",
	"We still need to confirm the launch date.",
	"I'll follow up with the design team tomorrow.",
	"Any objections before we move on?",
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	requestID := r.FormValue("request_id")
	sessionID := r.FormValue("session_id")
	sequence := r.FormValue("sequence")
	duration := parseFloat64(r.FormValue("duration"))

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting content file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading content file", http.StatusInternalServerError)
		return
	}

	log.Printf("🎤 TRANSCRIPTION REQUEST: request_id=%s session_id=%s sequence=%s file=%s size=%d duration=%.2fs",
		requestID, sessionID, sequence, header.Filename, len(data), duration)

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	idx := parseInt(sequence) % len(cannedTexts)
	response := transcriptionResponse{
		Segments: []segment{
			{
				Start:   0,
				End:     duration,
				Text:    cannedTexts[idx],
				Speaker: fmt.Sprintf("spk%d", idx%2),
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ TRANSCRIPTION RESPONSE SENT: '%s'", response.Segments[0].Text)
}

func parseInt(s string) int {
	var val int
	fmt.Sscanf(s, "%d", &val)
	if val < 0 {
		val = -val
	}
	return val
}

func parseFloat64(s string) float64 {
	var val float64
	fmt.Sscanf(s, "%f", &val)
	return val
}

func main() {
	http.HandleFunc("/transcribe", transcribeHandler)

	port := ":9000"
	log.Printf("🚀 Test Transcription Server starting on port %s", port)
	log.Printf("📡 Endpoint: http://localhost%s/transcribe", port)
	log.Println("💡 Update your config to use: http://localhost:9000/transcribe")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
