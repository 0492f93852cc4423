package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"cronrunner/internal/eventbus"
	"cronrunner/internal/registry"
)

const heartbeatInterval = 30 * time.Second

// handleEvents streams every ExecutionEvent as an SSE message. The
// first message is {type:"connected", clientId}; after that a comment
// heartbeat keeps idle connections (and proxies in front of them)
// alive.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientID := uuid.New().String()
	writeSSEData(w, map[string]string{"type": "connected", "clientId": clientID})
	flusher.Flush()

	// Buffered and best-effort: a slow SSE client must never apply
	// backpressure to job execution emitting events on the bus.
	events := make(chan registry.ExecutionEvent, 64)
	off := s.bus.On(eventbus.Wildcard, func(ev registry.ExecutionEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	defer off()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			writeSSEData(w, ev)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEData(w http.ResponseWriter, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
}
