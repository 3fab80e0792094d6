package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// setSSEHeaders configures the response for Server-Sent Events streaming.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeSSEEvent writes a single SSE event to the response.
func writeSSEEvent(w http.ResponseWriter, id string, event string, data string) {
	fmt.Fprintf(w, "id: %s\n", id)
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// rejectionStreamHandler streams new rejections via SSE. The event name is
// the failed operation ("parse" or "render") and the id is the rejection
// sequence number. Accepts the same filters as the rejections list.
func (s *Server) rejectionStreamHandler(w http.ResponseWriter, r *http.Request) {
	filter := rejectionFilter(r)

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	sub := s.engine.Rejections().Subscribe(128)
	defer sub.Close()
	slog.Debug("rejection stream opened", "remote", r.RemoteAddr, "principal", Principal(r.Context()))

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-sub.C:
			if !filter.Match(rec) {
				continue
			}
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			writeSSEEvent(w, fmt.Sprintf("%d", rec.Seq), rec.Op, string(data))
		}
	}
}
