package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/lookout/internal/frame"
)

// StreamInterval paces the MJPEG preview (~15 FPS).
const StreamInterval = 66 * time.Millisecond

// StreamHandler serves MJPEG frames from a frame source.
type StreamHandler struct {
	frames   frame.Source
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler reading from frames.
func NewStreamHandler(frames frame.Source) *StreamHandler {
	return &StreamHandler{frames: frames, interval: StreamInterval}
}

// ServeHTTP streams MJPEG frames to connected clients. A frame is sent once;
// the handler waits for a newer one before writing again.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var lastSeq uint64
	sent := false
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		f, ok := h.frames.Latest()
		if !ok || len(f.Data) == 0 || (sent && f.Seq == lastSeq) {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(f.Data))
		if _, err := w.Write(f.Data); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		lastSeq, sent = f.Seq, true
	}
}
