package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/lookout/internal/aoi"
	"github.com/ayusman/lookout/internal/calibration"
	"github.com/ayusman/lookout/internal/gaze"
	"github.com/ayusman/lookout/internal/log"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LiveHandler broadcasts pipeline results to WebSocket clients. It is the
// only consumer of the result channel.
type LiveHandler struct {
	results <-chan gaze.Result
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	stop    chan struct{}
	once    sync.Once
}

// NewLiveHandler starts broadcasting results.
func NewLiveHandler(results <-chan gaze.Result) *LiveHandler {
	h := &LiveHandler{
		results: results,
		clients: make(map[*websocket.Conn]bool),
		stop:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer h.remove(conn)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *LiveHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcaster.
func (h *LiveHandler) Close() {
	h.once.Do(func() { close(h.stop) })
}

func (h *LiveHandler) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// broadcast sends every result to all connected clients. Results are
// consumed even when nobody is listening.
func (h *LiveHandler) broadcast() {
	for {
		var res gaze.Result
		select {
		case <-h.stop:
			return
		case r, ok := <-h.results:
			if !ok {
				return
			}
			res = r
		}

		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}
		h.mu.RUnlock()

		msg, err := json.Marshal(res)
		if err != nil {
			log.Warn("failed to encode result", "error", err)
			continue
		}

		var dead []*websocket.Conn
		h.mu.RLock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				dead = append(dead, conn)
			}
		}
		h.mu.RUnlock()

		for _, conn := range dead {
			h.remove(conn)
			conn.Close()
		}
	}
}

// CalibrationHandler runs a calibration over a WebSocket. The client sends
// one calibrationRequest; the server streams progress messages and finishes
// with a done or error message.
type CalibrationHandler struct {
	ctl Controller
}

// NewCalibrationHandler creates a CalibrationHandler.
func NewCalibrationHandler(ctl Controller) *CalibrationHandler {
	return &CalibrationHandler{ctl: ctl}
}

type calibrationRequest struct {
	Profile string       `json:"profile"`
	AOI     [][2]float64 `json:"aoi"`
	Save    *bool        `json:"save,omitempty"`
}

// Calibration message types.
const (
	MsgProgress = "progress"
	MsgDone     = "done"
	MsgError    = "error"
)

type calibrationMessage struct {
	Type        string                `json:"type"`
	Progress    *calibration.Progress `json:"progress,omitempty"`
	RMSError    float64               `json:"rms_error,omitempty"`
	Fingerprint string                `json:"fingerprint,omitempty"`
	Path        string                `json:"path,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req calibrationRequest
	if err := conn.ReadJSON(&req); err != nil {
		send(conn, calibrationMessage{Type: MsgError, Error: "invalid calibration request"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A read error means the client went away; abort the run.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	cal, err := h.ctl.Calibrate(ctx, aoi.FromPairs(req.AOI), func(p calibration.Progress) {
		send(conn, calibrationMessage{Type: MsgProgress, Progress: &p})
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn("calibration failed", "error", err)
		}
		send(conn, calibrationMessage{Type: MsgError, Error: err.Error()})
		return
	}

	done := calibrationMessage{Type: MsgDone, RMSError: cal.RMSError}
	if req.Save == nil || *req.Save {
		path, err := h.ctl.SaveCalibration(cal, req.Profile)
		if err != nil {
			send(conn, calibrationMessage{Type: MsgError, Error: err.Error()})
			return
		}
		done.Path = path
	}
	if fp, err := cal.Fingerprint(); err == nil {
		done.Fingerprint = fp
	}
	send(conn, done)
}

func send(conn *websocket.Conn, msg calibrationMessage) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		log.Debug("calibration message not delivered", "type", msg.Type, "error", err)
	}
}
