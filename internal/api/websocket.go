package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/logging"
	"github.com/nerrad567/ith-monitor-core/internal/measurement"
	"github.com/nerrad567/ith-monitor-core/internal/sensor"
)

// StreamEventMeasurement is the only frame type viewers receive today.
const StreamEventMeasurement = "measurement"

// viewerBuffer is how many frames a slow viewer may lag before frames drop.
const viewerBuffer = 64

var errHubClosed = errors.New("stream hub closed")

// StreamEvent is one frame on the live measurement stream.
type StreamEvent struct {
	Type        string                   `json:"type"`
	Measurement *measurement.Measurement `json:"measurement"`
}

// Hub fans stored measurements out to websocket viewers. A viewer chooses
// its devices with ?dev_eui=A,B when connecting; no filter means every device.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	viewers map[*viewer]struct{}
	closed  bool
}

type viewer struct {
	conn    *websocket.Conn
	devices map[string]struct{} // nil: all devices
	out     chan StreamEvent
}

func (v *viewer) wants(m *measurement.Measurement) bool {
	if v.devices == nil {
		return true
	}
	if m.DevEUI == nil {
		return false
	}
	_, ok := v.devices[*m.DevEUI]
	return ok
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates an empty hub. Call Run to tie its lifetime to a context.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		viewers: make(map[*viewer]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every viewer and refuses
// new ones.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for v := range h.viewers {
		delete(h.viewers, v)
		close(v.out)
	}
}

// PublishMeasurement queues m for every viewer watching its device. Viewers
// whose buffer is full miss the frame.
func (h *Hub) PublishMeasurement(m *measurement.Measurement) {
	if m == nil {
		return
	}
	ev := StreamEvent{Type: StreamEventMeasurement, Measurement: m}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for v := range h.viewers {
		if !v.wants(m) {
			continue
		}
		select {
		case v.out <- ev:
		default:
			h.logger.Debug("stream viewer lagging, frame dropped", "measurement_id", m.ID)
		}
	}
}

// ViewerCount returns the number of connected viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

func (h *Hub) add(v *viewer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHubClosed
	}
	h.viewers[v] = struct{}{}
	return nil
}

// remove closes v.out once, whichever of remove and Run gets there first.
func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[v]; ok {
		delete(h.viewers, v)
		close(v.out)
	}
}

// parseDeviceFilter turns "a,b" into a set of canonical EUIs. An empty
// parameter yields nil.
func parseDeviceFilter(raw string) (map[string]struct{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	devices := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		eui := sensor.NormalizeEUI(part)
		if eui == "" {
			return nil, sensor.ErrInvalidEUI
		}
		devices[eui] = struct{}{}
	}
	return devices, nil
}

// handleWebSocket upgrades the request and streams measurements until the
// viewer disconnects or the hub shuts down.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	devices, err := parseDeviceFilter(r.URL.Query().Get("dev_eui"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "dev_eui must list hex EUIs separated by commas")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	v := &viewer{conn: conn, devices: devices, out: make(chan StreamEvent, viewerBuffer)}
	if err := s.hub.add(v); err != nil {
		conn.Close()
		return
	}
	s.logger.Debug("stream viewer connected", "devices", len(devices), "viewers", s.hub.ViewerCount())

	go s.hub.writeLoop(v)
	go s.hub.readLoop(v)
}

// readLoop discards viewer frames and keeps the read deadline alive. Any
// read error ends the viewer.
func (h *Hub) readLoop(v *viewer) {
	defer func() {
		h.remove(v)
		v.conn.Close()
	}()

	wait := time.Duration(h.cfg.PingInterval+h.cfg.PongTimeout) * time.Second
	v.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	v.conn.SetReadDeadline(time.Now().Add(wait)) //nolint:errcheck // Best-effort deadline
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		v.conn.SetReadDeadline(time.Now().Add(wait)) //nolint:errcheck // Best-effort deadline
	}
}

// writeLoop sends queued frames and keepalive pings until v.out closes.
func (h *Hub) writeLoop(v *viewer) {
	ticker := time.NewTicker(time.Duration(h.cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()
	writeWait := time.Duration(h.cfg.PongTimeout) * time.Second

	for {
		select {
		case ev, ok := <-v.out:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // Best-effort deadline
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck // Best-effort close frame
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := v.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // Best-effort deadline
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
