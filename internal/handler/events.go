package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adilcse/okneppo-sub001/internal/service"
	"github.com/adilcse/okneppo-sub001/pkg/logger"
)

const writeTimeout = 10 * time.Second

// EventsHandler upgrades viewer connections to a websocket and pumps
// broadcast frames to them
type EventsHandler struct {
	broadcaster *service.Broadcaster
	upgrader    websocket.Upgrader
	logger      *logger.Logger
}

// NewEventsHandler creates a new live event stream handler
func NewEventsHandler(broadcaster *service.Broadcaster, log *logger.Logger) *EventsHandler {
	return &EventsHandler{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Viewers are same-origin dashboard sessions; the stream
			// carries no credentials and accepts no commands.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// HandleStream handles GET /api/v1/events
func (h *EventsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	sub := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(sub)
	defer conn.Close()

	// Reader loop only detects disconnect; viewers send nothing.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-readerDone:
			return
		case frame, ok := <-sub.Events():
			if !ok {
				// Broadcaster pruned this subscriber.
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Debug("Viewer write failed, closing", "error", err)
				return
			}
		}
	}
}
