package server

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/nguyentranbao-ct/crm-console/internal/console"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
)

// socketHandler streams the change events of the caller's console. Clients
// refetch the affected resources through the REST routes.
type socketHandler struct {
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func newSocketHandler(log *zap.SugaredLogger) *socketHandler {
	return &socketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origins are filtered by the CORS middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (h *socketHandler) Serve(c echo.Context) error {
	cons := consoleFrom(c)
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied
		h.log.Warnw("websocket upgrade failed", "session_id", cons.ID(), "error", err)
		return nil
	}

	events, unsubscribe := cons.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go h.readPump(conn, closed)
	h.writePump(conn, cons.ID(), events, closed)
	return nil
}

// readPump discards client frames and watches for the connection to drop.
func (h *socketHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *socketHandler) writePump(conn *websocket.Conn, sessionID string, events <-chan console.Event, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// console closed by logout
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.log.Errorw("encode console event failed", "session_id", sessionID, "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Debugw("websocket write failed", "session_id", sessionID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
