package httpserver

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/coachpo/riftpilot/internal/app/uibus"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = (eventsPongWait * 9) / 10
	eventsReadLimit  = 4 * 1024
)

func newUpgrader(origins originPolicy) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     origins.checkOrigin,
	}
}

// serveEvents streams UI messages as JSON text frames until either side goes away.
func (s *httpServer) serveEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		writeUnavailable(w, "events")
		return
	}
	id, messages, err := s.deps.Events.Subscribe(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Events.Unsubscribe(id)
		s.logger.Printf("events upgrade: %v", err)
		return
	}
	defer func() {
		s.deps.Events.Unsubscribe(id)
		_ = conn.Close()
	}()

	closed := make(chan struct{})
	go readUntilClosed(conn, closed)
	writeEvents(conn, messages, closed)
}

// readUntilClosed drains client frames so control frames (pong, close) are processed.
func readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(eventsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeEvents(conn *websocket.Conn, messages <-chan uibus.Message, closed <-chan struct{}) {
	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case msg, ok := <-messages:
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			frame, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
