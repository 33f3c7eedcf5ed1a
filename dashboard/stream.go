package dashboard

import (
	"net/http"
	"time"

	"github.com/auditmos/dianoia/logging"
	"github.com/gorilla/websocket"
)

const (
	streamBuffer = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleStream pushes every accepted entry to a websocket client as JSON.
// With ?backlog=1 the current buffer is sent first. A client that falls
// behind loses entries rather than slowing the logger down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var minLevel *logging.LogLevel
	if raw := r.URL.Query().Get("level"); raw != "" {
		l, ok := logging.LookupLevel(raw)
		if !ok {
			writeJSONError(w, "invalid level", http.StatusBadRequest)
			return
		}
		minLevel = &l
	}
	backlog := r.URL.Query().Get("backlog") == "1"

	client := clientKey(r)
	if !s.limiter.AcquireStream(client) {
		writeRateLimitExceeded(w, 1)
		return
	}
	defer s.limiter.ReleaseStream(client)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	entries := make(chan logging.LogEntry, streamBuffer)
	cancel := s.logger.Subscribe(func(e logging.LogEntry) {
		select {
		case entries <- e:
		default:
		}
	})
	defer cancel()

	keep := func(e logging.LogEntry) bool {
		return minLevel == nil || e.Level.ShouldLog(*minLevel)
	}

	if backlog {
		for _, e := range s.logger.GetLogs() {
			if !keep(e) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case e := <-entries:
			if !keep(e) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
