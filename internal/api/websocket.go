package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WSMessage is a topic-based message sent to clients.
type WSMessage struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// checkOrigin enforces same-origin for websocket upgrades, with localhost
// and the configured origins allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.origins, origin) {
		return true
	}
	if strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:") {
		return true
	}

	host := r.Host
	if rest, ok := strings.CutPrefix(origin, "http://"); ok {
		return rest == host
	}
	if rest, ok := strings.CutPrefix(origin, "https://"); ok {
		return rest == host
	}
	return false
}

// handleWebsocket streams publish events. The first message carries the
// current status so clients can render without a separate request.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		WriteError(w, http.StatusServiceUnavailable, "event stream disabled")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	status := StatusResponse{State: s.pub.State().String()}
	if doc, err := s.pub.GetPublished(); err == nil {
		status.Version = doc.Version
		status.Checksum = doc.Checksum
		status.Lines = doc.Lines
		status.GeneratedAt = doc.GeneratedAt
	}
	if err := s.writeWS(conn, WSMessage{Topic: "status", Data: status}); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeWS(conn, WSMessage{Topic: "published", Data: evt}); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg WSMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
