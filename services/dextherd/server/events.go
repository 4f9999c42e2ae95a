package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
)

const wsWriteTimeout = 10 * time.Second

// handleEvents streams committed engine events as JSON text frames. The
// optional type query parameter keeps only events whose type starts with it.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("type"))
	// Subscribe before the handshake so no event committed after the client
	// sees the upgrade is missed.
	updates, cancel := s.broadcaster.Subscribe(64)
	defer func() {
		cancel()
		s.metrics.SetSubscribers(s.broadcaster.Subscribers())
	}()
	s.metrics.SetSubscribers(s.broadcaster.Subscribers())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-updates:
			if !ok {
				return
			}
			if prefix != "" && !strings.HasPrefix(evt.Type, prefix) {
				continue
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}
