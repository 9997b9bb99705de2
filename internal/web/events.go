package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mockup-studio/internal/mockup"
	"mockup-studio/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type stateEvent struct {
	Type  string        `json:"type"`
	State stateResponse `json:"state"`
}

// handleEvents pushes the session state over a websocket every time it changes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session", sess.ID, "err", err)
		return
	}

	updates, unsubscribe := sess.Studio.Subscribe()
	s.logger.Info("events subscribed", "session", sess.ID)

	go s.writePump(conn, sess.ID, updates)
	s.readPump(conn, sess.ID)
	unsubscribe()
}

// readPump discards client frames and returns once the peer goes away.
func (s *Server) readPump(conn *websocket.Conn, id string) {
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "session", id, "err", err)
			}
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, id string, updates <-chan mockup.State) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case st, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(stateEvent{Type: "state", State: newStateResponse(id, st)}); err != nil {
				s.logger.Warn("websocket write failed", "session", id, "err", err)
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
