package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jensholdgaard/zoo-auction/internal/game"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// handleStream upgrades to a websocket and pushes a snapshot after every
// game mutation, starting with the current one. Clients only read; anything
// they send is discarded.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	snapshots, cancel := s.ctrl.Hub().Subscribe(s.opts.SubscriberBuffer)
	defer cancel()

	s.logger.DebugContext(r.Context(), "stream client connected", slog.String("remote", r.RemoteAddr))

	// Reader: detects the client going away and keeps the pong deadline fresh.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	current := s.ctrl.Snapshot()
	if err := writeSnapshot(conn, current); err != nil {
		return
	}
	sent := current.Seq

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			// The hub replays its last snapshot on subscribe; skip anything
			// already sent.
			if snap.Seq <= sent {
				continue
			}
			if err := writeSnapshot(conn, snap); err != nil {
				s.logger.DebugContext(r.Context(), "stream write failed", slog.Any("error", err))
				return
			}
			sent = snap.Seq
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap game.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snap)
}
