package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"nostrelay.dev/internal/chk"
	"nostrelay.dev/internal/xlog"
	"nostrelay.dev/nostr"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait / 2
)

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if chk.E(err) {
		return
	}

	conn.SetReadLimit(s.cfg.MaxWSMessageBytes)
	chk.E(conn.SetReadDeadline(time.Now().Add(pongWait)))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	clientID := uuid.New()
	xlog.I.F("server: connection %s from %s", clientID, r.RemoteAddr)

	c := newConnection(clientID, conn, s.hub, s.ingest, s.pool, nostr.DefaultMaxSubs)
	c.run()
}
