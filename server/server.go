// Package server wires together the Event Store, Broadcast Hub, Writer
// Task and per-connection Connection Tasks behind an HTTP listener: plain
// GET requests get a NIP-11 relay-info document or a short human string,
// and Upgrade requests become long-lived WebSocket connections each
// running their own Connection Task.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/cors"

	"nostrelay.dev/broadcast"
	"nostrelay.dev/config"
	"nostrelay.dev/internal/chk"
	"nostrelay.dev/internal/xlog"
	"nostrelay.dev/nostr"
	"nostrelay.dev/querypool"
)

// maxConcurrentQueries bounds how many historical REQ queries may run at
// once across every connection, independent of how many sockets are open.
// Not part of the external configuration surface; callers who need a
// historical backfill to go faster add read replicas, not a bigger number
// here.
const maxConcurrentQueries = 16

// Info is the NIP-11 relay-info document served at GET / when the client
// sends Accept: application/nostr+json.
type Info struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Pubkey        string `json:"pubkey,omitempty"`
	Contact       string `json:"contact,omitempty"`
	SupportedNIPs []int  `json:"supported_nips"`
	Software      string `json:"software"`
	Version       string `json:"version"`
}

// Server is the root object: it holds the hub, the query pool, and the
// HTTP listener, and constructs one Connection per upgraded socket.
type Server struct {
	cfg  *config.C
	info Info
	hub  *broadcast.Hub

	ingest   chan<- *nostr.Event
	pool     *querypool.Pool
	upgrader websocket.Upgrader

	httpServer *http.Server
}

// New constructs a Server. ingest is the channel the Writer Task consumes;
// dbPath backs the bounded query pool every Connection Task submits its
// historical REQ queries to.
func New(cfg *config.C, hub *broadcast.Hub, ingest chan<- *nostr.Event, dbPath string) *Server {
	return &Server{
		cfg:    cfg,
		hub:    hub,
		ingest: ingest,
		pool:   querypool.New(dbPath, maxConcurrentQueries),
		// fasthttp/websocket has no standalone "max frame size" reject
		// option; ReadBufferSize/WriteBufferSize are the closest real knob
		// it exposes — the buffer a connection reads a single frame's
		// payload into before fragment reassembly. MaxWSMessageBytes, via
		// SetReadLimit, separately bounds the reassembled message total.
		upgrader: websocket.Upgrader{
			ReadBufferSize:  int(cfg.MaxWSFrameBytes),
			WriteBufferSize: int(cfg.MaxWSFrameBytes),
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		info: Info{
			Name:          cfg.InfoName,
			Description:   cfg.InfoDescription,
			Pubkey:        cfg.InfoPubkey,
			Contact:       cfg.InfoContact,
			SupportedNIPs: []int{1, 11},
			Software:      cfg.InfoSoftware,
			Version:       cfg.InfoVersion,
		},
	}
}

// ServeHTTP routes the two recognized request shapes at "/": a WebSocket
// upgrade becomes a Connection Task; an Accept: application/nostr+json GET
// gets the relay-info document. Any other GET on "/" gets a short human
// string, and any other method or path is 404.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Upgrade") == "websocket" {
		s.handleWebsocket(w, r)
		return
	}
	if r.Header.Get("Accept") == "application/nostr+json" {
		s.handleRelayInfo(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("this is a nostr relay; connect with a websocket client\n"))
}

func (s *Server) handleRelayInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/nostr+json")
	if err := json.NewEncoder(w).Encode(s.info); chk.E(err) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Start listens on cfg.Address:cfg.Port and serves until ctx is cancelled,
// at which point it gracefully shuts the HTTP server down.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Address, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Handler:           cors.Default().Handler(s),
		Addr:              addr,
		ReadHeaderTimeout: 7 * time.Second,
		IdleTimeout:       28 * time.Second,
	}
	xlog.I.F("server: listening at %s", addr)

	go func() {
		<-ctx.Done()
		xlog.I.Ln("server: shutting down listener")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		chk.E(s.httpServer.Shutdown(shutdownCtx))
		chk.E(s.pool.Close())
	}()

	if err = s.httpServer.Serve(ln); err == http.ErrServerClosed {
		return nil
	}
	return err
}
