// Package config loads process-wide relay configuration from environment
// variables. A config.C is created once at startup and threaded explicitly
// into every component that needs it; there is no package-level global, so
// every constructor that depends on configuration takes it as a parameter.
package config

import (
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"go-simpler.org/env"
)

// C holds every tunable named in the relay's external configuration
// surface: network listen address, store location, backpressure limits, and
// the NIP-11 relay-info fields.
type C struct {
	Address string `env:"NOSTRELAY_ADDRESS" default:"0.0.0.0" usage:"network listen address"`
	Port    int    `env:"NOSTRELAY_PORT" default:"3334" usage:"port to listen on"`

	DataDir string `env:"NOSTRELAY_DATA_DIR" usage:"directory holding the event store file"`

	MessagesPerSec  int `env:"NOSTRELAY_MESSAGES_PER_SEC" default:"0" usage:"write-rate cap; 0 disables rate limiting"`
	BroadcastBuffer int `env:"NOSTRELAY_BROADCAST_BUFFER" default:"64" usage:"per-subscriber broadcast hub buffer depth"`
	EventPersistBuf int `env:"NOSTRELAY_EVENT_PERSIST_BUFFER" default:"256" usage:"ingest channel depth"`

	MaxWSMessageBytes int64 `env:"NOSTRELAY_MAX_WS_MESSAGE_BYTES" default:"131072" usage:"maximum websocket message size"`
	MaxWSFrameBytes   int64 `env:"NOSTRELAY_MAX_WS_FRAME_BYTES" default:"131072" usage:"websocket upgrader read/write buffer size, in bytes"`

	LogLevel string `env:"NOSTRELAY_LOG_LEVEL" default:"info" usage:"trace debug info warn error"`

	InfoName        string `env:"NOSTRELAY_INFO_NAME" default:"nostrelay" usage:"relay-info: name"`
	InfoDescription string `env:"NOSTRELAY_INFO_DESCRIPTION" default:"a nostr relay" usage:"relay-info: description"`
	InfoPubkey      string `env:"NOSTRELAY_INFO_PUBKEY" usage:"relay-info: operator pubkey"`
	InfoContact     string `env:"NOSTRELAY_INFO_CONTACT" usage:"relay-info: operator contact"`
	InfoSoftware    string `env:"NOSTRELAY_INFO_SOFTWARE" default:"https://nostrelay.dev" usage:"relay-info: software URL"`
	InfoVersion     string `env:"NOSTRELAY_INFO_VERSION" default:"dev" usage:"relay-info: software version"`
}

// New loads configuration from the environment, filling in an XDG-appropriate
// default data directory when NOSTRELAY_DATA_DIR is unset.
func New() (cfg *C, err error) {
	cfg = &C{}
	if err = env.Load(cfg, nil); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" || strings.Contains(cfg.DataDir, "~") {
		cfg.DataDir = filepath.Join(xdg.DataHome, "nostrelay")
	}
	return cfg, nil
}

// DBPath returns the path to the event store file within DataDir.
func (c *C) DBPath() string {
	return filepath.Join(c.DataDir, "nostr.db")
}
