package main

import (
	"github.com/coder/quartz"

	"github.com/lox/freezeout/cmd/freezeout/shared"
	"github.com/lox/freezeout/internal/accountstore"
	"github.com/lox/freezeout/internal/protocol"
	"github.com/lox/freezeout/internal/server"
)

// ServeCmd starts the server: bind an address, run a fixed number of
// tables, and serve until a shutdown signal arrives.
type ServeCmd struct {
	Addr      string `kong:"default=':8080',help='Listening address'"`
	Tables    int    `kong:"default='10',help='Number of tables (1-100)'"`
	Seats     int    `kong:"default='6',help='Seats per table (2-6)'"`
	DataDir   string `kong:"help='Account store data directory (in-memory if unset)'"`
	TLSCert   string `kong:"help='TLS certificate path (optional)'"`
	TLSKey    string `kong:"help='TLS private key path (optional)'"`
	JoinChips uint64 `kong:"default='1000000',help='Buy-in chip amount'"`
	Debug     bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	sk, err := protocol.GenerateSigningKey()
	if err != nil {
		return err
	}

	var store accountstore.Store
	if c.DataDir != "" {
		fileStore, err := accountstore.NewFileStore(c.DataDir)
		if err != nil {
			return err
		}
		store = fileStore
	} else {
		store = accountstore.NewMemoryStore()
	}

	ctx := shared.SetupSignalHandler(logger)

	cfg := server.Config{
		Addr:      c.Addr,
		Tables:    c.Tables,
		Seats:     c.Seats,
		TLSCert:   c.TLSCert,
		TLSKey:    c.TLSKey,
		JoinChips: protocol.Chips(c.JoinChips),
	}

	srv := server.New(ctx, cfg, sk, store, quartz.NewReal(), logger)

	logger.Info().
		Str("addr", c.Addr).
		Int("tables", c.Tables).
		Int("seats", c.Seats).
		Uint64("join_chips", c.JoinChips).
		Msg("starting freezeout server")

	return srv.Serve(ctx)
}
