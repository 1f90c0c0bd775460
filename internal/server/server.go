// Package server implements the listen/accept loop and per-connection pump
// that sit in front of the table pool: Noise handshake, the JoinServer /
// JoinTable handshake, and forwarding signed messages between a connection
// and its seated table.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/freezeout/internal/accountstore"
	"github.com/lox/freezeout/internal/pool"
	"github.com/lox/freezeout/internal/protocol"
	"github.com/lox/freezeout/internal/table"
	"github.com/lox/freezeout/internal/transport"
)

// Config holds the externalized CLI surface from SPEC_FULL.md §6.
type Config struct {
	Addr      string
	Tables    int // 1-100
	Seats     int // 2-6
	TLSCert   string
	TLSKey    string
	JoinChips protocol.Chips
}

// Server accepts connections, drives the Noise handshake and the
// JoinServer/JoinTable exchange, and pumps messages between a connection
// and the table it joins.
type Server struct {
	cfg   Config
	sk    protocol.SigningKey
	store accountstore.Store
	pool  *pool.Pool
	log   zerolog.Logger

	upgrader   websocket.Upgrader
	httpServer *http.Server

	// ctx is the server's lifetime context; connection goroutines outlive
	// the HTTP request that upgraded them, so they run under this instead.
	ctx context.Context

	wg sync.WaitGroup
}

// New creates a server with its own table pool, ready to Serve.
func New(ctx context.Context, cfg Config, sk protocol.SigningKey, store accountstore.Store, clock quartz.Clock, log zerolog.Logger) *Server {
	if cfg.JoinChips == 0 {
		cfg.JoinChips = 1_000_000
	}
	p := pool.New(ctx, cfg.Tables, cfg.Seats, sk, store, clock, log)
	return &Server{
		cfg:   cfg,
		sk:    sk,
		store: store,
		pool:  p,
		ctx:   ctx,
		log:   log.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve binds cfg.Addr and blocks until ctx is canceled or a fatal error
// occurs. Accept errors are retried with exponential backoff (1,2,4,8,16s)
// before giving up, matching the original accept_with_retry policy.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.TLSCert != "" {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCert, s.cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("server: load TLS keypair: %w", err)
		}
		listener = tls.NewListener(listener, &tls.Config{Certificates: []tls.Certificate{cert}})
	}
	listener = &retryListener{Listener: listener, log: s.log}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	s.httpServer = &http.Server{Handler: mux}

	s.log.Info().Str("addr", listener.Addr().String()).Int("tables", s.cfg.Tables).Int("seats", s.cfg.Seats).Msg("server starting")

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.httpServer.Serve(listener) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.wg.Wait()
		return err
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleWebSocket upgrades the connection, performs the Noise handshake,
// then drives the JoinServer -> [NotEnoughChips | ServerJoined] ->
// JoinTable -> [NoTablesLeft | pump loop] sequence described in
// SPEC_FULL.md §4.8.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	connLog := s.log.With().Str("conn_id", uuid.NewString()).Logger()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		conn, err := transport.Accept(ws)
		if err != nil {
			connLog.Debug().Err(err).Msg("handshake failed")
			_ = ws.Close()
			return
		}
		defer conn.Close()

		if err := s.handleConnection(s.ctx, conn, connLog); err != nil {
			connLog.Debug().Err(err).Msg("connection closed")
		}
	}()
}

var errNotAtTable = errors.New("server: game message before successful join")

func (s *Server) handleConnection(ctx context.Context, conn *transport.Conn, log zerolog.Logger) error {
	msg, peerID, err := conn.Recv()
	if err != nil {
		return err
	}
	join, ok := msg.(protocol.JoinServer)
	if !ok {
		return errNotAtTable
	}
	log = log.With().Str("peer", peerID.String()).Logger()

	// Consult the existing balance before JoinServer, which tops a low
	// balance up to JoinChips: the refusal check must see the balance the
	// player actually holds.
	existing, err := s.store.Get(ctx, peerID)
	if err != nil && !errors.Is(err, accountstore.ErrUnknownPlayer) {
		log.Error().Err(err).Msg("account store lookup failed")
		return err
	}
	if err == nil && existing.Chips < s.cfg.JoinChips {
		return s.sendAndClose(conn, protocol.NotEnoughChips{})
	}

	record, err := s.store.JoinServer(ctx, peerID, join.Nickname, s.cfg.JoinChips)
	if err != nil {
		log.Error().Err(err).Msg("account store join failed")
		return err
	}

	env, err := protocol.Sign(s.sk, protocol.ServerJoined{Nickname: join.Nickname, Chips: record.Chips})
	if err != nil {
		return err
	}
	if err := conn.Send(env); err != nil {
		return err
	}

	msg, _, err = conn.Recv()
	if err != nil {
		return err
	}
	if _, ok := msg.(protocol.JoinTable); !ok {
		return errNotAtTable
	}

	if ok, err := s.store.Debit(ctx, peerID, s.cfg.JoinChips); err != nil {
		return err
	} else if !ok {
		return s.sendAndClose(conn, protocol.NotEnoughChips{})
	}

	tbl, messages, err := s.pool.Join(ctx, peerID, join.Nickname)
	if err != nil {
		return s.sendAndClose(conn, protocol.NoTablesLeft{})
	}

	return s.pump(ctx, conn, tbl, peerID, messages)
}

func (s *Server) sendAndClose(conn *transport.Conn, m protocol.Message) error {
	env, err := protocol.Sign(s.sk, m)
	if err != nil {
		return err
	}
	_ = conn.Send(env)
	return nil
}

// pump forwards inbound client messages to the player's table and outbound
// table envelopes back to the client until one side closes, the table
// issues a LeaveTable hint, or ctx is canceled.
func (s *Server) pump(ctx context.Context, conn *transport.Conn, tbl *table.Table, peerID protocol.PeerId, messages <-chan table.TableMessage) error {
	defer tbl.Leave(context.Background(), peerID)

	inbound := make(chan protocol.Message)
	recvErr := make(chan error, 1)
	go func() {
		for {
			msg, from, err := conn.Recv()
			if err != nil {
				if isRecoverableRecvErr(err) {
					continue
				}
				recvErr <- err
				return
			}
			if from != peerID {
				continue
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-recvErr:
			return err
		case msg := <-inbound:
			tbl.Message(ctx, peerID, msg)
		case tm, ok := <-messages:
			if !ok {
				return nil
			}
			if tm.Kind == table.TableMessageLeaveTable {
				return nil
			}
			if err := conn.Send(tm.Envelope); err != nil {
				return err
			}
		}
	}
}

// isRecoverableRecvErr reports whether err from Conn.Recv is one of the
// per-message failures spec.md §7 marks as "drop, do not close" (defense in
// depth against a forged or corrupted frame) rather than a fatal transport
// I/O error: an invalid signature, a decrypt failure, or an unrecognized
// message tag.
func isRecoverableRecvErr(err error) bool {
	return errors.Is(err, protocol.ErrInvalidSignature) ||
		errors.Is(err, transport.ErrDecryptFailed) ||
		errors.Is(err, protocol.ErrUnknownMessageType)
}

// retryListener wraps a net.Listener with the exponential-backoff accept
// retry policy from SPEC_FULL.md §4.8: 1, 2, 4, 8, 16 seconds between
// consecutive Accept failures, giving up after the fifth.
type retryListener struct {
	net.Listener
	log zerolog.Logger

	// sleep defaults to time.Sleep; tests override it to avoid real delays.
	sleep func(time.Duration)
}

func (l *retryListener) Accept() (net.Conn, error) {
	sleep := l.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var retry uint
	for {
		conn, err := l.Listener.Accept()
		if err == nil {
			return conn, nil
		}
		if retry >= 5 {
			return nil, err
		}
		delay := time.Duration(1<<retry) * time.Second
		l.log.Warn().Err(err).Dur("retry_in", delay).Msg("accept error, retrying")
		sleep(delay)
		retry++
	}
}
