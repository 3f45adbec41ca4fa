// Package relay implements the untrusted rendezvous server: it pairs two
// peers that present the same pairing id, forwards each side's 33-byte
// PAKE element to the other, and then splices their connection verbatim.
// It never holds a session key and never decrypts anything past the
// handshake prefix.
package relay

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lanterncrew/fling/internal/identity"
	"github.com/lanterncrew/fling/internal/logging"
	"github.com/lanterncrew/fling/internal/pake"
	"github.com/lanterncrew/fling/internal/recovery"
)

// handshakePrefixSize is the number of bytes the relay reads off every new
// connection before it knows which peer it belongs to: the 32-byte pairing
// id followed by the 33-byte SPAKE2 outbound element.
const handshakePrefixSize = identity.Size + pake.ElementSize

// Config configures a relay Server.
type Config struct {
	// Address is the TCP address to listen on (e.g. ":4545").
	Address string

	// MaxClients bounds how many peers may be waiting for a partner at
	// once. 0 means unlimited.
	MaxClients int

	// PeerTimeout bounds how long a peer waits for its partner to arrive
	// before the relay gives up and closes its connection.
	PeerTimeout time.Duration

	// Logger for server lifecycle and per-connection diagnostics.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for a relay deployment.
func DefaultConfig() Config {
	return Config{
		Address:     ":4545",
		MaxClients:  1000,
		PeerTimeout: 30 * time.Second,
	}
}

// Server is the relay's TCP listener and pairing table.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics

	listener net.Listener
	table    *pairingTable

	running  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewServer creates a relay Server. metrics may be nil, in which case a
// fresh unregistered Metrics set is created so callers always get working
// counters without needing a registry of their own.
func NewServer(cfg Config, metrics *Metrics) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	if metrics == nil {
		metrics = NewMetricsWithRegistry(prometheus.NewRegistry())
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		table:   newPairingTable(),
		stopCh:  make(chan struct{}),
	}
}

// Start binds the listener and begins accepting connections in the
// background.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("relay: already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("relay: listen on %s: %w", s.cfg.Address, err)
	}
	s.listener = ln
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("relay started", logging.KeyBindAddr, ln.Addr().String(), logging.KeyMaxClients, s.cfg.MaxClients)
	return nil
}

// Stop closes the listener and waits for in-flight connection handling to
// finish. Already-paired splices are left to drain on their own. Peers still
// waiting for a partner are not closed early: each stays open until its
// partner arrives or its PeerTimeout elapses, so Stop can block for up to
// PeerTimeout.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.running.Store(false)
		close(s.stopCh)
		if s.listener != nil {
			err = s.listener.Close()
		}
		s.logger.Info("relay stopped")
	})
	s.wg.Wait()
	return err
}

// Address returns the listener's bound address.
func (s *Server) Address() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// IsRunning reports whether the server has been started and not yet
// stopped.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// PendingCount returns the number of peers currently waiting for a
// partner, for tests and diagnostics.
func (s *Server) PendingCount() int {
	return s.table.size()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	defer recovery.RecoverWithLog(s.logger, "relay.Server.acceptLoop")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Debug("accept error", logging.KeyError, err)
				continue
			}
		}
		s.metrics.ConnectionsTotal.Inc()
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer recovery.RecoverWithLog(s.logger, "relay.Server.handleConn")

	remote := conn.RemoteAddr().String()

	if err := conn.SetDeadline(time.Now().Add(s.cfg.PeerTimeout)); err != nil {
		conn.Close()
		return
	}

	prefix := make([]byte, handshakePrefixSize)
	if _, err := io.ReadFull(conn, prefix); err != nil {
		s.logger.Debug("handshake prefix read failed", logging.KeyRemoteAddr, remote, logging.KeyError, err)
		conn.Close()
		return
	}

	id, err := identity.FromBytes(prefix[:identity.Size])
	if err != nil {
		conn.Close()
		return
	}
	element := append([]byte(nil), prefix[identity.Size:]...)

	if peer, ok := s.table.match(id); ok {
		s.completePairing(conn, remote, element, peer)
		return
	}

	w := &waiter{conn: conn, element: element, done: make(chan struct{})}
	if !s.table.tryRegister(id, w, s.cfg.MaxClients) {
		s.metrics.RejectedCapacity.Inc()
		s.logger.Debug("rejected: pairing table at capacity", logging.KeyRemoteAddr, remote)
		conn.Close()
		return
	}

	select {
	case <-w.done:
		// The matching peer took ownership of both connections and is
		// running the splice; this goroutine has nothing left to do.
	case <-time.After(s.cfg.PeerTimeout):
		s.table.cancel(id, w)
		s.metrics.TimedOutWaiting.Inc()
		s.logger.Debug("peer timeout waiting for partner", logging.KeyRemoteAddr, remote)
		conn.Close()
	}
}

// completePairing runs on the second peer's goroutine: it has both
// connections and both elements, so it forwards each element to the other
// side, wakes the first peer's goroutine, and splices the two connections
// until they drain.
func (s *Server) completePairing(conn net.Conn, remote string, element []byte, peer *waiter) {
	close(peer.done)

	s.metrics.PairsTotal.Inc()
	s.metrics.ActivePairs.Inc()
	defer s.metrics.ActivePairs.Dec()

	conn.SetDeadline(time.Time{})
	peer.conn.SetDeadline(time.Time{})

	if _, err := conn.Write(peer.element); err != nil {
		conn.Close()
		peer.conn.Close()
		return
	}
	if _, err := peer.conn.Write(element); err != nil {
		conn.Close()
		peer.conn.Close()
		return
	}

	s.logger.Info("peers paired", logging.KeyRemoteAddr, remote)
	splice(conn, peer.conn)
}
