package relay

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/lanterncrew/fling/internal/identity"
	"github.com/lanterncrew/fling/internal/pake"
)

func startTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:0"
	}
	if cfg.PeerTimeout == 0 {
		cfg.PeerTimeout = 2 * time.Second
	}
	s := NewServer(cfg, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func dialAndSendPrefix(t *testing.T, addr net.Addr, id identity.ID, element []byte) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	msg := append(append([]byte{}, id.Bytes()...), element...)
	if _, err := conn.Write(msg); err != nil {
		t.Fatalf("write prefix: %v", err)
	}
	return conn
}

func fakeElement(b byte) []byte {
	e := make([]byte, pake.ElementSize)
	for i := range e {
		e[i] = b
	}
	return e
}

func TestServer_PairsTwoPeersAndForwardsElements(t *testing.T) {
	s := startTestServer(t, Config{})
	id := identity.Derive("shared-password")

	elemA := fakeElement(0xAA)
	elemB := fakeElement(0xBB)

	connA := dialAndSendPrefix(t, s.Address(), id, elemA)
	defer connA.Close()

	// Give the first connection a moment to register as waiting.
	time.Sleep(50 * time.Millisecond)
	if got := s.PendingCount(); got != 1 {
		t.Fatalf("PendingCount before second peer = %d, want 1", got)
	}

	connB := dialAndSendPrefix(t, s.Address(), id, elemB)
	defer connB.Close()

	gotA := make([]byte, pake.ElementSize)
	if _, err := io.ReadFull(connA, gotA); err != nil {
		t.Fatalf("read forwarded element on A: %v", err)
	}
	if string(gotA) != string(elemB) {
		t.Fatalf("A received %x, want peer B's element %x", gotA, elemB)
	}

	gotB := make([]byte, pake.ElementSize)
	if _, err := io.ReadFull(connB, gotB); err != nil {
		t.Fatalf("read forwarded element on B: %v", err)
	}
	if string(gotB) != string(elemA) {
		t.Fatalf("B received %x, want peer A's element %x", gotB, elemA)
	}

	// Once paired, the id is no longer in the table (single-use).
	time.Sleep(50 * time.Millisecond)
	if got := s.PendingCount(); got != 0 {
		t.Fatalf("PendingCount after pairing = %d, want 0", got)
	}
}

func TestServer_SplicesArbitraryBytesAfterPairing(t *testing.T) {
	s := startTestServer(t, Config{})
	id := identity.Derive("splice-password")

	connA := dialAndSendPrefix(t, s.Address(), id, fakeElement(1))
	defer connA.Close()
	connB := dialAndSendPrefix(t, s.Address(), id, fakeElement(2))
	defer connB.Close()

	// Drain the two forwarded elements before exercising the splice.
	io.ReadFull(connA, make([]byte, pake.ElementSize))
	io.ReadFull(connB, make([]byte, pake.ElementSize))

	payload := []byte("arbitrary post-handshake application bytes")
	if _, err := connA.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	got := make([]byte, len(payload))
	connB.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(connB, got); err != nil {
		t.Fatalf("read spliced payload: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("spliced payload = %q, want %q", got, payload)
	}
}

func TestServer_RejectsWhenAtCapacity(t *testing.T) {
	s := startTestServer(t, Config{MaxClients: 1})

	id1 := identity.Derive("password-one")
	id2 := identity.Derive("password-two")

	conn1 := dialAndSendPrefix(t, s.Address(), id1, fakeElement(1))
	defer conn1.Close()
	time.Sleep(50 * time.Millisecond)

	conn2 := dialAndSendPrefix(t, s.Address(), id2, fakeElement(2))
	defer conn2.Close()

	conn2.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn2.Read(buf); err == nil {
		t.Fatalf("expected connection 2 to be rejected and closed, but read succeeded")
	}
}

func TestServer_TimesOutLoneWaitingPeer(t *testing.T) {
	s := startTestServer(t, Config{PeerTimeout: 100 * time.Millisecond})
	id := identity.Derive("lonely-password")

	conn := dialAndSendPrefix(t, s.Address(), id, fakeElement(9))
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatalf("expected connection to be closed after peer_timeout, but read succeeded")
	}

	if got := s.PendingCount(); got != 0 {
		t.Fatalf("PendingCount after timeout = %d, want 0", got)
	}
}
