package xfer

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lanterncrew/fling/internal/ferrors"
	"github.com/lanterncrew/fling/internal/identity"
	"github.com/lanterncrew/fling/internal/pake"
)

// HandshakeTimeout bounds the 65/33-byte handshake phase, per §5's
// recommendation that the handshake read carry a deadline.
const HandshakeTimeout = 30 * time.Second

// Handshake runs the PAKE exchange described in §4.3 directly on conn,
// before any framing is installed, and returns a ready-to-use Connection
// plus the derived pairing id.
func Handshake(conn net.Conn, password string) (*Connection, identity.ID, error) {
	id := identity.Derive(password)
	hs := pake.Start(password, id)

	if err := conn.SetDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
		return nil, id, ferrors.New(ferrors.KindHandshakeIoError, fmt.Errorf("set handshake deadline: %w", err))
	}

	message := make([]byte, 0, identity.Size+pake.ElementSize)
	message = append(message, id.Bytes()...)
	message = append(message, hs.OutboundElement()...)

	if _, err := conn.Write(message); err != nil {
		return nil, id, ferrors.New(ferrors.KindHandshakeIoError, fmt.Errorf("write handshake message: %w", err))
	}

	peerElement := make([]byte, pake.ElementSize)
	if _, err := io.ReadFull(conn, peerElement); err != nil {
		return nil, id, ferrors.New(ferrors.KindHandshakeIoError, fmt.Errorf("read handshake response: %w", err))
	}

	sessionKey, err := hs.Finish(peerElement)
	if err != nil {
		return nil, id, err
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, id, ferrors.New(ferrors.KindHandshakeIoError, fmt.Errorf("clear handshake deadline: %w", err))
	}

	c, err := NewConnection(conn, sessionKey)
	if err != nil {
		return nil, id, err
	}
	return c, id, nil
}
