// Package pake runs the symmetric SPAKE2-Ed25519 password-authenticated
// key exchange that turns a shared password into a 32-byte AES-256 session
// key, exactly as run over the relayed socket in §4.3.
package pake

import (
	"fmt"

	"salsa.debian.org/vasudev/gospake2"

	"github.com/lanterncrew/fling/internal/ferrors"
	"github.com/lanterncrew/fling/internal/identity"
)

// ElementSize is the length in bytes of the SPAKE2-Ed25519 outbound group
// element, as carried in the 65-byte handshake message (id[32] || element[33]).
const ElementSize = 33

// SessionKeySize is the length in bytes of the derived session key.
const SessionKeySize = 32

// Handshake holds the in-progress SPAKE2 state for one connection attempt.
// Both sides play the same role (symmetric), matching the spec's
// requirement that sender and receiver are interchangeable at this layer.
type Handshake struct {
	state    *gospake2.SPAKE2
	outbound []byte
}

// Start initializes symmetric SPAKE2 over Ed25519 with password and the
// caller-supplied id (normally identity.Derive(password)) as the identity,
// and produces the outbound element to write to the wire.
func Start(password string, id identity.ID) *Handshake {
	state := gospake2.SPAKE2Symmetric(
		gospake2.NewPassword(password),
		gospake2.NewIdentityS(id.Bytes()),
	)
	outbound := state.Start()
	return &Handshake{state: state, outbound: outbound}
}

// OutboundElement returns the bytes to send as the handshake message's
// element field.
func (h *Handshake) OutboundElement() []byte {
	return h.outbound
}

// Finish consumes the peer's element and derives the session key. An
// element SPAKE2 cannot process surfaces as ferrors.KindHandshakeRejected.
// A mismatched password is not a local failure — SPAKE2 cannot detect a
// wrong password on its own; the mismatch only becomes visible once the
// derived keys disagree and the first control-message decrypt fails
// (§8 scenario 5).
func (h *Handshake) Finish(peerElement []byte) ([SessionKeySize]byte, error) {
	var key [SessionKeySize]byte

	raw, err := h.state.Finish(peerElement)
	if err != nil {
		return key, ferrors.New(ferrors.KindHandshakeRejected, fmt.Errorf("spake2 finish: %w", err))
	}
	if len(raw) != SessionKeySize {
		return key, ferrors.New(ferrors.KindHandshakeRejected, fmt.Errorf("unexpected session key length: %d", len(raw)))
	}
	copy(key[:], raw)
	return key, nil
}
