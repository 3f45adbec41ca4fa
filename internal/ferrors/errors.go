// Package ferrors defines the fatal error taxonomy shared by the relay,
// the handshake, and the file-transfer pipeline.
package ferrors

import "errors"

// Kind classifies a fatal error for logging and exit-code purposes.
type Kind int

const (
	KindUnknown Kind = iota
	KindIO
	KindHandshakeRejected
	KindHandshakeIoError
	KindCryptoFailed
	KindProtocolError
	KindSizeMismatch
	KindPeerTimeout
	KindServerAtCapacity
	KindNonceExhausted
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindHandshakeRejected:
		return "handshake_rejected"
	case KindHandshakeIoError:
		return "handshake_io_error"
	case KindCryptoFailed:
		return "crypto_failed"
	case KindProtocolError:
		return "protocol_error"
	case KindSizeMismatch:
		return "size_mismatch"
	case KindPeerTimeout:
		return "peer_timeout"
	case KindServerAtCapacity:
		return "server_at_capacity"
	case KindNonceExhausted:
		return "nonce_exhausted"
	default:
		return "unknown"
	}
}

// Error wraps a cause with a classification that callers can branch on
// with errors.As without parsing strings.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause under kind. If cause is nil, a bare kind error is returned.
func New(kind Kind, cause error) error {
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

var (
	ErrHandshakeRejected = New(KindHandshakeRejected, errors.New("PAKE finish failed"))
	ErrNonceExhausted    = New(KindNonceExhausted, errors.New("stream nonce counter would wrap"))
	ErrServerAtCapacity  = New(KindServerAtCapacity, errors.New("relay is at capacity"))
	ErrPeerTimeout       = New(KindPeerTimeout, errors.New("timed out waiting for peer"))
)
