// Package aead implements the two AES-256-GCM cipher disciplines used on a
// paired connection: random-nonce framing for low-volume control messages,
// and a deterministic counter nonce for bulk data chunks.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/lanterncrew/fling/internal/ferrors"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// SessionIDSize is the length of the per-file random nonce salt.
	SessionIDSize = 8
)

// ControlCipher draws a fresh random nonce per call and prepends it to the
// ciphertext. It is used for the small number of FileOffer/FileRequest/
// FileTransferStart/FileTransferComplete messages exchanged per transfer.
type ControlCipher struct {
	aead cipher.AEAD
}

// NewControlCipher builds a control cipher over a 32-byte session key.
func NewControlCipher(key [KeySize]byte) (*ControlCipher, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &ControlCipher{aead: aead}, nil
}

// Encrypt returns nonce||ciphertext||tag.
func (c *ControlCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, ferrors.New(ferrors.KindCryptoFailed, fmt.Errorf("generate nonce: %w", err))
	}
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+c.aead.Overhead())
	copy(out, nonce)
	out = c.aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Decrypt reverses Encrypt. The input must be nonce||ciphertext||tag.
func (c *ControlCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+c.aead.Overhead() {
		return nil, ferrors.New(ferrors.KindCryptoFailed, fmt.Errorf("ciphertext too short: %d bytes", len(ciphertext)))
	}
	nonce := ciphertext[:NonceSize]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ferrors.New(ferrors.KindCryptoFailed, fmt.Errorf("decrypt control message: %w", err))
	}
	return plaintext, nil
}

// StreamCipher encrypts bulk file chunks with a deterministic nonce built
// from a 32-bit little-endian counter and an 8-byte per-file session id.
// The counter MUST be reset (via Reset) at the start of every file and the
// two peers MUST stay in lockstep; any gap or reorder surfaces as a GCM
// authentication failure rather than silent corruption.
type StreamCipher struct {
	aead      cipher.AEAD
	mu        sync.Mutex
	sessionID [SessionIDSize]byte
	counter   uint64 // kept as uint64 so the overflow check below is exact
}

// NewStreamCipher builds a stream cipher over a 32-byte session key.
func NewStreamCipher(key [KeySize]byte) (*StreamCipher, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &StreamCipher{aead: aead}, nil
}

// Reset starts a new per-file nonce stream with the given session id and
// resets the counter to zero. Must be called before transferring each file.
func (s *StreamCipher) Reset(sessionID [SessionIDSize]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	s.counter = 0
}

// EncryptChunk encrypts one chunk and advances the counter.
func (s *StreamCipher) EncryptChunk(plaintext []byte) ([]byte, error) {
	nonce, err := s.nextNonce()
	if err != nil {
		return nil, err
	}
	return s.aead.Seal(nil, nonce[:], plaintext, nil), nil
}

// DecryptChunk decrypts one chunk and advances the counter. A chunk
// received out of order fails AEAD verification here because its expected
// nonce no longer matches what the sender used; a tampered body fails the
// GCM tag check.
func (s *StreamCipher) DecryptChunk(ciphertext []byte) ([]byte, error) {
	nonce, err := s.nextNonce()
	if err != nil {
		return nil, err
	}
	plaintext, err := s.aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, ferrors.New(ferrors.KindCryptoFailed, fmt.Errorf("decrypt chunk: %w", err))
	}
	return plaintext, nil
}

func (s *StreamCipher) nextNonce() ([NonceSize]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nonce [NonceSize]byte
	if s.counter > 0xFFFFFFFF {
		return nonce, ferrors.ErrNonceExhausted
	}
	binary.LittleEndian.PutUint32(nonce[0:4], uint32(s.counter))
	copy(nonce[4:], s.sessionID[:])
	s.counter++
	return nonce, nil
}

// NewSessionID draws a fresh random 8-byte per-file session id. Reuse of a
// session id within the same key is forbidden by the protocol.
func NewSessionID() ([SessionIDSize]byte, error) {
	var id [SessionIDSize]byte
	if _, err := io.ReadFull(rand.Reader, id[:]); err != nil {
		return id, ferrors.New(ferrors.KindCryptoFailed, fmt.Errorf("generate session id: %w", err))
	}
	return id, nil
}

func newGCM(key [KeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, ferrors.New(ferrors.KindCryptoFailed, fmt.Errorf("new AES cipher: %w", err))
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ferrors.New(ferrors.KindCryptoFailed, fmt.Errorf("new GCM: %w", err))
	}
	return aead, nil
}
