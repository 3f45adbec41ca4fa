package xfer

import (
	"fmt"
	"net"

	"github.com/lanterncrew/fling/internal/aead"
	"github.com/lanterncrew/fling/internal/ferrors"
	"github.com/lanterncrew/fling/internal/protocol"
)

// Connection binds the framing codec, the two AEAD disciplines, and the
// control-message model onto one post-handshake TCP socket, per §4.4.
type Connection struct {
	conn    net.Conn
	reader  *protocol.FrameReader
	writer  *protocol.FrameWriter
	control *aead.ControlCipher
	stream  *aead.StreamCipher
}

// NewConnection builds a Connection over an already-handshaken socket and
// a 32-byte session key derived from SPAKE2 Finish.
func NewConnection(conn net.Conn, sessionKey [aead.KeySize]byte) (*Connection, error) {
	control, err := aead.NewControlCipher(sessionKey)
	if err != nil {
		return nil, err
	}
	stream, err := aead.NewStreamCipher(sessionKey)
	if err != nil {
		return nil, err
	}
	return &Connection{
		conn:    conn,
		reader:  protocol.NewFrameReader(conn),
		writer:  protocol.NewFrameWriter(conn),
		control: control,
		stream:  stream,
	}, nil
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// ResetStreamCipher starts a fresh per-file nonce stream; both sides call
// this with the same session id when a FileTransferStart is sent/received.
func (c *Connection) ResetStreamCipher(sessionID [aead.SessionIDSize]byte) {
	c.stream.Reset(sessionID)
}

// SendMsg serializes, encrypts with the control cipher, prepends the
// control type byte, frames, and writes m.
func (c *Connection) SendMsg(m *protocol.Message) error {
	plaintext := m.Encode()
	ciphertext, err := c.control.Encrypt(plaintext)
	if err != nil {
		return err
	}
	payload := append([]byte{protocol.TypeControl}, ciphertext...)
	return c.writer.WriteFrame(payload)
}

// AwaitMsg reads one frame, verifies it is a control frame, decrypts, and
// deserializes it.
func (c *Connection) AwaitMsg() (*protocol.Message, error) {
	frame, err := c.reader.ReadFrame()
	if err != nil {
		return nil, err
	}
	if len(frame) < 1 {
		return nil, ferrors.New(ferrors.KindProtocolError, fmt.Errorf("empty frame"))
	}
	if frame[0] != protocol.TypeControl {
		return nil, ferrors.New(ferrors.KindProtocolError, fmt.Errorf("expected control frame, got type 0x%02x", frame[0]))
	}

	plaintext, err := c.control.Decrypt(frame[1:])
	if err != nil {
		return nil, err
	}
	return protocol.Decode(plaintext)
}

// SendDataChunk stream-encrypts plaintext, prepends the data type byte,
// frames, and writes it.
func (c *Connection) SendDataChunk(plaintext []byte) error {
	ciphertext, err := c.stream.EncryptChunk(plaintext)
	if err != nil {
		return err
	}
	payload := append([]byte{protocol.TypeData}, ciphertext...)
	return c.writer.WriteFrame(payload)
}

// AwaitRaw reads one frame and returns its type byte and body, without
// interpreting the body further — the caller dispatches on the type byte
// (stream-decrypt for data, decode-as-control for control).
func (c *Connection) AwaitRaw() (byte, []byte, error) {
	frame, err := c.reader.ReadFrame()
	if err != nil {
		return 0, nil, err
	}
	if len(frame) < 1 {
		return 0, nil, ferrors.New(ferrors.KindProtocolError, fmt.Errorf("empty frame"))
	}
	return frame[0], frame[1:], nil
}

// DecryptDataChunk stream-decrypts a body returned by AwaitRaw when its
// type byte was protocol.TypeData.
func (c *Connection) DecryptDataChunk(ciphertext []byte) ([]byte, error) {
	return c.stream.DecryptChunk(ciphertext)
}

// DecodeControl decrypts and decodes a body returned by AwaitRaw when its
// type byte was protocol.TypeControl.
func (c *Connection) DecodeControl(ciphertext []byte) (*protocol.Message, error) {
	plaintext, err := c.control.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	return protocol.Decode(plaintext)
}
