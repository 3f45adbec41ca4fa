// Package protocol implements the length-prefixed frame codec and the
// control-message tagged union that ride on top of a paired, handshaken
// relay connection.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lanterncrew/fling/internal/ferrors"
)

// MaxFrameSize bounds a single frame's payload length. A peer MUST close
// the connection rather than allocate for a frame claiming to exceed this.
const MaxFrameSize = 16 * 1024 * 1024 // 16 MiB

// Wire type bytes prepended to a frame's payload on a stream-mode connection.
const (
	TypeControl byte = 0x00
	TypeData    byte = 0x01
)

// FrameReader reads u32_be(len) || payload frames from a stream.
type FrameReader struct {
	r io.Reader
}

// NewFrameReader wraps r for frame-at-a-time reads.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame reads one length-prefixed frame and returns its payload.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(f.r, lenBuf[:]); err != nil {
		return nil, ferrors.New(ferrors.KindIO, fmt.Errorf("read frame length: %w", err))
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxFrameSize {
		return nil, ferrors.New(ferrors.KindProtocolError, fmt.Errorf("frame length %d exceeds max %d", length, MaxFrameSize))
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return nil, ferrors.New(ferrors.KindIO, fmt.Errorf("read frame payload: %w", err))
	}
	return payload, nil
}

// FrameWriter writes u32_be(len) || payload frames to a stream.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w for frame-at-a-time writes.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes one length-prefixed frame.
func (f *FrameWriter) WriteFrame(payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ferrors.New(ferrors.KindProtocolError, fmt.Errorf("frame payload %d exceeds max %d", len(payload), MaxFrameSize))
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := f.w.Write(lenBuf[:]); err != nil {
		return ferrors.New(ferrors.KindIO, fmt.Errorf("write frame length: %w", err))
	}
	if _, err := f.w.Write(payload); err != nil {
		return ferrors.New(ferrors.KindIO, fmt.Errorf("write frame payload: %w", err))
	}
	return nil
}
