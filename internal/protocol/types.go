package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/lanterncrew/fling/internal/ferrors"
)

// Control message tag bytes, per the wire format.
const (
	TagFileOffer            byte = 0
	TagFileRequest          byte = 1
	TagFileTransferStart    byte = 2
	TagFileTransfer         byte = 3 // control-mode only; unused in stream mode
	TagFileTransferComplete byte = 4
)

// Compression enumerates the per-file compression scheme.
type Compression byte

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
)

func (c Compression) String() string {
	if c == CompressionZstd {
		return "zstd"
	}
	return "none"
}

// OfferedFile is one entry in a FileOffer.
type OfferedFile struct {
	ID   uint8
	Path string
	Size uint64
}

// FileOffer lists every file the sender is offering.
type FileOffer struct {
	Files []OfferedFile
}

// RequestedChunk is one entry in a FileRequest: the file id and the byte
// offset to resume from. Resume is disabled, so Start must be 0.
type RequestedChunk struct {
	ID    uint8
	Start uint64
}

// FileRequest is the receiver's reply naming which offered files it wants.
type FileRequest struct {
	Chunks []RequestedChunk
}

// FileTransferStart announces the start of one file's data stream.
type FileTransferStart struct {
	FileID      uint8
	SessionID   [8]byte
	Compression Compression
}

// FileTransfer carries a chunk inline with a control message. Only used by
// the control-mode protocol variant; stream mode sends chunks as raw 0x01
// data frames instead.
type FileTransfer struct {
	FileID uint8
	Start  uint64
	Chunk  []byte
}

// FileTransferComplete marks the end of one file's data stream. It carries
// no fields.
type FileTransferComplete struct{}

// Message is the tagged union of every control message variant. Exactly
// one of the typed fields is non-nil, selected by Tag.
type Message struct {
	Tag      byte
	Offer    *FileOffer
	Request  *FileRequest
	Start    *FileTransferStart
	Transfer *FileTransfer
	Complete *FileTransferComplete
}

// Encode serializes a Message using the wire format from §4.5: little-endian
// integers, u32_le-length-prefixed strings and byte vectors, single-byte
// enum tags, raw bytes for fixed-size arrays.
func (m *Message) Encode() []byte {
	buf := []byte{m.Tag}

	switch m.Tag {
	case TagFileOffer:
		buf = appendU32(buf, uint32(len(m.Offer.Files)))
		for _, f := range m.Offer.Files {
			buf = append(buf, f.ID)
			buf = appendString(buf, f.Path)
			buf = appendU64(buf, f.Size)
		}
	case TagFileRequest:
		buf = appendU32(buf, uint32(len(m.Request.Chunks)))
		for _, c := range m.Request.Chunks {
			buf = append(buf, c.ID)
			buf = appendU64(buf, c.Start)
		}
	case TagFileTransferStart:
		buf = append(buf, m.Start.FileID)
		buf = append(buf, m.Start.SessionID[:]...)
		buf = append(buf, byte(m.Start.Compression))
	case TagFileTransfer:
		buf = append(buf, m.Transfer.FileID)
		buf = appendU64(buf, m.Transfer.Start)
		buf = appendBytes(buf, m.Transfer.Chunk)
	case TagFileTransferComplete:
		// no fields
	}
	return buf
}

// Decode parses a Message from the wire format produced by Encode.
func Decode(data []byte) (*Message, error) {
	if len(data) < 1 {
		return nil, ferrors.New(ferrors.KindProtocolError, fmt.Errorf("empty control message"))
	}
	tag := data[0]
	rest := data[1:]

	switch tag {
	case TagFileOffer:
		count, rest, err := readU32(rest)
		if err != nil {
			return nil, err
		}
		files := make([]OfferedFile, 0, count)
		for i := uint32(0); i < count; i++ {
			if len(rest) < 1 {
				return nil, truncated("FileOffer entry id")
			}
			id := rest[0]
			rest = rest[1:]

			var path string
			path, rest, err = readString(rest)
			if err != nil {
				return nil, err
			}

			var size uint64
			size, rest, err = readU64(rest)
			if err != nil {
				return nil, err
			}
			files = append(files, OfferedFile{ID: id, Path: path, Size: size})
		}
		return &Message{Tag: tag, Offer: &FileOffer{Files: files}}, nil

	case TagFileRequest:
		count, rest, err := readU32(rest)
		if err != nil {
			return nil, err
		}
		chunks := make([]RequestedChunk, 0, count)
		for i := uint32(0); i < count; i++ {
			if len(rest) < 1 {
				return nil, truncated("FileRequest entry id")
			}
			id := rest[0]
			rest = rest[1:]

			var start uint64
			start, rest, err = readU64(rest)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, RequestedChunk{ID: id, Start: start})
		}
		return &Message{Tag: tag, Request: &FileRequest{Chunks: chunks}}, nil

	case TagFileTransferStart:
		if len(rest) < 1+8+1 {
			return nil, truncated("FileTransferStart")
		}
		fileID := rest[0]
		var sessionID [8]byte
		copy(sessionID[:], rest[1:9])
		compression := Compression(rest[9])
		return &Message{Tag: tag, Start: &FileTransferStart{
			FileID:      fileID,
			SessionID:   sessionID,
			Compression: compression,
		}}, nil

	case TagFileTransfer:
		if len(rest) < 1 {
			return nil, truncated("FileTransfer file_id")
		}
		fileID := rest[0]
		rest = rest[1:]

		start, rest, err := readU64(rest)
		if err != nil {
			return nil, err
		}
		chunk, _, err := readBytes(rest)
		if err != nil {
			return nil, err
		}
		return &Message{Tag: tag, Transfer: &FileTransfer{FileID: fileID, Start: start, Chunk: chunk}}, nil

	case TagFileTransferComplete:
		return &Message{Tag: tag, Complete: &FileTransferComplete{}}, nil

	default:
		return nil, ferrors.New(ferrors.KindProtocolError, fmt.Errorf("unknown message tag %d", tag))
	}
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = appendU32(buf, uint32(len(b)))
	return append(buf, b...)
}

func readU32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, truncated("u32")
	}
	return binary.LittleEndian.Uint32(data[:4]), data[4:], nil
}

func readU64(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, truncated("u64")
	}
	return binary.LittleEndian.Uint64(data[:8]), data[8:], nil
}

func readBytes(data []byte) ([]byte, []byte, error) {
	n, data, err := readU32(data)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(data)) < uint64(n) {
		return nil, nil, truncated("byte vector")
	}
	out := make([]byte, n)
	copy(out, data[:n])
	return out, data[n:], nil
}

func readString(data []byte) (string, []byte, error) {
	b, rest, err := readBytes(data)
	if err != nil {
		return "", nil, err
	}
	return string(b), rest, nil
}

func truncated(field string) error {
	return ferrors.New(ferrors.KindProtocolError, fmt.Errorf("truncated control message while reading %s", field))
}
