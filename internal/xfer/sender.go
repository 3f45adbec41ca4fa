package xfer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/lanterncrew/fling/internal/aead"
	"github.com/lanterncrew/fling/internal/ferrors"
	"github.com/lanterncrew/fling/internal/logging"
	"github.com/lanterncrew/fling/internal/protocol"
)

// chunkSize is the fixed read-buffer size recommended by §4.7.
const chunkSize = 64 * 1024

// FileHandle is a sender-side offered file: a dense id assigned by
// enumeration order, its local path, and its size at offer time.
type FileHandle struct {
	ID   uint8
	Path string
	Size uint64
}

// BuildFileHandles stats each path and assigns dense ids starting at 0 in
// the order given, per §3's FileHandle invariant.
func BuildFileHandles(paths []string) ([]FileHandle, error) {
	if len(paths) > 256 {
		return nil, ferrors.New(ferrors.KindProtocolError, fmt.Errorf("too many files: %d (max 256)", len(paths)))
	}
	handles := make([]FileHandle, 0, len(paths))
	for i, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, ferrors.New(ferrors.KindIO, fmt.Errorf("stat %s: %w", p, err))
		}
		if info.IsDir() {
			return nil, ferrors.New(ferrors.KindIO, fmt.Errorf("%s is a directory", p))
		}
		handles = append(handles, FileHandle{
			ID:   uint8(i),
			Path: p,
			Size: uint64(info.Size()),
		})
	}
	return handles, nil
}

// SendOffer sends the FileOffer listing every handle's displayed basename
// and size.
func SendOffer(conn *Connection, handles []FileHandle) error {
	files := make([]protocol.OfferedFile, len(handles))
	for i, h := range handles {
		files[i] = protocol.OfferedFile{
			ID:   h.ID,
			Path: filepath.Base(h.Path),
			Size: h.Size,
		}
	}
	return conn.SendMsg(&protocol.Message{Tag: protocol.TagFileOffer, Offer: &protocol.FileOffer{Files: files}})
}

// AwaitRequest reads and validates the receiver's FileRequest: every id
// must have been offered and start must be 0 (resume is disabled).
func AwaitRequest(conn *Connection, handles []FileHandle) ([]protocol.RequestedChunk, error) {
	msg, err := conn.AwaitMsg()
	if err != nil {
		return nil, err
	}
	if msg.Tag != protocol.TagFileRequest {
		return nil, ferrors.New(ferrors.KindProtocolError, fmt.Errorf("expected FileRequest, got tag %d", msg.Tag))
	}

	byID := make(map[uint8]FileHandle, len(handles))
	for _, h := range handles {
		byID[h.ID] = h
	}
	for _, c := range msg.Request.Chunks {
		if _, ok := byID[c.ID]; !ok {
			return nil, ferrors.New(ferrors.KindProtocolError, fmt.Errorf("receiver requested unknown file id %d", c.ID))
		}
		if c.Start != 0 {
			return nil, ferrors.New(ferrors.KindProtocolError, fmt.Errorf("resume is disabled: file %d requested start=%d", c.ID, c.Start))
		}
	}
	return msg.Request.Chunks, nil
}

// StreamFiles sends FileTransferStart/chunks/FileTransferComplete for each
// requested file, in the order the receiver asked for them (§4.6's
// tie-break: sender order is the receiver's request order).
func StreamFiles(conn *Connection, handles []FileHandle, requested []protocol.RequestedChunk, rateLimitBytesPerSec int, logger *slog.Logger) error {
	byID := make(map[uint8]FileHandle, len(handles))
	for _, h := range handles {
		byID[h.ID] = h
	}

	for _, chunk := range requested {
		handle := byID[chunk.ID]
		if err := streamOneFile(conn, handle, rateLimitBytesPerSec, logger); err != nil {
			return err
		}
	}
	return nil
}

func streamOneFile(conn *Connection, handle FileHandle, rateLimitBytesPerSec int, logger *slog.Logger) error {
	compression := ChooseCompression(handle.Path)

	sessionID, err := aead.NewSessionID()
	if err != nil {
		return err
	}

	if err := conn.SendMsg(&protocol.Message{Tag: protocol.TagFileTransferStart, Start: &protocol.FileTransferStart{
		FileID:      handle.ID,
		SessionID:   sessionID,
		Compression: compression,
	}}); err != nil {
		return err
	}
	conn.ResetStreamCipher(sessionID)

	file, err := os.Open(handle.Path)
	if err != nil {
		return ferrors.New(ferrors.KindIO, fmt.Errorf("open %s: %w", handle.Path, err))
	}
	defer file.Close()

	var source io.Reader = file
	if rateLimitBytesPerSec > 0 {
		source = NewRateLimitedReader(source, rateLimitBytesPerSec)
	}
	var g *errgroup.Group
	if compression == protocol.CompressionZstd {
		rawSource := source
		pr, pw := io.Pipe()
		enc, err := NewZstdEncoder(pw)
		if err != nil {
			return ferrors.New(ferrors.KindIO, fmt.Errorf("zstd encoder: %w", err))
		}
		g = &errgroup.Group{}
		g.Go(func() error {
			_, copyErr := io.Copy(enc, rawSource)
			closeErr := enc.Close()
			if copyErr != nil {
				pw.CloseWithError(copyErr)
				return copyErr
			}
			if closeErr != nil {
				pw.CloseWithError(closeErr)
				return closeErr
			}
			return pw.Close()
		})
		source = pr
	}

	buf := make([]byte, chunkSize)
	var sent uint64
	for {
		n, readErr := source.Read(buf)
		if n > 0 {
			if err := conn.SendDataChunk(buf[:n]); err != nil {
				return err
			}
			sent += uint64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return ferrors.New(ferrors.KindIO, fmt.Errorf("read %s: %w", handle.Path, readErr))
		}
	}

	if g != nil {
		if err := g.Wait(); err != nil {
			return ferrors.New(ferrors.KindIO, fmt.Errorf("compress %s: %w", handle.Path, err))
		}
	}

	logger.Info("file sent",
		logging.KeyFileID, handle.ID,
		logging.KeyPath, handle.Path,
		logging.KeyBytes, sent,
	)

	return conn.SendMsg(&protocol.Message{Tag: protocol.TagFileTransferComplete, Complete: &protocol.FileTransferComplete{}})
}
