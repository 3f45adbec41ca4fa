package xfer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/lanterncrew/fling/internal/ferrors"
	"github.com/lanterncrew/fling/internal/logging"
	"github.com/lanterncrew/fling/internal/protocol"
)

// AwaitOffer reads the sender's FileOffer.
func AwaitOffer(conn *Connection) (*protocol.FileOffer, error) {
	msg, err := conn.AwaitMsg()
	if err != nil {
		return nil, err
	}
	if msg.Tag != protocol.TagFileOffer {
		return nil, ferrors.New(ferrors.KindProtocolError, fmt.Errorf("expected FileOffer, got tag %d", msg.Tag))
	}
	return msg.Offer, nil
}

// SendRequest replies with a FileRequest naming the accepted ids, each with
// start=0 (resume is disabled under compression).
func SendRequest(conn *Connection, ids []uint8) error {
	chunks := make([]protocol.RequestedChunk, len(ids))
	for i, id := range ids {
		chunks[i] = protocol.RequestedChunk{ID: id, Start: 0}
	}
	return conn.SendMsg(&protocol.Message{Tag: protocol.TagFileRequest, Request: &protocol.FileRequest{Chunks: chunks}})
}

// ReceiveFiles receives each requested file in the order requested
// (matching the sender's canonical order, §4.6), writes it to destDir
// under its offered (NFC-normalized) basename, and verifies its final size.
func ReceiveFiles(conn *Connection, offer *protocol.FileOffer, requestedIDs []uint8, destDir string, logger *slog.Logger) error {
	byID := make(map[uint8]protocol.OfferedFile, len(offer.Files))
	for _, f := range offer.Files {
		byID[f.ID] = f
	}

	for _, wantID := range requestedIDs {
		offered := byID[wantID]
		if err := receiveOneFile(conn, offered, wantID, destDir, logger); err != nil {
			return err
		}
	}
	return nil
}

func receiveOneFile(conn *Connection, offered protocol.OfferedFile, expectedID uint8, destDir string, logger *slog.Logger) error {
	msg, err := conn.AwaitMsg()
	if err != nil {
		return err
	}
	if msg.Tag != protocol.TagFileTransferStart {
		return ferrors.New(ferrors.KindProtocolError, fmt.Errorf("expected FileTransferStart, got tag %d", msg.Tag))
	}
	if msg.Start.FileID != expectedID {
		return ferrors.New(ferrors.KindProtocolError, fmt.Errorf("FileTransferStart for id %d, expected %d (request order)", msg.Start.FileID, expectedID))
	}
	conn.ResetStreamCipher(msg.Start.SessionID)

	destName := norm.NFC.String(filepath.Base(offered.Path))
	destPath := filepath.Join(destDir, destName)

	destFile, err := os.Create(destPath) // truncates to 0 (no resume, §3)
	if err != nil {
		return ferrors.New(ferrors.KindIO, fmt.Errorf("create %s: %w", destPath, err))
	}

	var sink io.Writer = destFile
	var pw *io.PipeWriter
	var g *errgroup.Group
	if msg.Start.Compression == protocol.CompressionZstd {
		pr, w := io.Pipe()
		pw = w
		g = &errgroup.Group{}
		g.Go(func() error {
			dec, err := NewZstdDecoder(pr)
			if err != nil {
				pr.CloseWithError(err)
				return err
			}
			defer dec.Close()
			_, copyErr := io.Copy(destFile, dec)
			return copyErr
		})
		sink = pw
	}

	var received uint64
loop:
	for {
		typeByte, body, err := conn.AwaitRaw()
		if err != nil {
			return err
		}
		switch typeByte {
		case protocol.TypeData:
			plaintext, err := conn.DecryptDataChunk(body)
			if err != nil {
				return err
			}
			if _, err := sink.Write(plaintext); err != nil {
				return ferrors.New(ferrors.KindIO, fmt.Errorf("write %s: %w", destPath, err))
			}
			received += uint64(len(plaintext))
		case protocol.TypeControl:
			ctrl, err := conn.DecodeControl(body)
			if err != nil {
				return err
			}
			if ctrl.Tag != protocol.TagFileTransferComplete {
				return ferrors.New(ferrors.KindProtocolError, fmt.Errorf("expected FileTransferComplete, got tag %d", ctrl.Tag))
			}
			break loop
		default:
			return ferrors.New(ferrors.KindProtocolError, fmt.Errorf("unknown frame type byte 0x%02x", typeByte))
		}
	}

	if pw != nil {
		if err := pw.Close(); err != nil {
			return ferrors.New(ferrors.KindIO, fmt.Errorf("close zstd pipe: %w", err))
		}
		if err := g.Wait(); err != nil {
			return ferrors.New(ferrors.KindIO, fmt.Errorf("decompress %s: %w", destPath, err))
		}
	}
	if err := destFile.Close(); err != nil {
		return ferrors.New(ferrors.KindIO, fmt.Errorf("close %s: %w", destPath, err))
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return ferrors.New(ferrors.KindIO, fmt.Errorf("stat %s: %w", destPath, err))
	}
	if uint64(info.Size()) != offered.Size {
		return ferrors.New(ferrors.KindSizeMismatch, fmt.Errorf("%s: on-disk size %d != advertised size %d", destPath, info.Size(), offered.Size))
	}

	logger.Info("file received",
		logging.KeyFileID, expectedID,
		logging.KeyPath, destPath,
		logging.KeyBytes, received,
	)
	return nil
}
