package xfer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/lanterncrew/fling/internal/logging"
	"github.com/lanterncrew/fling/internal/protocol"
)

// TestSenderReceiver_EndToEnd exercises the full offer/request/stream
// pipeline over net.Pipe for one compressible and one already-compressed
// file, verifying the receiver reconstructs both byte-for-byte.
func TestSenderReceiver_EndToEnd(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	textContent := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 200)
	textPath := filepath.Join(srcDir, "notes.txt")
	if err := os.WriteFile(textPath, textContent, 0o644); err != nil {
		t.Fatalf("write notes.txt: %v", err)
	}

	jpegContent := bytes.Repeat([]byte{0xff, 0xd8, 0xff, 0x00}, 500)
	jpegPath := filepath.Join(srcDir, "photo.jpg")
	if err := os.WriteFile(jpegPath, jpegContent, 0o644); err != nil {
		t.Fatalf("write photo.jpg: %v", err)
	}

	handles, err := BuildFileHandles([]string{textPath, jpegPath})
	if err != nil {
		t.Fatalf("BuildFileHandles: %v", err)
	}

	connA, connB := newPairedConnections(t)
	logger := logging.NopLogger()

	senderErr := make(chan error, 1)
	go func() {
		if err := SendOffer(connA, handles); err != nil {
			senderErr <- err
			return
		}
		requested, err := AwaitRequest(connA, handles)
		if err != nil {
			senderErr <- err
			return
		}
		senderErr <- StreamFiles(connA, handles, requested, 0, logger)
	}()

	offer, err := AwaitOffer(connB)
	if err != nil {
		t.Fatalf("AwaitOffer: %v", err)
	}
	if len(offer.Files) != 2 {
		t.Fatalf("offer.Files = %d entries, want 2", len(offer.Files))
	}

	var ids []uint8
	for _, f := range offer.Files {
		ids = append(ids, f.ID)
	}
	if err := SendRequest(connB, ids); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if err := ReceiveFiles(connB, offer, ids, destDir, logger); err != nil {
		t.Fatalf("ReceiveFiles: %v", err)
	}

	if err := <-senderErr; err != nil {
		t.Fatalf("sender side: %v", err)
	}

	gotText, err := os.ReadFile(filepath.Join(destDir, "notes.txt"))
	if err != nil {
		t.Fatalf("read received notes.txt: %v", err)
	}
	if !bytes.Equal(gotText, textContent) {
		t.Fatalf("notes.txt mismatch: got %d bytes, want %d", len(gotText), len(textContent))
	}

	gotJpeg, err := os.ReadFile(filepath.Join(destDir, "photo.jpg"))
	if err != nil {
		t.Fatalf("read received photo.jpg: %v", err)
	}
	if !bytes.Equal(gotJpeg, jpegContent) {
		t.Fatalf("photo.jpg mismatch: got %d bytes, want %d", len(gotJpeg), len(jpegContent))
	}
}

func TestSenderReceiver_DeclinedOfferSendsEmptyRequest(t *testing.T) {
	srcDir := t.TempDir()
	path := filepath.Join(srcDir, "file.bin")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write file.bin: %v", err)
	}
	handles, err := BuildFileHandles([]string{path})
	if err != nil {
		t.Fatalf("BuildFileHandles: %v", err)
	}

	connA, connB := newPairedConnections(t)

	type senderResult struct {
		requested []protocol.RequestedChunk
		err       error
	}
	senderCh := make(chan senderResult, 1)
	go func() {
		if err := SendOffer(connA, handles); err != nil {
			senderCh <- senderResult{err: err}
			return
		}
		requested, err := AwaitRequest(connA, handles)
		senderCh <- senderResult{requested: requested, err: err}
	}()

	if _, err := AwaitOffer(connB); err != nil {
		t.Fatalf("AwaitOffer: %v", err)
	}
	if err := SendRequest(connB, nil); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	res := <-senderCh
	if res.err != nil {
		t.Fatalf("sender side: %v", res.err)
	}
	if len(res.requested) != 0 {
		t.Fatalf("requested = %d chunks, want 0 for a declined offer", len(res.requested))
	}
}

func TestAwaitRequest_RejectsUnknownFileID(t *testing.T) {
	connA, connB := newPairedConnections(t)
	handles := []FileHandle{{ID: 0, Path: "a.txt", Size: 1}}

	go func() {
		connB.SendMsg(&protocol.Message{Tag: protocol.TagFileRequest, Request: &protocol.FileRequest{
			Chunks: []protocol.RequestedChunk{{ID: 99, Start: 0}},
		}})
	}()

	if _, err := AwaitRequest(connA, handles); err == nil {
		t.Fatal("expected AwaitRequest to reject an unknown file id")
	}
}

func TestAwaitRequest_RejectsNonZeroStart(t *testing.T) {
	connA, connB := newPairedConnections(t)
	handles := []FileHandle{{ID: 0, Path: "a.txt", Size: 1}}

	go func() {
		connB.SendMsg(&protocol.Message{Tag: protocol.TagFileRequest, Request: &protocol.FileRequest{
			Chunks: []protocol.RequestedChunk{{ID: 0, Start: 10}},
		}})
	}()

	if _, err := AwaitRequest(connA, handles); err == nil {
		t.Fatal("expected AwaitRequest to reject a nonzero resume offset")
	}
}
