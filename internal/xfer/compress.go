// Package xfer implements the connection layer and the file offer/request/
// streaming state machine that carries file bodies over a paired,
// handshaken relay connection.
package xfer

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/lanterncrew/fling/internal/protocol"
)

// precompressedExtensions lists extensions (without the leading dot, lower
// case) for which zstd rarely helps; the compression heuristic skips them.
var precompressedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
	"heic": true, "heif": true, "avif": true,
	"mp4": true, "mkv": true, "avi": true, "mov": true, "webm": true, "m4v": true,
	"mp3": true, "aac": true, "ogg": true, "opus": true, "flac": true, "m4a": true,
	"zip": true, "gz": true, "bz2": true, "xz": true, "zst": true, "7z": true, "rar": true,
	"tgz": true, "pdf": true, "docx": true, "xlsx": true, "pptx": true,
}

// ChooseCompression applies the file-extension heuristic from §4.6: zstd
// unless the extension is already in the precompressed set. "tar.gz" is
// checked as a compound suffix since filepath.Ext would otherwise only see
// ".gz".
func ChooseCompression(path string) protocol.Compression {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") {
		return protocol.CompressionNone
	}

	ext := strings.TrimPrefix(filepath.Ext(lower), ".")
	if precompressedExtensions[ext] {
		return protocol.CompressionNone
	}
	return protocol.CompressionZstd
}

// zstdLevel is the fast default used throughout the pipeline (§4.6).
const zstdLevel = zstd.SpeedDefault

// NewZstdEncoder wraps w so that writes are zstd-compressed at level 3
// (zstd.SpeedDefault). Callers must Close the encoder to flush the final
// frame.
func NewZstdEncoder(w io.Writer) (*zstd.Encoder, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel))
}

// NewZstdDecoder wraps r so that reads are zstd-decompressed. Callers must
// call Close when done to release the decoder's goroutines.
func NewZstdDecoder(r io.Reader) (*zstd.Decoder, error) {
	return zstd.NewReader(r)
}
