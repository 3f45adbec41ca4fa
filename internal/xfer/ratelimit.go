package xfer

import (
	"context"
	"io"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitedReader throttles reads from an underlying file to a fixed
// bytes-per-second rate. It is applied client-side only, on the sender's
// plaintext file reader, before compression/encryption — the wire format
// carries no notion of a rate limit, so a receiver can't tell a throttled
// sender from an unthrottled one.
type rateLimitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
}

// NewRateLimitedReader wraps r so that reads are paced to at most
// bytesPerSecond. A burst of one chunkSize is allowed so a single
// SendDataChunk-sized read doesn't itself get fragmented by the limiter.
func NewRateLimitedReader(r io.Reader, bytesPerSecond int) io.Reader {
	limiter := rate.NewLimiter(rate.Limit(bytesPerSecond), chunkSize)
	// Drain the initially full bucket so the first chunk is paced too.
	limiter.AllowN(time.Now(), chunkSize)
	return &rateLimitedReader{
		r:       r,
		limiter: limiter,
	}
}

func (rl *rateLimitedReader) Read(p []byte) (int, error) {
	if len(p) > chunkSize {
		p = p[:chunkSize]
	}
	n, err := rl.r.Read(p)
	if n > 0 {
		if waitErr := rl.limiter.WaitN(context.Background(), n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
