package relay

import (
	"io"
	"net"
	"sync"
)

// halfCloser is implemented by connections that support half-close.
type halfCloser interface {
	CloseWrite() error
}

// splice copies data bidirectionally between two already-paired connections
// until both directions have drained, then returns. The relay never parses
// anything it copies: once two peers are paired, their handshake bytes are
// the last thing the relay itself interprets.
func splice(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_, _ = io.Copy(b, a)
		if hc, ok := b.(halfCloser); ok {
			hc.CloseWrite()
		}
	}()

	go func() {
		defer wg.Done()
		_, _ = io.Copy(a, b)
		if hc, ok := a.(halfCloser); ok {
			hc.CloseWrite()
		}
	}()

	wg.Wait()
}
