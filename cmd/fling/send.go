package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lanterncrew/fling/internal/logging"
	"github.com/lanterncrew/fling/internal/password"
	"github.com/lanterncrew/fling/internal/xfer"
)

func sendCmd() *cobra.Command {
	var (
		pw          string
		relayAddr   string
		rateLimit   string
		connectWait time.Duration
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "send [flags] <path>...",
		Short: "Offer one or more files to a waiting receiver",
		Long: `send connects to a relay, waits for a receiver who knows the same
password, and streams the requested files once they accept the offer.

If --password is omitted, a random 16-character password is generated and
printed once — share it with the receiver out of band.

Examples:
  fling send --relay relay.example.com:4545 report.pdf
  fling send -r relay.example.com:4545 -p correct-horse-battery ./dataset/*.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger(logLevel, "text")

			resolvedPw, err := password.ValidateOrGenerate(pw)
			if err != nil {
				return err
			}
			if pw == "" {
				fmt.Fprintf(os.Stdout, "Password: %s\n", resolvedPw)
			}

			var rateLimitBytes int
			if rateLimit != "" {
				n, err := xfer.ParseSize(rateLimit)
				if err != nil {
					return fmt.Errorf("invalid --rate-limit: %w", err)
				}
				rateLimitBytes = int(n)
			}

			return runSend(relayAddr, resolvedPw, args, rateLimitBytes, connectWait, logger)
		},
	}

	cmd.Flags().StringVarP(&pw, "password", "p", "", "Transfer password (generated if omitted)")
	cmd.Flags().StringVarP(&relayAddr, "relay", "r", "", "Relay address (host:port)")
	cmd.Flags().StringVar(&rateLimit, "rate-limit", "", "Cap transfer speed (e.g. 100KB, 2MiB)")
	cmd.Flags().DurationVar(&connectWait, "connect-timeout", 30*time.Second, "Timeout for connecting to the relay")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.MarkFlagRequired("relay")

	return cmd
}

func runSend(relayAddr, pw string, paths []string, rateLimitBytes int, connectWait time.Duration, logger *slog.Logger) error {
	handles, err := xfer.BuildFileHandles(paths)
	if err != nil {
		return err
	}

	conn, err := net.DialTimeout("tcp", relayAddr, connectWait)
	if err != nil {
		return fmt.Errorf("dial relay %s: %w", relayAddr, err)
	}

	c, id, err := xfer.Handshake(conn, pw)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	defer c.Close()
	logger.Debug("paired", logging.KeySessionID, id.ShortString())

	if err := xfer.SendOffer(c, handles); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}

	var totalSize uint64
	for _, h := range handles {
		totalSize += h.Size
	}
	fmt.Fprintf(os.Stdout, "Offering %d file(s), %s total. Waiting for receiver to accept...\n", len(handles), xfer.FormatSize(totalSize))

	requested, err := xfer.AwaitRequest(c, handles)
	if err != nil {
		return fmt.Errorf("await request: %w", err)
	}
	if len(requested) == 0 {
		fmt.Fprintln(os.Stdout, "Receiver declined all files.")
		return nil
	}

	if err := xfer.StreamFiles(c, handles, requested, rateLimitBytes, logger); err != nil {
		return fmt.Errorf("stream files: %w", err)
	}

	fmt.Fprintln(os.Stdout, "Transfer complete.")
	return nil
}
