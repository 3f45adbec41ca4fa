package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lanterncrew/fling/internal/logging"
	"github.com/lanterncrew/fling/internal/xfer"
)

func receiveCmd() *cobra.Command {
	var (
		relayAddr   string
		destDir     string
		yes         bool
		connectWait time.Duration
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "receive [flags] <password>",
		Short: "Accept an offer from a sender using the same password",
		Long: `receive connects to a relay with the password given to you by the
sender, displays the files on offer, and (unless --yes is given) prompts
for confirmation before downloading them into the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger(logLevel, "text")

			pw, err := resolvePassword(args)
			if err != nil {
				return err
			}

			return runReceive(relayAddr, pw, destDir, yes, connectWait, logger)
		},
	}

	cmd.Flags().StringVarP(&relayAddr, "relay", "r", "", "Relay address (host:port)")
	cmd.Flags().StringVarP(&destDir, "output", "o", ".", "Directory to write received files into")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the offer without prompting")
	cmd.Flags().DurationVar(&connectWait, "connect-timeout", 30*time.Second, "Timeout for connecting to the relay")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.MarkFlagRequired("relay")

	return cmd
}

// resolvePassword returns the password passed as an argument, or reads it
// from the terminal with echo disabled if none was given.
func resolvePassword(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	fmt.Fprint(os.Stdout, "Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stdout)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pwBytes), nil
}

func runReceive(relayAddr, pw, destDir string, yes bool, connectWait time.Duration, logger *slog.Logger) error {
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

	offer, err := xfer.AwaitOffer(c)
	if err != nil {
		return fmt.Errorf("await offer: %w", err)
	}

	var totalSize uint64
	for _, f := range offer.Files {
		totalSize += f.Size
		fmt.Fprintf(os.Stdout, "  [%d] %s (%s)\n", f.ID, f.Path, xfer.FormatSize(f.Size))
	}
	fmt.Fprintf(os.Stdout, "%d file(s) offered, %s total.\n", len(offer.Files), xfer.FormatSize(totalSize))

	accept := yes
	if !yes {
		confirm := huh.NewConfirm().
			Title("Accept this transfer?").
			Affirmative("Yes").
			Negative("No").
			Value(&accept)
		if err := confirm.Run(); err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
	}

	var ids []uint8
	if accept {
		for _, f := range offer.Files {
			ids = append(ids, f.ID)
		}
	}
	if err := xfer.SendRequest(c, ids); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stdout, "Declined.")
		return nil
	}

	if err := xfer.ReceiveFiles(c, offer, ids, destDir, logger); err != nil {
		return fmt.Errorf("receive files: %w", err)
	}

	fmt.Fprintln(os.Stdout, "Transfer complete.")
	return nil
}
