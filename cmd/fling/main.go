// Package main provides the CLI entry point for fling, a peer-to-peer
// encrypted file transfer tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "fling",
		Short: "fling - peer-to-peer encrypted file transfer",
		Long: `fling sends files directly between two peers, encrypted end-to-end
with a key derived from a shared password. A relay only pairs the two
peers and forwards bytes; it never sees the password or the file
contents.`,
		Version: Version,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "transfer", Title: "Transfer:"})
	rootCmd.AddGroup(&cobra.Group{ID: "infra", Title: "Infrastructure:"})

	send := sendCmd()
	send.GroupID = "transfer"
	rootCmd.AddCommand(send)

	receive := receiveCmd()
	receive.GroupID = "transfer"
	rootCmd.AddCommand(receive)

	relay := relayCmd()
	relay.GroupID = "infra"
	rootCmd.AddCommand(relay)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
