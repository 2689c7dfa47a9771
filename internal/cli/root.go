// Package cli implements the peerdial command line interface.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	keystorePath string
	peersPath    string
	relayAddr    string
	timeout      time.Duration
)

var rootCmd = &cobra.Command{
	Use:  `peerdial`,
	Long: `peerdial negotiates end-to-end encrypted peer channels using a shared relay log as the only rendezvous`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&keystorePath, "keystore", "peerdial.key", "path to the identity keystore file")
	rootCmd.PersistentFlags().StringVar(&peersPath, "peers", "peers.json", "path to the peer directory file")
	rootCmd.PersistentFlags().StringVar(&relayAddr, "relay", "localhost:7070", "relay server address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "negotiation attempt timeout")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(dialCmd)
}
