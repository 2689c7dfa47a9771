package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/peer-dial/internal/identity"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "generate a new identity",
	Long: `generates a fresh account identity and saves it to the keystore file.
			Share the printed address and public seal key with peers so they can add you to their directory`,
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat(keystorePath); err == nil {
			fmt.Fprintf(os.Stderr, "keystore %s already exists, refusing to overwrite\n", keystorePath)
			os.Exit(1)
		}

		id, err := identity.Generate()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := id.Save(keystorePath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		fmt.Printf("address:  %s\n", id.Address().Hex())
		fmt.Printf("seal key: %s\n", identity.EncodePublicKey(id.PublicSealKey()))
	},
}
