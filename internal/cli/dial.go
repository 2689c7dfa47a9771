package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/peer-dial/internal/logger"
	"github.com/rudransh-shrivastava/peer-dial/internal/session"
)

const sendChunkSize = 16 * 1024

var (
	dialMessage string
	dialFile    string
)

var dialCmd = &cobra.Command{
	Use:   "dial peer-address",
	Short: "open a channel to a peer",
	Long:  `negotiates an encrypted channel to the given peer and sends a message or streams a file over it`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.New()

		if !common.IsHexAddress(args[0]) {
			log.Fatalf("invalid peer address %q", args[0])
			return
		}
		peer := common.HexToAddress(args[0])

		facade, client, err := newFacade(cmd.Context(), log)
		if err != nil {
			log.Fatal(err)
			return
		}
		defer client.Close()
		defer facade.Close()

		ch, err := facade.Initiate(cmd.Context(), peer)
		if err != nil {
			log.Fatalf("Negotiation with %s failed: %v", peer.Hex(), err)
			return
		}
		defer ch.Close()

		switch {
		case dialFile != "":
			if err := streamFile(ch, dialFile); err != nil {
				log.Fatal(err)
			}
		case dialMessage != "":
			if err := ch.Send([]byte(dialMessage)); err != nil {
				log.Fatalf("Sending message failed: %v", err)
			}
			log.Infof("Message sent to %s", peer.Hex())
		default:
			log.Fatal("nothing to send: pass --message or --file")
		}
	},
}

// streamFile sends the file in fixed-size chunks over the channel.
func streamFile(ch *session.Channel, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stating %s: %w", path, err)
	}

	bar := progressbar.DefaultBytes(info.Size(), "sending")
	buf := make([]byte, sendChunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			if sendErr := ch.Send(buf[:n]); sendErr != nil {
				return fmt.Errorf("sending chunk: %w", sendErr)
			}
			bar.Add(n)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}
}

func init() {
	dialCmd.Flags().StringVar(&dialMessage, "message", "", "send a single message over the channel")
	dialCmd.Flags().StringVar(&dialFile, "file", "", "stream a file over the channel")
}
