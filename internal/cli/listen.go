package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/peer-dial/internal/logger"
	"github.com/rudransh-shrivastava/peer-dial/internal/session"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "accept inbound channels",
	Long:  `connects to the relay and accepts negotiation requests from peers in the directory, printing whatever arrives on established channels`,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.New()

		facade, client, err := newFacade(cmd.Context(), log)
		if err != nil {
			log.Fatal(err)
			return
		}
		defer client.Close()
		defer facade.Close()

		facade.OnRequest(func(req *session.Request) {
			log.Infof("Accepting negotiation request from %s", req.Peer().Hex())
			if _, err := req.Accept(context.Background()); err != nil {
				log.Warnf("Accepting request from %s failed: %v", req.Peer().Hex(), err)
			}
		})
		facade.OnChannel(func(ch *session.Channel) {
			go func() {
				for payload := range ch.Recv() {
					fmt.Printf("[%s] %s\n", ch.Peer().Hex(), payload)
				}
				log.Infof("Channel from %s closed", ch.Peer().Hex())
			}()
		})

		log.Infof("Listening as %s via relay %s", facade.Address().Hex(), relayAddr)

		done := make(chan os.Signal, 1)
		signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
		<-done
		log.Info("exiting...")
	},
}
