package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rudransh-shrivastava/peer-dial/internal/logger"
	"github.com/rudransh-shrivastava/peer-dial/internal/relay"
)

func main() {
	addr := flag.String("addr", ":7070", "listen address")
	dbPath := flag.String("db", "relay.db", "event log database path")
	flag.Parse()

	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := relay.NewServer(relay.ServerConfig{
		Addr:   *addr,
		DBPath: *dbPath,
		Logger: log,
	})
	if err != nil {
		log.Fatal(err)
		return
	}

	log.Infof("Relay listening on %s", server.Addr())
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
	log.Info("exiting...")
}
