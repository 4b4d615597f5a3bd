// Command hearth runs a world server from the config.toml in the working
// directory, creating one with defaults on first run.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hearthvox/hearth/server"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(log)

	uc, err := server.ReadConfig("config.toml")
	if err != nil {
		log.Error("read config", "err", err)
		os.Exit(1)
	}
	conf, err := uc.Config(log)
	if err != nil {
		log.Error("configure server", "err", err)
		os.Exit(1)
	}
	srv := conf.New()
	log.Info("server started", "name", srv.Name(), "seed", srv.World().Seed())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Info("shutting down")
	if err := srv.Close(); err != nil {
		log.Error("close server", "err", err)
		os.Exit(1)
	}
}
