package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tTong32/Real-Time-Chess-sub000/internal/config"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/logging"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/server"
	"github.com/tTong32/Real-Time-Chess-sub000/internal/storage"
)

var log = logging.GetLog()

var (
	configPath = flag.String("config", "", "path to TOML config file")
	listenAddr = flag.String("listen", "", "listen address override, e.g. :8080")
	dataDir    = flag.String("data", "", "data directory override")
	inMemory   = flag.Bool("mem", false, "use an in-memory store; state is lost on exit")
	logLevel   = flag.String("loglevel", "", "log level override (CRITICAL..DEBUG)")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Criticalf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *inMemory {
		cfg.Storage.InMemory = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logging.SetLevel(cfg.LogLevel)

	var store *storage.Store
	if cfg.Storage.InMemory {
		store, err = storage.OpenInMemory()
	} else {
		store, err = storage.Open(cfg.Storage.DataDir)
	}
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, store).Run(ctx); err != nil {
		return err
	}
	log.Infof("shutdown complete")
	return nil
}
