package main

import (
	"log"
	"os"

	"github.com/simlab/simnet/internal/api"
	"github.com/simlab/simnet/internal/config"
	"github.com/simlab/simnet/internal/engine"
	"github.com/simlab/simnet/internal/manager"
	"github.com/simlab/simnet/internal/notify"
	"github.com/simlab/simnet/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("simnetd: starting",
		"listen_addr", cfg.ListenAddr,
		"notify_addr", cfg.NotifyAddr,
		"db_path", cfg.DBPath,
		"run_timeout", cfg.RunTimeout.String(),
	)

	journal, err := store.NewSQLiteJournal(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open journal database: %v", err)
	}
	defer journal.Close()

	registry, err := engine.DefaultRegistry()
	if err != nil {
		log.Fatalf("failed to build engine registry: %v", err)
	}
	logger.Info("engines registered", "engines", registry.Names())

	broker := notify.NewBroker()
	listener := notify.NewListener(broker, logger)
	if err := listener.Start(cfg.NotifyAddr); err != nil {
		log.Fatalf("failed to start notification listener: %v", err)
	}
	defer listener.Close()

	mgr := manager.New(registry, journal, broker, logger, cfg.RunTimeout)

	srv := api.NewServer(cfg.ListenAddr, mgr, registry, journal, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
