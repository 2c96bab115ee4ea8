package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"dnssentinel/internal/anomaly"
	"dnssentinel/internal/blocklist"
	"dnssentinel/internal/config"
	"dnssentinel/internal/logging"
	"dnssentinel/internal/repository"
	"dnssentinel/internal/sentinel"
	"dnssentinel/internal/server"
	"dnssentinel/internal/state"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// No logger yet; configuration failures are fatal to initialization.
		panic(err)
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Path)
	defer log.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalw("create data directory", "dir", cfg.DataDir, "err", err)
	}

	st, err := state.Open(filepath.Join(cfg.DataDir, "sentinel_state.json"))
	if err != nil {
		log.Fatalw("open lifecycle state", "err", err)
	}

	repo, err := repository.NewSQLite(filepath.Join(cfg.DataDir, "sentinel_data.db"))
	if err != nil {
		log.Fatalw("open snapshot repository", "err", err)
	}
	defer repo.Close()

	detector := anomaly.NewDetector(filepath.Join(cfg.DataDir, "anomaly_model.json"), log)
	bl := blocklist.NewStore(cfg.DataDir, log)

	engine := sentinel.New(cfg, log, detector, bl, repo, st)
	if err := engine.Initialize(context.Background()); err != nil {
		log.Fatalw("engine initialization failed", "err", err)
	}
	defer engine.Close()

	admin := server.New(engine, bl, log)
	go func() {
		if err := admin.Start(cfg.Admin.Listen); err != nil {
			log.Errorw("admin server error", "err", err)
		}
	}()

	forwarder := server.NewForwarder(engine, cfg.DNS.Listen, cfg.DNS.Upstream, log)
	go func() {
		if err := forwarder.Start(); err != nil {
			log.Errorw("dns forwarder error", "err", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	log.Infow("shutting down", "signal", sig)
	forwarder.Shutdown()
}
