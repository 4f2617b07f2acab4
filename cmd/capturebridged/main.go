package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"capturebridge/internal/config"
	"capturebridge/internal/daemon"
	"capturebridge/internal/ledger"
	"capturebridge/internal/logging"
	"capturebridge/internal/transcription"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/capturebridge/config.toml)")
	printSample := flag.Bool("print-sample-config", false, "print the annotated sample config and exit")
	flag.Parse()

	if *printSample {
		fmt.Print(config.SampleConfig())
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, resolvedPath, exists, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	if !exists {
		logger.Info("no config file found, using defaults", "path", resolvedPath)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open ledger", logging.FieldError, err)
		os.Exit(1)
	}
	defer store.Close()

	engine, err := transcription.NewEngine(cfg, store, logger)
	if err != nil {
		logger.Error("create engine", logging.FieldError, err)
		os.Exit(1)
	}

	d, err := daemon.New(cfg, store, engine, logger)
	if err != nil {
		logger.Error("create daemon", logging.FieldError, err)
		os.Exit(1)
	}

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.FieldError, err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("capturebridged shutting down")
	d.Stop()
}
