package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"storykeeper/internal/auth"
	"storykeeper/internal/config"
	"storykeeper/internal/logging"
	"storykeeper/internal/server"
	"storykeeper/internal/storage"
)

const (
	gcInterval      = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.LoadServerConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Level, cfg.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(logrus.Fields{
		"listen_addr":      cfg.ListenAddr,
		"badgerdb_path":    cfg.BadgerDBPath,
		"badger_in_memory": cfg.BadgerInMemory,
	}).Info("Configuration loaded successfully")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("storyd stopped with an error")
	}
	log.Info("storyd shut down gracefully.")
}

func run(cfg config.ServerConfig, log *logrus.Logger) error {
	repo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, cfg.BadgerInMemory, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		log.Info("Closing database...")
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()

	tokens, err := auth.NewTokens(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize tokens: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go repo.RunGC(ctx, gcInterval)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(repo, tokens, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("storyd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down storyd...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
