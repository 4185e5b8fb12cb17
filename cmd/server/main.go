package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/htsget-drs-server/internal/api"
	"github.com/htsget-drs-server/internal/authz"
	"github.com/htsget-drs-server/internal/beacon"
	"github.com/htsget-drs-server/internal/config"
	"github.com/htsget-drs-server/internal/database"
	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/drs"
	"github.com/htsget-drs-server/internal/htsget"
	"github.com/htsget-drs-server/internal/repository"
	"github.com/htsget-drs-server/pkg/external"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(&cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting htsget/DRS server")

	db, err := database.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Could not open catalog store")
	}
	defer db.Close()

	repo, err := repository.New(db.SQL, logger, cfg.Htsget.URL, cfg.Htsget.BucketSize)
	if err != nil {
		logger.WithError(err).Fatal("Could not create repository")
	}

	opa := external.NewOpaClient(cfg.Auth.OpaURL, cfg.Auth.OpaSecret, cfg.Auth.Timeout)
	vault := external.NewVaultClient(cfg.Auth.VaultURL, cfg.Auth.VaultS3Token, cfg.Auth.Timeout)
	s3 := external.NewS3Client(vault)
	auth := authz.New(opa, cfg.Auth.TestKey, logger)

	drsSvc := drs.NewService(repo, s3, cfg.Indexing.Path, logger)
	htsgetSvc := htsget.NewService(repo, drsSvc, cfg.Htsget.URL, cfg.Htsget.ChunkSize, cfg.Htsget.BucketSize, logger)
	beaconSvc := beacon.NewService(repo, drsSvc, htsgetSvc, logger)

	server := api.NewServer(cfg, logger, auth, drsSvc, htsgetSvc, beaconSvc)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func newLogger(cfg *domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if strings.ToLower(cfg.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
