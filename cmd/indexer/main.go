package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/htsget-drs-server/internal/config"
	"github.com/htsget-drs-server/internal/database"
	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/drs"
	"github.com/htsget-drs-server/internal/indexing"
	"github.com/htsget-drs-server/internal/repository"
	"github.com/htsget-drs-server/pkg/external"
)

func main() {
	objectID := flag.String("id", "", "index this single object and exit")
	genome := flag.String("genome", "hg38", "reference genome for -id")
	genomicID := flag.String("genomic-id", "", "optional genomic id for -id")
	flag.Parse()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()
	logger := newLogger(&cfg.Logging)

	db, err := database.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Could not open catalog store")
	}
	defer db.Close()

	repo, err := repository.New(db.SQL, logger, cfg.Htsget.URL, cfg.Htsget.BucketSize)
	if err != nil {
		logger.WithError(err).Fatal("Could not create repository")
	}

	vault := external.NewVaultClient(cfg.Auth.VaultURL, cfg.Auth.VaultS3Token, cfg.Auth.Timeout)
	s3 := external.NewS3Client(vault)
	drsSvc := drs.NewService(repo, s3, cfg.Indexing.Path, logger)
	worker := indexing.NewWorker(repo, drsSvc, cfg.Indexing.Path, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Single-shot mode: index one object synchronously and exit.
	if *objectID != "" {
		if _, err := repo.CreateVariantFile(ctx, &domain.VariantFile{
			ID:              *objectID,
			ReferenceGenome: *genome,
			GenomicID:       *genomicID,
		}); err != nil {
			logger.WithError(err).Fatal("Could not create variantfile")
		}
		if err := worker.IndexObject(ctx, *objectID); err != nil {
			logger.WithError(err).WithField("object", *objectID).Fatal("Indexing failed")
		}
		logger.WithField("object", *objectID).Info("Indexing complete")
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping indexer")
		cancel()
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("Indexing worker failed")
	}
	logger.Info("Indexer stopped")
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
