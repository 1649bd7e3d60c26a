package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fadedpez/caminata/internal/api"
	"github.com/fadedpez/caminata/internal/config"
	challengeRepo "github.com/fadedpez/caminata/pkg/repositories/challenge"
	ledgerRepo "github.com/fadedpez/caminata/pkg/repositories/ledger"
	streakRepo "github.com/fadedpez/caminata/pkg/repositories/streak"
	"github.com/fadedpez/caminata/pkg/scheduler"
	"github.com/fadedpez/caminata/pkg/services/challenge"
	"github.com/fadedpez/caminata/pkg/services/dailycap"
	ledgersvc "github.com/fadedpez/caminata/pkg/services/ledger"
	streaksvc "github.com/fadedpez/caminata/pkg/services/streak"
	"github.com/fadedpez/caminata/pkg/services/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Initialize repositories
	var (
		ledgers    ledgerRepo.Repository
		streaks    streakRepo.Repository
		challenges challengeRepo.Repository
	)

	if cfg.StorageType == "sqlite" {
		dbPath := filepath.Join(cfg.DataDir, "caminata.db")
		log.Printf("Initializing SQLite repositories at %s", dbPath)

		ledgers, err = ledgerRepo.NewSQLiteRepository(dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize ledger repository: %v", err)
		}
		streaks, err = streakRepo.NewSQLiteRepository(dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize streak repository: %v", err)
		}
		challenges, err = challengeRepo.NewSQLiteRepository(dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize challenge repository: %v", err)
		}
	} else {
		log.Println("Using in-memory repositories (data will be lost on restart)")
		ledgers = ledgerRepo.NewMemoryRepository()
		streaks = streakRepo.NewMemoryRepository()
		challenges = challengeRepo.NewMemoryRepository()
	}
	defer ledgers.Close()
	defer streaks.Close()
	defer challenges.Close()

	// Build services
	ledgerService := ledgersvc.NewService(ledgers)
	coinService := wallet.NewCoinService(ledgerService)
	stampService := wallet.NewStampService(ledgerService)
	capService := dailycap.NewService(ledgerService, cfg.DailySpendLimit)
	streakService := streaksvc.NewService(streaks)
	challengeService := challenge.NewService(challenge.DefaultCatalog(), challenges, coinService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional ledger history archival
	if cfg.ESEnabled {
		archiveCfg := ledgerRepo.DefaultArchiveConfig()
		archiveCfg.URL = cfg.ESURL
		archiveCfg.Username = cfg.ESUsername
		archiveCfg.Password = cfg.ESPassword
		archiveCfg.IndexPrefix = cfg.ESIndexPrefix
		archiveCfg.RetentionPeriod = time.Duration(cfg.ESRetentionDays) * 24 * time.Hour

		archiver, err := ledgerRepo.NewElasticsearchArchiver(ledgers, archiveCfg)
		if err != nil {
			log.Printf("Failed to initialize Elasticsearch archiver: %v", err)
			log.Println("Continuing without history archival")
		} else {
			archival := scheduler.NewArchivalScheduler(archiver, cfg.ArchiveInterval)
			archival.Start(ctx)
			defer archival.Stop()
		}
	}

	// Start the HTTP server
	server := api.NewServer(coinService, stampService, capService, streakService, challengeService)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Handler(),
	}

	go func() {
		log.Printf("Economy API listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
}
