// Command import performs a one-shot migration of a legacy client-side
// export into the server-authoritative economy. Wallets are seeded through
// RegisterIfMissing and streaks through Seed, so re-running an import
// against the same database is harmless.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fadedpez/caminata/internal/config"
	ledgerRepo "github.com/fadedpez/caminata/pkg/repositories/ledger"
	streakRepo "github.com/fadedpez/caminata/pkg/repositories/streak"
	ledgersvc "github.com/fadedpez/caminata/pkg/services/ledger"
	streaksvc "github.com/fadedpez/caminata/pkg/services/streak"
	"github.com/fadedpez/caminata/pkg/services/wallet"
)

// exportFile is the shape of the legacy client export
type exportFile struct {
	Accounts []exportAccount `json:"accounts"`
}

type exportAccount struct {
	AccountID    string        `json:"account_id"`
	CoinBalance  int64         `json:"coin_balance"`
	StampBalance int64         `json:"stamp_balance"`
	Streak       *exportStreak `json:"streak,omitempty"`
}

type exportStreak struct {
	Current        int    `json:"current"`
	Longest        int    `json:"longest"`
	LastActiveDate string `json:"last_active_date,omitempty"`
}

func main() {
	filePath := flag.String("file", "", "Path to the legacy export JSON file")
	flag.Parse()

	if *filePath == "" {
		fmt.Println("Usage: import -file <export.json>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("Error reading export file: %v", err)
	}

	var export exportFile
	if err := json.Unmarshal(raw, &export); err != nil {
		log.Fatalf("Error parsing export file: %v", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "caminata.db")
	ledgers, err := ledgerRepo.NewSQLiteRepository(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize ledger repository: %v", err)
	}
	defer ledgers.Close()

	streaks, err := streakRepo.NewSQLiteRepository(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize streak repository: %v", err)
	}
	defer streaks.Close()

	ledgerService := ledgersvc.NewService(ledgers)
	coins := wallet.NewCoinService(ledgerService)
	stamps := wallet.NewStampService(ledgerService)
	streakService := streaksvc.NewService(streaks)

	ctx := context.Background()
	imported, skipped := 0, 0

	for _, account := range export.Accounts {
		if account.AccountID == "" {
			log.Println("Skipping record with empty account_id")
			skipped++
			continue
		}

		_, coinCreated, err := coins.RegisterIfMissing(ctx, account.AccountID, account.CoinBalance)
		if err != nil {
			log.Fatalf("Error importing coin wallet for %s: %v", account.AccountID, err)
		}

		_, stampCreated, err := stamps.RegisterIfMissing(ctx, account.AccountID, account.StampBalance)
		if err != nil {
			log.Fatalf("Error importing stamp wallet for %s: %v", account.AccountID, err)
		}

		if account.Streak != nil {
			_, err := streakService.Seed(ctx, account.AccountID,
				account.Streak.Current, account.Streak.Longest, account.Streak.LastActiveDate)
			if err != nil {
				log.Fatalf("Error importing streak for %s: %v", account.AccountID, err)
			}
		}

		if coinCreated || stampCreated {
			imported++
		} else {
			skipped++
		}
	}

	log.Printf("Import complete: %d accounts imported, %d already present or skipped", imported, skipped)
}
