package main

import (
	"context"
	"os"
	"strconv"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"motime/domain"
	"motime/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}
	quotesTable := os.Getenv("QUOTES_TABLE")

	ctx := context.Background()

	if err := storage.EnsureTables(ctx, connStr, []string{
		os.Getenv("DAYS_TABLE"),
		os.Getenv("USERS_TABLE"),
		os.Getenv("ACCOUNTS_TABLE"),
		quotesTable,
	}); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	if seedFile := os.Getenv("QUOTES_SEED_FILE"); seedFile != "" {
		if quotesTable == "" {
			log.Fatal("QUOTES_SEED_FILE set without QUOTES_TABLE")
		}
		data, err := os.ReadFile(seedFile)
		if err != nil {
			log.Fatalf("read quotes seed: %v", err)
		}
		var quotes []domain.Quote
		if err := sonic.Unmarshal(data, &quotes); err != nil {
			log.Fatalf("parse quotes seed: %v", err)
		}
		if err := storage.SeedQuotes(ctx, connStr, quotesTable, quotes); err != nil {
			log.Fatalf("seed quotes: %v", err)
		}
		log.Infof("seeded %d quotes", len(quotes))
	}

	log.Info("storage init complete")
}
