package main

import (
	"context"
	"flag"
	"os"

	"cardledger/internal/backfill"
	"cardledger/internal/cli"
	applog "cardledger/internal/log"
)

func main() {
	merchantsPath := flag.String("merchants", "", "path to merchants CSV (id,name,category)")
	transactionsPath := flag.String("transactions", "", "path to transactions CSV (customer_id,merchant_id,amount_cents,is_card,date)")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentBackfill)

	if *merchantsPath == "" && *transactionsPath == "" {
		logger.Error("Nothing to do: pass -merchants and/or -transactions")
		flag.Usage()
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitStorage(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	loader := backfill.NewLoader(repo)
	ctx := context.Background()

	// Merchants load first: transactions reference them.
	if *merchantsPath != "" {
		sum, err := loader.LoadMerchants(ctx, *merchantsPath)
		if err != nil {
			logger.Error("Merchant backfill failed", "error", err, "file", *merchantsPath)
			os.Exit(1)
		}
		logger.Info("Merchants loaded", "loaded", sum.Loaded, "skipped", sum.Skipped)
	}

	if *transactionsPath != "" {
		sum, err := loader.LoadTransactions(ctx, *transactionsPath)
		if err != nil {
			logger.Error("Transaction backfill failed", "error", err, "file", *transactionsPath)
			os.Exit(1)
		}
		logger.Info("Transactions loaded", "loaded", sum.Loaded)
	}
}
