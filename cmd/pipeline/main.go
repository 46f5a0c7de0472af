// Package main provides the batch pipeline entry point.
// Executes: ingestion (optional) → recompute → reporting (optional)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/evm"
	"wallet-pnl-lab/internal/ingestion"
	"wallet-pnl-lab/internal/orchestrator"
	"wallet-pnl-lab/internal/reporting"
	"wallet-pnl-lab/internal/storage"
	chstore "wallet-pnl-lab/internal/storage/clickhouse"
	"wallet-pnl-lab/internal/storage/memory"
	"wallet-pnl-lab/internal/storage/migrations"
	pgstore "wallet-pnl-lab/internal/storage/postgres"
)

func main() {
	loadEnvFile()

	wallet := flag.String("wallet", os.Getenv("WALLET"), "Wallet address to process")
	token := flag.String("token", os.Getenv("TOKEN"), "ERC-20 token contract address")
	scanURL := flag.String("scan-url", os.Getenv("SCAN_API_URL"), "Scan API base URL (enables ingestion before recompute)")
	scanAPIKey := flag.String("scan-api-key", os.Getenv("SCAN_API_KEY"), "Scan API key")
	chainID := flag.String("chain-id", os.Getenv("CHAIN_ID"), "Chain ID for multichain scan APIs")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("RPC_ENDPOINT"), "EVM RPC endpoint for calldata resolution")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of databases")
	report := flag.Bool("report", false, "Generate Markdown and CSV reports after recompute")
	outputDir := flag.String("output-dir", "output", "Output directory for generated reports")
	timezone := flag.String("timezone", "UTC", "Timezone for day bucketing")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stdout, "[pipeline] ", log.LstdFlags)

	if *wallet == "" {
		logger.Fatal("--wallet is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if *useMemory && *scanURL == "" {
		logger.Fatal("--use-memory needs --scan-url: there is no stored history to recompute from")
	}

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		logger.Fatalf("Invalid timezone %q: %v", *timezone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling pipeline...\n", sig)
		cancel()
	}()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Optional ingestion pass before recompute.
	if *scanURL != "" {
		if *token == "" {
			logger.Fatal("--token is required when --scan-url is set")
		}
		if err := runIngestion(ctx, logger, stores.events, *wallet, *token, *scanURL, *scanAPIKey, *chainID, *rpcEndpoint); err != nil {
			logger.Fatalf("Ingestion failed: %v", err)
		}
	}

	fmt.Println("=== Recompute ===")
	orch := orchestrator.New(orchestrator.Options{
		EventStore:  stores.events,
		DailyStore:  stores.daily,
		PeriodStore: stores.periods,
		Wallet:      *wallet,
		Location:    loc,
		Verbose:     *verbose,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		logger.Fatalf("Recompute failed: %v", err)
	}

	fmt.Printf("Recompute completed:\n")
	fmt.Printf("  Scopes: %d\n", result.ScopesProcessed)
	fmt.Printf("  Daily records: %d\n", result.RecordsWritten)
	fmt.Printf("  Aggregates: %d\n", result.AggregatesWritten)
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}

	if *report {
		fmt.Println("\n=== Reporting ===")
		if err := generateReports(ctx, stores, *wallet, loc, *outputDir); err != nil {
			logger.Fatalf("Report generation failed: %v", err)
		}
	}
}

// allStores holds the storage implementations the pipeline needs.
type allStores struct {
	events  storage.EventStore
	daily   storage.DailyRecordStore
	periods storage.PeriodAggregateStore
}

// createStores creates event storage in PostgreSQL and analytics storage in
// ClickHouse when available, falling back to PostgreSQL for everything when no
// ClickHouse DSN is given.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			events:  memory.NewEventStore(),
			daily:   memory.NewDailyRecordStore(),
			periods: memory.NewPeriodAggregateStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	stores := &allStores{
		events:  pgstore.NewEventStore(pool),
		daily:   pgstore.NewDailyRecordStore(pool),
		periods: pgstore.NewPeriodAggregateStore(pool),
	}

	if clickhouseDSN == "" {
		return stores, pool.Close, nil
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	stores.daily = chstore.NewDailyRecordStore(chConn)
	stores.periods = chstore.NewPeriodAggregateStore(chConn)

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// runIngestion performs a single fetch-classify-store pass.
func runIngestion(ctx context.Context, logger *log.Logger, events storage.EventStore, wallet, token, scanURL, apiKey, chainID, rpcEndpoint string) error {
	fmt.Println("=== Ingestion ===")

	var opts []ingestion.ScanOption
	if chainID != "" {
		opts = append(opts, ingestion.WithChainID(chainID))
	}
	source := ingestion.NewScanSource(scanURL, apiKey, opts...)

	var resolver ingestion.InputResolver
	if rpcEndpoint != "" {
		resolver = ingestion.NewRPCInputResolver(evm.NewHTTPClient(rpcEndpoint))
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:     source,
		Resolver:   resolver,
		EventStore: events,
		Wallet:     wallet,
		Token:      token,
		Logger:     logger,
	})

	result, err := runner.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %d/%d transfers (%d known, %d malformed)\n",
		result.Inserted, result.Fetched, result.Skipped, result.Malformed)
	return nil
}

// generateReports writes the wallet report plus one report per account.
func generateReports(ctx context.Context, stores *allStores, wallet string, loc *time.Location, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	gen := reporting.NewGenerator(stores.events, stores.daily, stores.periods).WithLocation(loc)

	accounts, err := stores.events.Accounts(ctx, wallet)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	scopes := make([]domain.Scope, 0, len(accounts)+1)
	scopes = append(scopes, domain.Scope{Wallet: wallet})
	for _, account := range accounts {
		scopes = append(scopes, domain.Scope{Wallet: wallet, Account: account})
	}

	for _, scope := range scopes {
		report, err := gen.Generate(ctx, scope)
		if err != nil {
			return fmt.Errorf("generate %s: %w", scope, err)
		}

		base := scopeFileName(scope)
		mdPath := filepath.Join(outputDir, base+".md")
		if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
			return fmt.Errorf("write %s: %w", mdPath, err)
		}
		csvPath := filepath.Join(outputDir, base+"_daily.csv")
		if err := os.WriteFile(csvPath, []byte(reporting.RenderDailyCSV(report.Daily)), 0644); err != nil {
			return fmt.Errorf("write %s: %w", csvPath, err)
		}
		for _, section := range report.Periods {
			if len(section.Rows) == 0 {
				continue
			}
			periodPath := filepath.Join(outputDir, fmt.Sprintf("%s_%s.csv", base, section.Granularity))
			if err := os.WriteFile(periodPath, []byte(reporting.RenderPeriodCSV(section.Rows)), 0644); err != nil {
				return fmt.Errorf("write %s: %w", periodPath, err)
			}
		}
		fmt.Printf("  - %s\n", mdPath)
	}

	return nil
}

// scopeFileName builds a filesystem-safe base name for a scope's report files.
func scopeFileName(scope domain.Scope) string {
	name := "report_" + scope.Wallet
	if scope.Account != "" {
		name += "_" + scope.Account
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
