// Package main provides the standalone ingestion entry point.
// Modes: once (single fetch-classify-store pass) or live (polling loop,
// optionally nudged by WebSocket transfer notifications).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wallet-pnl-lab/internal/evm"
	"wallet-pnl-lab/internal/ingestion"
	"wallet-pnl-lab/internal/observability"
	"wallet-pnl-lab/internal/storage"
	"wallet-pnl-lab/internal/storage/memory"
	"wallet-pnl-lab/internal/storage/migrations"
	pgstore "wallet-pnl-lab/internal/storage/postgres"
)

// ERC-20 Transfer(address,address,uint256) event topic.
const transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

func main() {
	loadEnvFile()

	mode := flag.String("mode", "live", "Ingestion mode: live or once")
	wallet := flag.String("wallet", os.Getenv("WALLET"), "Wallet address to ingest")
	token := flag.String("token", os.Getenv("TOKEN"), "ERC-20 token contract address")
	scanURL := flag.String("scan-url", os.Getenv("SCAN_API_URL"), "Scan API base URL")
	scanAPIKey := flag.String("scan-api-key", os.Getenv("SCAN_API_KEY"), "Scan API key")
	chainID := flag.String("chain-id", os.Getenv("CHAIN_ID"), "Chain ID for multichain scan APIs")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("RPC_ENDPOINT"), "EVM RPC endpoint for calldata resolution")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("WS_ENDPOINT"), "EVM WebSocket endpoint for live transfer notifications (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	pollInterval := flag.Duration("poll-interval", time.Minute, "Polling interval in live mode")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	if *wallet == "" || *token == "" || *scanURL == "" {
		logger.Fatal("--wallet, --token and --scan-url are required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	events, cleanup, err := createEventStore(ctx, *postgresDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create event store: %v", err)
	}
	defer cleanup()

	runner := newRunner(events, *wallet, *token, *scanURL, *scanAPIKey, *chainID, *rpcEndpoint, *pollInterval, logger)

	switch *mode {
	case "once":
		err = runOnce(ctx, runner, events, *wallet, logger)
	case "live":
		err = runLive(ctx, runner, events, *wallet, *token, *wsEndpoint, *pollInterval, logger)
	default:
		logger.Fatalf("Unknown mode: %s", *mode)
	}

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Ingestion error: %v", err)
	}
	logger.Println("Shutdown complete")
}

func newRunner(events storage.EventStore, wallet, token, scanURL, apiKey, chainID, rpcEndpoint string, pollInterval time.Duration, logger *log.Logger) *ingestion.Runner {
	var opts []ingestion.ScanOption
	if chainID != "" {
		opts = append(opts, ingestion.WithChainID(chainID))
	}
	source := ingestion.NewScanSource(scanURL, apiKey, opts...)

	var resolver ingestion.InputResolver
	if rpcEndpoint != "" {
		resolver = ingestion.NewRPCInputResolver(evm.NewHTTPClient(rpcEndpoint))
	}

	return ingestion.NewRunner(ingestion.RunnerOptions{
		Source:       source,
		Resolver:     resolver,
		EventStore:   events,
		Wallet:       wallet,
		Token:        token,
		PollInterval: pollInterval,
		Logger:       logger,
	})
}

// runOnce executes a single ingestion cycle.
func runOnce(ctx context.Context, runner *ingestion.Runner, events storage.EventStore, wallet string, logger *log.Logger) error {
	result, err := runner.RunOnce(ctx)
	if err != nil {
		observability.RecordIngestError()
		return err
	}
	recordCycle(ctx, result, events, wallet)
	logger.Printf("Ingested %d/%d transfers (%d known, %d malformed)",
		result.Inserted, result.Fetched, result.Skipped, result.Malformed)
	return nil
}

// runLive polls on an interval. When a WebSocket endpoint is configured, a
// transfer log notification for the token triggers an immediate cycle instead
// of waiting out the interval; duplicate-skipping makes overlapping cycles
// harmless.
func runLive(ctx context.Context, runner *ingestion.Runner, events storage.EventStore, wallet, token, wsEndpoint string, pollInterval time.Duration, logger *log.Logger) error {
	nudge := make(chan struct{}, 1)

	if wsEndpoint != "" {
		ws, err := evm.NewWSClient(ctx, wsEndpoint, nil)
		if err != nil {
			return err
		}
		defer ws.Close()

		notifications, err := ws.SubscribeLogs(ctx, evm.LogsFilter{
			Addresses: []string{token},
			Topics:    []string{transferTopic},
		})
		if err != nil {
			return err
		}
		logger.Printf("Subscribed to transfer logs for %s", token)

		go func() {
			for range notifications {
				select {
				case nudge <- struct{}{}:
				default:
				}
			}
		}()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		result, err := runner.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.RecordIngestError()
			logger.Printf("Ingestion cycle failed: %v", err)
		} else {
			recordCycle(ctx, result, events, wallet)
			if result.Fetched > 0 {
				logger.Printf("Ingested %d/%d transfers (%d known, %d malformed)",
					result.Inserted, result.Fetched, result.Skipped, result.Malformed)
			}
		}

		select {
		case <-ctx.Done():
			logger.Println("Ingestion stopping...")
			return ctx.Err()
		case <-ticker.C:
		case <-nudge:
			logger.Println("Transfer notification received, running cycle early")
		}
	}
}

// recordCycle publishes cycle metrics.
func recordCycle(ctx context.Context, result *ingestion.Result, events storage.EventStore, wallet string) {
	observability.RecordIngestCycle(result.Fetched, result.Inserted, result.Skipped, result.Malformed, time.Now().Unix())
	for kind, n := range result.ByKind {
		observability.RecordEventKind(string(kind), n)
	}
	if block, err := events.LastBlock(ctx, wallet); err == nil {
		observability.UpdateLastBlock(block)
	}
}

// createEventStore creates the event store backend.
func createEventStore(ctx context.Context, postgresDSN string, useMemory bool) (storage.EventStore, func(), error) {
	if useMemory {
		return memory.NewEventStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgstore.NewEventStore(pool), pool.Close, nil
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
