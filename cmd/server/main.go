// Package main provides the unified server that runs all components together:
// - Ingestion (continuous): scan API polling feeding the event store
// - Recompute (scheduled): daily series and period rollups per scope
// - Read API: daily records, period aggregates, trailing 24h snapshot
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/evm"
	"wallet-pnl-lab/internal/ingestion"
	"wallet-pnl-lab/internal/observability"
	"wallet-pnl-lab/internal/orchestrator"
	"wallet-pnl-lab/internal/storage"
	chstore "wallet-pnl-lab/internal/storage/clickhouse"
	"wallet-pnl-lab/internal/storage/memory"
	"wallet-pnl-lab/internal/storage/migrations"
	pgstore "wallet-pnl-lab/internal/storage/postgres"
)

// Server holds all components of the unified service.
type Server struct {
	// Configuration
	wallet            string
	token             string
	recomputeInterval time.Duration
	trailingTTL       time.Duration
	location          *time.Location

	// Stores
	stores *allStores

	// Components
	orch   *orchestrator.Orchestrator
	logger *log.Logger

	// State
	mu               sync.Mutex
	lastRecomputeRun time.Time
	recomputeRunning bool
	ingestionStarted time.Time
	recomputeRuns    int

	// Trailing snapshot cache
	trailingMu    sync.Mutex
	trailingCache map[string]cachedTrailing
}

type cachedTrailing struct {
	snap    domain.TrailingSnapshot
	expires time.Time
}

// allStores holds all storage implementations.
type allStores struct {
	events  storage.EventStore
	daily   storage.DailyRecordStore
	periods storage.PeriodAggregateStore
}

func main() {
	loadEnvFile()

	wallet := flag.String("wallet", os.Getenv("WALLET"), "Wallet address to track")
	token := flag.String("token", os.Getenv("TOKEN"), "ERC-20 token contract address")
	scanURL := flag.String("scan-url", os.Getenv("SCAN_API_URL"), "Scan API base URL")
	scanAPIKey := flag.String("scan-api-key", os.Getenv("SCAN_API_KEY"), "Scan API key")
	chainID := flag.String("chain-id", os.Getenv("CHAIN_ID"), "Chain ID for multichain scan APIs")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("RPC_ENDPOINT"), "EVM RPC endpoint for calldata resolution")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of databases")
	httpAddr := flag.String("http-addr", ":8080", "HTTP API listen address")
	pollInterval := flag.Duration("poll-interval", time.Minute, "Ingestion polling interval")
	recomputeInterval := flag.Duration("recompute-interval", 5*time.Minute, "Recompute interval")
	trailingTTL := flag.Duration("trailing-ttl", 30*time.Second, "Trailing snapshot cache TTL")
	timezone := flag.String("timezone", "UTC", "Timezone for day bucketing")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *wallet == "" {
		logger.Fatal("--wallet is required")
	}
	if *scanURL == "" || *token == "" {
		logger.Fatal("--scan-url and --token are required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		logger.Fatalf("Invalid timezone %q: %v", *timezone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server := &Server{
		wallet:            *wallet,
		token:             *token,
		recomputeInterval: *recomputeInterval,
		trailingTTL:       *trailingTTL,
		location:          loc,
		stores:            stores,
		logger:            logger,
		trailingCache:     make(map[string]cachedTrailing),
	}
	server.orch = orchestrator.New(orchestrator.Options{
		EventStore:  stores.events,
		DailyStore:  stores.daily,
		PeriodStore: stores.periods,
		Wallet:      *wallet,
		Location:    loc,
		Verbose:     *verbose,
	})

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
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

	go server.startHTTPServer(*httpAddr)

	err = server.Run(ctx, *scanURL, *scanAPIKey, *chainID, *rpcEndpoint, *pollInterval)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
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

// Run starts the unified server with all components.
func (s *Server) Run(ctx context.Context, scanURL, scanAPIKey, chainID, rpcEndpoint string, pollInterval time.Duration) error {
	s.logger.Println("Starting unified server...")

	errCh := make(chan error, 2)

	go func() {
		err := s.runIngestion(ctx, scanURL, scanAPIKey, chainID, rpcEndpoint, pollInterval)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("ingestion: %w", err)
		}
	}()

	go func() {
		err := s.runRecomputeScheduler(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("recompute scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runIngestion runs continuous data ingestion.
func (s *Server) runIngestion(ctx context.Context, scanURL, scanAPIKey, chainID, rpcEndpoint string, pollInterval time.Duration) error {
	s.logger.Println("Starting ingestion...")

	var opts []ingestion.ScanOption
	if chainID != "" {
		opts = append(opts, ingestion.WithChainID(chainID))
	}
	source := ingestion.NewScanSource(scanURL, scanAPIKey, opts...)

	var resolver ingestion.InputResolver
	if rpcEndpoint != "" {
		resolver = ingestion.NewRPCInputResolver(evm.NewHTTPClient(rpcEndpoint))
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:       source,
		Resolver:     resolver,
		EventStore:   s.stores.events,
		Wallet:       s.wallet,
		Token:        s.token,
		PollInterval: pollInterval,
		Logger:       log.New(os.Stdout, "[ingestion] ", log.LstdFlags),
	})

	s.mu.Lock()
	s.ingestionStarted = time.Now()
	s.mu.Unlock()

	s.logger.Println("Ingestion started")
	return runner.Run(ctx)
}

// runRecomputeScheduler runs recompute on schedule.
func (s *Server) runRecomputeScheduler(ctx context.Context) error {
	s.logger.Printf("Starting recompute scheduler (interval: %v)...", s.recomputeInterval)

	// Run immediately on start
	s.runRecompute(ctx)

	ticker := time.NewTicker(s.recomputeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runRecompute(ctx)
		}
	}
}

// runRecompute executes one recompute pass.
func (s *Server) runRecompute(ctx context.Context) {
	s.mu.Lock()
	if s.recomputeRunning {
		s.mu.Unlock()
		s.logger.Println("Recompute already running, skipping...")
		return
	}
	s.recomputeRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.recomputeRunning = false
		s.lastRecomputeRun = time.Now()
		s.recomputeRuns++
		s.mu.Unlock()
	}()

	s.logger.Println("Running recompute...")
	start := time.Now()

	result, err := s.orch.Run(ctx)
	if err != nil {
		s.logger.Printf("Recompute error: %v", err)
		observability.RecordRecomputeRun(0, 0, 0, 1, time.Since(start).Seconds(), time.Now().Unix())
		return
	}

	s.logger.Printf("Recompute completed in %v: %d scopes, %d daily records, %d aggregates",
		time.Since(start), result.ScopesProcessed, result.RecordsWritten, result.AggregatesWritten)
	for _, e := range result.Errors {
		s.logger.Printf("  recompute error: %s", e)
	}

	observability.RecordRecomputeRun(result.ScopesProcessed, result.RecordsWritten,
		result.AggregatesWritten, len(result.Errors), time.Since(start).Seconds(), time.Now().Unix())
}

// startHTTPServer starts the HTTP server for the read API.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.instrument("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.instrument("/status", s.handleStatus))
	mux.HandleFunc("/api/daily", s.instrument("/api/daily", s.handleDaily))
	mux.HandleFunc("/api/periods/", s.instrument("/api/periods", s.handlePeriods))
	mux.HandleFunc("/api/trailing", s.instrument("/api/trailing", s.handleTrailing))

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// statusWriter captures the response status for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with request metrics.
func (s *Server) instrument(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		observability.RecordHTTPRequest(path, strconv.Itoa(sw.status), time.Since(start).Seconds())
	}
}

// requestScope resolves the scope from query parameters, defaulting to the
// configured wallet.
func (s *Server) requestScope(r *http.Request) domain.Scope {
	scope := domain.Scope{
		Wallet:  r.URL.Query().Get("wallet"),
		Account: r.URL.Query().Get("account"),
	}
	if scope.Wallet == "" {
		scope.Wallet = s.wallet
	}
	return scope
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// dailyRecordResponse is the JSON shape of one daily series row.
type dailyRecordResponse struct {
	Date          string  `json:"date"`
	NetFlow       float64 `json:"net_flow"`
	TradePnl      float64 `json:"trade_pnl"`
	CumulativePnl float64 `json:"cumulative_pnl"`
	Capital       float64 `json:"capital"`
	ReturnPct     float64 `json:"return_pct"`
	OpCount       int     `json:"op_count"`
	GrossGain     float64 `json:"gross_gain"`
	GrossLoss     float64 `json:"gross_loss"`
}

// handleDaily returns the scope's daily series, date ascending.
func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	scope := s.requestScope(r)

	records, err := s.stores.daily.GetByScope(r.Context(), scope)
	if err != nil {
		s.logger.Printf("daily query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	rows := make([]dailyRecordResponse, 0, len(records))
	for _, rec := range records {
		rows = append(rows, dailyRecordResponse{
			Date:          rec.Date.String(),
			NetFlow:       rec.NetFlow,
			TradePnl:      rec.TradePnl,
			CumulativePnl: rec.CumulativePnl,
			Capital:       rec.Capital,
			ReturnPct:     rec.ReturnPct,
			OpCount:       rec.OpCount,
			GrossGain:     rec.GrossGain,
			GrossLoss:     rec.GrossLoss,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":  scope.Wallet,
		"account": scope.Account,
		"daily":   rows,
	})
}

// periodAggregateResponse is the JSON shape of one rollup row.
type periodAggregateResponse struct {
	PeriodKey        string  `json:"period_key"`
	StartDate        string  `json:"start_date"`
	EndDate          string  `json:"end_date"`
	NetFlow          float64 `json:"net_flow"`
	PeriodPnl        float64 `json:"period_pnl"`
	CumulativePnl    float64 `json:"cumulative_pnl"`
	CapitalStart     float64 `json:"capital_start"`
	CapitalEnd       float64 `json:"capital_end"`
	ChainedReturnPct float64 `json:"chained_return_pct"`
	OpCount          int     `json:"op_count"`
	GrossGain        float64 `json:"gross_gain"`
	GrossLoss        float64 `json:"gross_loss"`
}

// handlePeriods returns one granularity's rollup rows, period key ascending.
func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	granularity := domain.Granularity(strings.TrimPrefix(r.URL.Path, "/api/periods/"))
	if !granularity.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown granularity %q", granularity))
		return
	}

	scope := s.requestScope(r)
	aggs, err := s.stores.periods.GetByScopeGranularity(r.Context(), scope, granularity)
	if err != nil {
		s.logger.Printf("periods query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	rows := make([]periodAggregateResponse, 0, len(aggs))
	for _, a := range aggs {
		rows = append(rows, periodAggregateResponse{
			PeriodKey:        a.PeriodKey,
			StartDate:        a.StartDate.String(),
			EndDate:          a.EndDate.String(),
			NetFlow:          a.NetFlow,
			PeriodPnl:        a.PeriodPnl,
			CumulativePnl:    a.CumulativePnlAtEnd,
			CapitalStart:     a.CapitalStart,
			CapitalEnd:       a.CapitalEnd,
			ChainedReturnPct: a.ChainedReturnPct,
			OpCount:          a.OpCount,
			GrossGain:        a.GrossGainSum,
			GrossLoss:        a.GrossLossSum,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":      scope.Wallet,
		"account":     scope.Account,
		"granularity": granularity.String(),
		"periods":     rows,
	})
}

// trailingResponse is the JSON shape of the 24h snapshot.
type trailingResponse struct {
	Pnl24h       float64 `json:"pnl_24h"`
	Pct24h       float64 `json:"pct_24h"`
	Ops24h       int     `json:"ops_24h"`
	GrossGain24h float64 `json:"gross_gain_24h"`
	GrossLoss24h float64 `json:"gross_loss_24h"`
}

// handleTrailing returns the trailing 24h snapshot, cached briefly since it is
// derived from the full event history on every miss.
func (s *Server) handleTrailing(w http.ResponseWriter, r *http.Request) {
	scope := s.requestScope(r)
	key := scope.String()

	s.trailingMu.Lock()
	cached, ok := s.trailingCache[key]
	s.trailingMu.Unlock()

	snap := cached.snap
	if !ok || time.Now().After(cached.expires) {
		var err error
		snap, err = s.orch.Trailing(r.Context(), scope, time.Now().Unix())
		if err != nil {
			s.logger.Printf("trailing query failed: %v", err)
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		s.trailingMu.Lock()
		s.trailingCache[key] = cachedTrailing{snap: snap, expires: time.Now().Add(s.trailingTTL)}
		s.trailingMu.Unlock()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":  scope.Wallet,
		"account": scope.Account,
		"trailing": trailingResponse{
			Pnl24h:       snap.Pnl24h,
			Pct24h:       snap.Pct24h,
			Ops24h:       snap.Ops24h,
			GrossGain24h: snap.GrossGain24h,
			GrossLoss24h: snap.GrossLoss24h,
		},
	})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status           string    `json:"status"`
	Uptime           string    `json:"uptime"`
	IngestionStarted time.Time `json:"ingestion_started"`
	LastRecomputeRun time.Time `json:"last_recompute_run,omitempty"`
	RecomputeRuns    int       `json:"recompute_runs"`
	RecomputeRunning bool      `json:"recompute_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:           "running",
		Uptime:           time.Since(s.ingestionStarted).String(),
		IngestionStarted: s.ingestionStarted,
		LastRecomputeRun: s.lastRecomputeRun,
		RecomputeRuns:    s.recomputeRuns,
		RecomputeRunning: s.recomputeRunning,
	}

	writeJSON(w, http.StatusOK, resp)
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
