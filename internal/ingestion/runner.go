package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

// Runner pulls token transfers for a wallet, classifies them and appends the
// resulting events to the event store. Each cycle resumes from the highest
// block already stored, so restarts never re-fetch the full history.
type Runner struct {
	source       TransferSource
	resolver     InputResolver
	eventStore   storage.EventStore
	classifier   *Classifier
	wallet       string
	token        string
	pollInterval time.Duration
	logger       *log.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source       TransferSource
	Resolver     InputResolver // optional, fills in calldata when the source omits it
	EventStore   storage.EventStore
	Wallet       string
	Token        string
	PollInterval time.Duration // Default: 1 minute
	Logger       *log.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = time.Minute
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		source:       opts.Source,
		resolver:     opts.Resolver,
		eventStore:   opts.EventStore,
		classifier:   NewClassifier(opts.Wallet),
		wallet:       opts.Wallet,
		token:        opts.Token,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Result summarizes one ingestion cycle.
type Result struct {
	Fetched   int // transfers returned by the source
	Inserted  int // new events stored
	Skipped   int // already-known events
	Malformed int // transfers that could not be classified at all

	// ByKind counts inserted events per operation kind.
	ByKind map[domain.OpKind]int
}

// RunOnce performs a single fetch-classify-store cycle.
func (r *Runner) RunOnce(ctx context.Context) (*Result, error) {
	lastBlock, err := r.eventStore.LastBlock(ctx, r.wallet)
	if err != nil {
		return nil, fmt.Errorf("load block cursor: %w", err)
	}

	fromBlock := lastBlock
	if fromBlock > 0 {
		fromBlock++
	}

	transfers, err := r.source.Fetch(ctx, r.wallet, r.token, fromBlock)
	if err != nil {
		return nil, fmt.Errorf("fetch transfers: %w", err)
	}

	result := &Result{
		Fetched: len(transfers),
		ByKind:  make(map[domain.OpKind]int),
	}
	for _, t := range transfers {
		if t == nil || t.Hash == "" {
			result.Malformed++
			continue
		}

		if t.Input == "" && r.resolver != nil {
			input, err := r.resolver.TransactionInput(ctx, t.Hash)
			if err != nil {
				r.logger.Printf("resolve input for %s: %v", t.Hash, err)
			} else {
				t.Input = input
			}
		}

		event := r.classifier.Classify(t)
		if err := r.eventStore.Insert(ctx, event); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("insert event %s: %w", event.EventID, err)
		}
		result.Inserted++
		result.ByKind[event.Kind]++
	}

	return result, nil
}

// Run ingests continuously until the context is cancelled. The first cycle
// starts immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("Starting ingestion for wallet %s, poll interval: %v", r.wallet, r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		result, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Printf("Ingestion cycle failed: %v", err)
		} else if result.Fetched > 0 {
			r.logger.Printf("Ingested %d/%d transfers (%d known, %d malformed)",
				result.Inserted, result.Fetched, result.Skipped, result.Malformed)
		}

		select {
		case <-ctx.Done():
			r.logger.Println("Ingestion stopping...")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
