package attribution

// runner.go — orchestrates a full attribution run.
//
// Token fetches go through the cache concurrently (one goroutine per token,
// the HTTP client's rate limiter paces them). A failed token is logged and
// skipped — downstream stages tolerate partial data. Model processing is
// sequential: compounding carries state across decisions.

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polyperf/internal/cache"
	"github.com/alejandrodnm/polyperf/internal/domain"
	"github.com/alejandrodnm/polyperf/internal/ports"
)

// Config controls a run.
type Config struct {
	Normalize          string // none | legacy | kelly
	BrierMode          string // squared | absolute
	CustomHorizonDays  []int
	CumulativeBaseline float64
	ForceRefresh       bool
}

// Runner wires the cache, the decision source and the reporters together.
type Runner struct {
	cache    *cache.Client
	source   ports.DecisionSource
	metadata ports.MarketMetadataProvider // optional, may be nil
	clock    ports.Clock
	cfg      Config
}

// NewRunner creates a Runner with all dependencies injected. The config is
// taken as-is: defaults are the config loader's responsibility.
func NewRunner(c *cache.Client, source ports.DecisionSource, metadata ports.MarketMetadataProvider, clock ports.Clock, cfg Config) *Runner {
	return &Runner{cache: c, source: source, metadata: metadata, clock: clock, cfg: cfg}
}

// Run executes the full pipeline and returns the per-model results.
func (r *Runner) Run(ctx context.Context) (domain.RunResult, error) {
	runID := uuid.New().String()
	start := time.Now()
	slog.Info("attribution run starting", "run_id", runID, "normalize", r.cfg.Normalize)

	byModel, err := r.source.LoadDecisions(ctx)
	if err != nil {
		return domain.RunResult{}, err
	}

	tokens := collectTokens(byModel)
	series := r.fetchSeries(ctx, tokens)
	table := Assemble(series)

	slog.Info("price table assembled",
		"run_id", runID,
		"tokens", len(tokens),
		"with_data", len(series),
		"dates", len(table.Dates),
	)

	r.normalize(byModel, table)

	enricher := NewEnricher(table, r.cfg.CustomHorizonDays)
	aggCfg := AggregateConfig{BrierMode: r.cfg.BrierMode, CumulativeBaseline: r.cfg.CumulativeBaseline}

	models := make([]string, 0, len(byModel))
	for model := range byModel {
		models = append(models, model)
	}
	sort.Strings(models)

	var performances []domain.ModelPerformance
	for _, model := range models {
		perf, err := r.processModel(enricher, model, byModel[model], aggCfg)
		if err != nil {
			if errors.Is(err, domain.ErrBoundedLoss) {
				// Hard stop for this model only: wrong numbers are worse
				// than missing numbers.
				slog.Error("fatal invariant violation, model aborted", "model", model, "err", err)
				continue
			}
			return domain.RunResult{}, err
		}
		performances = append(performances, perf)
	}

	result := domain.RunResult{
		RunID:        runID,
		GeneratedAt:  r.clock.Now(),
		Performances: performances,
		Questions:    r.resolveQuestions(ctx, tokens),
	}

	slog.Info("attribution run complete",
		"run_id", runID,
		"models", len(performances),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

// fetchSeries warms the cache for every token concurrently. Tokens whose
// fetch fails after retries are logged and omitted from the result.
func (r *Runner) fetchSeries(ctx context.Context, tokens []string) map[string]domain.Series {
	type fetchResult struct {
		token  string
		series domain.Series
		err    error
	}

	resultCh := make(chan fetchResult, len(tokens))
	var wg sync.WaitGroup

	for _, token := range tokens {
		token := token
		wg.Add(1)
		go func() {
			defer wg.Done()
			var s domain.Series
			var err error
			if r.cfg.ForceRefresh {
				s, err = r.cache.Update(ctx, token, true)
			} else {
				s, err = r.cache.Get(ctx, token, time.Time{})
			}
			resultCh <- fetchResult{token: token, series: s, err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	series := make(map[string]domain.Series, len(tokens))
	for res := range resultCh {
		if res.err != nil {
			slog.Warn("price fetch failed, market will be skipped",
				"token", res.token, "err", res.err)
			continue
		}
		if len(res.series) == 0 {
			slog.Debug("empty price series", "token", res.token)
			continue
		}
		series[res.token] = res.series
	}
	return series
}

// normalize applies the configured capital normalization in place.
func (r *Runner) normalize(byModel map[string][]domain.DecisionBatch, table Table) {
	if r.cfg.Normalize == "" || r.cfg.Normalize == NormalizeModeNone {
		return
	}

	for _, batches := range byModel {
		for bi := range batches {
			for ei := range batches[bi].Events {
				event := &batches[bi].Events[ei]
				switch r.cfg.Normalize {
				case NormalizeModeKelly:
					NormalizeKelly(event, pricesAt(table, event.Markets, batches[bi].Date))
				default:
					NormalizeLegacy(event)
				}
			}
		}
	}
}

// processModel validates ordering, enriches and aggregates one model.
func (r *Runner) processModel(enricher *Enricher, model string, batches []domain.DecisionBatch, cfg AggregateConfig) (domain.ModelPerformance, error) {
	if err := domain.ValidateBatchOrder(batches); err != nil {
		return domain.ModelPerformance{}, err
	}
	enriched, err := enricher.EnrichModel(batches)
	if err != nil {
		return domain.ModelPerformance{}, err
	}
	return Aggregate(model, enriched, cfg)
}

// resolveQuestions fetches human-readable market questions. Best effort.
func (r *Runner) resolveQuestions(ctx context.Context, tokens []string) map[string]string {
	if r.metadata == nil {
		return nil
	}
	questions, err := r.metadata.FetchMarketQuestions(ctx, tokens)
	if err != nil {
		slog.Warn("market metadata fetch failed, reports will show raw ids", "err", err)
		return nil
	}
	return questions
}

// collectTokens returns the distinct market ids across every decision.
func collectTokens(byModel map[string][]domain.DecisionBatch) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, batches := range byModel {
		for _, b := range batches {
			for _, e := range b.Events {
				for _, m := range e.Markets {
					if _, ok := seen[m.MarketID]; !ok {
						seen[m.MarketID] = struct{}{}
						tokens = append(tokens, m.MarketID)
					}
				}
			}
		}
	}
	sort.Strings(tokens)
	return tokens
}

// pricesAt looks up the raw market price at the decision date for each market.
func pricesAt(table Table, markets []domain.MarketDecision, date time.Time) map[string]float64 {
	prices := make(map[string]float64, len(markets))
	for _, m := range markets {
		if p, ok := table.At(m.MarketID, date); ok {
			prices[m.MarketID] = p
		}
	}
	return prices
}
