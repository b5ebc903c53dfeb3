package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/switchboard-xyz/usdy-example/pkg/logging"
	"github.com/switchboard-xyz/usdy-example/pkg/server/sources"
)

// Panel is the set of sources that price one symbol.
type Panel struct {
	Symbol    string
	Market    []sources.Source
	Reference sources.Source
}

// PriceSet is the canonical price pair of one symbol for one cycle.
type PriceSet struct {
	Symbol          string          `json:"symbol"`
	Reference       decimal.Decimal `json:"reference"`
	Market          decimal.Decimal `json:"market"`
	ReferenceLedger uint64          `json:"reference_ledger"`
	MarketLedger    uint64          `json:"market_ledger"`
	Quotes          []sources.Quote `json:"quotes"`
	CollectedAt     time.Time       `json:"collected_at"`
}

// Engine fans out to every configured source and reduces each panel.
// Market panels use the median reducer; references use pass-through.
type Engine struct {
	panels       []Panel
	market       Reducer
	reference    Reducer
	fetchTimeout time.Duration
	logger       *logging.Logger
}

// NewEngine creates an engine over the given panels.
func NewEngine(panels []Panel, fetchTimeout time.Duration, logger *logging.Logger) (*Engine, error) {
	for _, p := range panels {
		if len(p.Market) == 0 || p.Reference == nil {
			return nil, fmt.Errorf("%w: %s", ErrEmptyPanel, p.Symbol)
		}
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	market, err := NewReducer(ModeMedian, logger)
	if err != nil {
		return nil, err
	}
	reference, err := NewReducer(ModePassthrough, logger)
	if err != nil {
		return nil, err
	}
	return &Engine{
		panels:       panels,
		market:       market,
		reference:    reference,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}, nil
}

// Sources returns every distinct source across all panels.
func (e *Engine) Sources() []sources.Source {
	seen := make(map[string]bool)
	var out []sources.Source
	add := func(s sources.Source) {
		if !seen[s.Name()] {
			seen[s.Name()] = true
			out = append(out, s)
		}
	}
	for _, p := range e.panels {
		for _, s := range p.Market {
			add(s)
		}
		add(p.Reference)
	}
	return out
}

// Initialize prepares every source.
func (e *Engine) Initialize(ctx context.Context) error {
	for _, s := range e.Sources() {
		if err := s.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize %s: %w", s.Name(), err)
		}
	}
	return nil
}

// Close releases every source.
func (e *Engine) Close() {
	for _, s := range e.Sources() {
		if err := s.Close(); err != nil {
			e.logger.Warn("Failed to close source", "source", s.Name(), "error", err)
		}
	}
}

// Collect fetches all quotes concurrently and reduces each panel. If any fetch fails
// the cycle is aborted and no price set is returned.
func (e *Engine) Collect(ctx context.Context) ([]PriceSet, error) {
	quotes, err := e.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sets := make([]PriceSet, 0, len(e.panels))
	for _, p := range e.panels {
		set, err := e.reducePanel(p, quotes)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Symbol, err)
		}
		set.CollectedAt = now
		sets = append(sets, set)
	}
	return sets, nil
}

func (e *Engine) fetchAll(ctx context.Context) (map[string]sources.Quote, error) {
	srcs := e.Sources()
	quotes := make([]sources.Quote, len(srcs))
	errs := make([]error, len(srcs))

	var wg sync.WaitGroup
	for i, s := range srcs {
		wg.Add(1)
		go func(i int, s sources.Source) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
			defer cancel()
			q, err := s.Fetch(fetchCtx)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
				return
			}
			quotes[i] = q
		}(i, s)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		e.logger.Warn("Aggregation cycle aborted", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCycleAborted, err)
	}

	byName := make(map[string]sources.Quote, len(srcs))
	for i, s := range srcs {
		byName[s.Name()] = quotes[i]
	}
	return byName, nil
}

func (e *Engine) reducePanel(p Panel, quotes map[string]sources.Quote) (PriceSet, error) {
	set := PriceSet{Symbol: p.Symbol}

	marketValues := make([]decimal.Decimal, 0, len(p.Market))
	for _, s := range p.Market {
		q := quotes[s.Name()]
		if q.Symbol != p.Symbol {
			return set, fmt.Errorf("%w: %s quoted %s", ErrSymbolMismatch, s.Name(), q.Symbol)
		}
		marketValues = append(marketValues, ToDecimal(q.Raw, q.Decimals))
		set.Quotes = append(set.Quotes, q)
	}

	ref := quotes[p.Reference.Name()]
	if ref.Symbol != p.Symbol {
		return set, fmt.Errorf("%w: %s quoted %s", ErrSymbolMismatch, p.Reference.Name(), ref.Symbol)
	}
	set.Quotes = append(set.Quotes, ref)

	var err error
	if set.Market, err = e.market.Reduce(marketValues); err != nil {
		return set, err
	}
	if set.Reference, err = e.reference.Reduce([]decimal.Decimal{ToDecimal(ref.Raw, ref.Decimals)}); err != nil {
		return set, err
	}
	if set.MarketLedger, err = ToLedger(set.Market); err != nil {
		return set, err
	}
	if set.ReferenceLedger, err = ToLedger(set.Reference); err != nil {
		return set, err
	}

	e.logger.Info("Prices aggregated",
		"symbol", p.Symbol,
		"market", set.Market.String(),
		"reference", set.Reference.String(),
		"market_sources", len(marketValues))

	return set, nil
}
