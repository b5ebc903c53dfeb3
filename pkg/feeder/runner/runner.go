package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/switchboard-xyz/usdy-example/pkg/config"
	"github.com/switchboard-xyz/usdy-example/pkg/feeder/oracle"
	"github.com/switchboard-xyz/usdy-example/pkg/feeder/tx"
	"github.com/switchboard-xyz/usdy-example/pkg/metrics"
	"github.com/switchboard-xyz/usdy-example/pkg/server/aggregator"
)

// State is the runner's most recent activity.
type State string

const (
	StateIdle    State = "idle"
	StateCollect State = "collect"
	StateSubmit  State = "submit"
	StateError   State = "error"
)

// Cycle triggers, used as metrics labels.
const (
	TriggerSchedule = "schedule"
	TriggerRequest  = "trigger"
	TriggerOnce     = "once"
)

// Collector produces one price set per tracked symbol.
type Collector interface {
	Collect(ctx context.Context) ([]aggregator.PriceSet, error)
}

// Broadcaster signs and submits a transaction.
type Broadcaster interface {
	BroadcastTx(ctx context.Context, req tx.BroadcastTxRequest) (solana.Signature, error)
}

// Config contains runner configuration.
type Config struct {
	ProgramID    solana.PublicKey
	Function     solana.PublicKey  // The bound writer this runner acts as
	Signer       solana.PrivateKey // Enclave signer, also the fee payer
	Schedule     string            // Cron expression, seconds field optional
	CycleTimeout time.Duration
	Triggers     <-chan struct{} // Out-of-schedule run requests; may be nil
}

// CycleResult summarizes one cycle.
type CycleResult struct {
	ID        string
	Trigger   string
	Signature solana.Signature
	Prices    []aggregator.PriceSet
	Err       error
	Finished  time.Time
}

// Runner executes refresh cycles.
type Runner struct {
	cfg         Config
	collector   Collector
	broadcaster Broadcaster
	schedule    cron.Schedule
	logger      zerolog.Logger
	now         func() time.Time

	mu    sync.RWMutex
	state State
	last  *CycleResult
}

// New creates a runner.
func New(cfg Config, collector Collector, broadcaster Broadcaster, logger zerolog.Logger) (*Runner, error) {
	if cfg.ProgramID.IsZero() || cfg.Function.IsZero() {
		return nil, fmt.Errorf("program and function accounts are required")
	}
	if len(cfg.Signer) == 0 {
		return nil, fmt.Errorf("enclave signer is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "*/30 * * * * *"
	}
	schedule, err := config.ScheduleParser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, cfg.Schedule, err)
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = time.Minute
	}

	return &Runner{
		cfg:         cfg,
		collector:   collector,
		broadcaster: broadcaster,
		schedule:    schedule,
		logger: logger.With().
			Str("component", "runner").
			Str("function", cfg.Function.String()).
			Logger(),
		now:   time.Now,
		state: StateIdle,
	}, nil
}

// Start runs cycles on schedule and on every trigger until ctx is done.
// Cycles may overlap.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info().
		Str("schedule", r.cfg.Schedule).
		Str("enclave_signer", r.cfg.Signer.PublicKey().String()).
		Bool("triggerable", r.cfg.Triggers != nil).
		Msg("Starting function runner")

	c := cron.New(cron.WithParser(config.ScheduleParser))
	c.Schedule(r.schedule, cron.FuncJob(func() {
		r.RunCycle(ctx, TriggerSchedule)
	}))
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Function runner stopped")
			return ctx.Err()

		case _, ok := <-r.cfg.Triggers:
			if !ok {
				r.cfg.Triggers = nil
				continue
			}
			r.logger.Info().Msg("Function triggered, running cycle")
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.RunCycle(ctx, TriggerRequest)
			}()
		}
	}
}

// RunCycle performs one collect, build and submit pass. Failures are logged and
// counted; nothing is submitted for a failed cycle.
func (r *Runner) RunCycle(ctx context.Context, trigger string) *CycleResult {
	start := r.now()
	res := &CycleResult{ID: uuid.NewString(), Trigger: trigger}
	log := r.logger.With().Str("cycle_id", res.ID).Str("trigger", trigger).Logger()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.CycleTimeout)
	defer cancel()

	res.Signature, res.Prices, res.Err = r.cycle(ctx, log)
	res.Finished = r.now()

	status := "ok"
	if res.Err != nil {
		status = "error"
		r.setState(StateError, res)
		log.Error().Err(res.Err).Msg("Cycle failed")
	} else {
		r.setState(StateIdle, res)
		log.Info().
			Str("signature", res.Signature.String()).
			Dur("duration", res.Finished.Sub(start)).
			Msg("Cycle completed")
	}
	metrics.RecordCycle(trigger, status, res.Finished.Sub(start))
	return res
}

func (r *Runner) cycle(ctx context.Context, log zerolog.Logger) (solana.Signature, []aggregator.PriceSet, error) {
	r.setState(StateCollect, nil)
	prices, err := r.collector.Collect(ctx)
	if err != nil {
		return solana.Signature{}, nil, fmt.Errorf("%w: %w", ErrCollectFailed, err)
	}
	for _, p := range prices {
		log.Debug().
			Str("symbol", p.Symbol).
			Str("reference", p.Reference.String()).
			Str("market", p.Market.String()).
			Int("quotes", len(p.Quotes)).
			Msg("Collected prices")
	}

	rows, err := oracle.RowsFromPrices(prices, r.now())
	if err != nil {
		return solana.Signature{}, prices, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	ix, err := oracle.BuildRefreshInstruction(r.cfg.ProgramID, r.cfg.Function, r.cfg.Signer.PublicKey(), rows)
	if err != nil {
		return solana.Signature{}, prices, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	r.setState(StateSubmit, nil)
	sig, err := r.broadcaster.BroadcastTx(ctx, tx.BroadcastTxRequest{
		Instructions: []solana.Instruction{ix},
		Payer:        r.cfg.Signer,
	})
	if err != nil {
		return sig, prices, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	return sig, prices, nil
}

func (r *Runner) setState(s State, res *CycleResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	if res != nil {
		r.last = res
	}
}

// GetState returns the runner's current state.
func (r *Runner) GetState() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// LastCycle returns the result of the most recently finished cycle, or nil.
func (r *Runner) LastCycle() *CycleResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}
