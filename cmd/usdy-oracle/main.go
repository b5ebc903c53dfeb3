package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"

	"github.com/switchboard-xyz/usdy-example/pkg/config"
	"github.com/switchboard-xyz/usdy-example/pkg/feeder/keystore"
	"github.com/switchboard-xyz/usdy-example/pkg/feeder/runner"
	feedertx "github.com/switchboard-xyz/usdy-example/pkg/feeder/tx"
	"github.com/switchboard-xyz/usdy-example/pkg/logging"
	"github.com/switchboard-xyz/usdy-example/pkg/metrics"
	"github.com/switchboard-xyz/usdy-example/pkg/server/aggregator"
	"github.com/switchboard-xyz/usdy-example/pkg/version"

	// Import sources to register them
	_ "github.com/switchboard-xyz/usdy-example/pkg/server/sources/evm"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
	once       = flag.Bool("once", false, "Run a single refresh cycle and exit")
	mode       = flag.String("mode", "", "Override the configured mode (function or local)")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.AgentString())
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// In function mode stdout carries the emitted transaction
	if cfg.IsFunctionMode() && cfg.Function.Emit == config.EmitStdout && (cfg.Logging.Output == "stdout" || cfg.Logging.Output == "") {
		cfg.Logging.Output = "stderr"
	}
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Starting usdy-oracle", "version", version.Version, "mode", cfg.NormalizeMode(), "once", *once)

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IsLocalMode() {
		err = runLocal(ctx, cfg, logger)
	} else {
		err = runFunction(ctx, cfg, logger)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Component failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

// newEngine builds the aggregation engine from the configured sources and symbols.
func newEngine(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*aggregator.Engine, error) {
	panels, err := aggregator.BuildPanels(cfg, logger)
	if err != nil {
		return nil, err
	}
	engine, err := aggregator.NewEngine(panels, cfg.Function.FetchTimeout.ToDuration(), logger)
	if err != nil {
		return nil, err
	}
	if err := engine.Initialize(ctx); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}

func loadEnclaveSigner(cfg *config.Config, logger *logging.Logger) (solana.PrivateKey, error) {
	signer, origin, err := keystore.LoadOrGenerate(cfg.Function.Keypair, cfg.Function.KeypairEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to load enclave signer: %w", err)
	}
	logger.Info("Loaded enclave signer", "public_key", signer.PublicKey().String(), "origin", string(origin))
	return signer, nil
}

// runFunction runs the attested function alone, emitting to stdout or submitting over RPC.
func runFunction(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	signer, err := loadEnclaveSigner(cfg, logger)
	if err != nil {
		return err
	}

	var bcfg feedertx.BroadcasterConfig
	switch cfg.Function.Emit {
	case config.EmitRPC:
		rpcSubmitter, err := feedertx.NewRPCSubmitter(cfg.Function.RPCURL)
		if err != nil {
			return err
		}
		bcfg = feedertx.BroadcasterConfig{Submitter: rpcSubmitter, Blockhash: rpcSubmitter, Target: config.EmitRPC}
	default:
		bcfg = feedertx.BroadcasterConfig{Submitter: feedertx.NewEmitter(os.Stdout), Blockhash: feedertx.StaticBlockhash{}, Target: config.EmitStdout}
	}
	bcfg.Logger = logger.ZerologLogger()
	broadcaster := feedertx.NewBroadcaster(bcfg)

	engine, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	r, err := runner.New(runner.Config{
		ProgramID:    solana.MustPublicKeyFromBase58(cfg.Program.ProgramID),
		Function:     solana.MustPublicKeyFromBase58(cfg.Function.Account),
		Signer:       signer,
		Schedule:     cfg.Function.Schedule,
		CycleTimeout: cfg.Function.CycleTimeout.ToDuration(),
	}, engine, broadcaster, logger.ZerologLogger())
	if err != nil {
		return err
	}

	if *once {
		return r.RunCycle(ctx, runner.TriggerOnce).Err
	}
	return r.Start(ctx)
}
