package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/switchboard-xyz/usdy-example/pkg/attest"
	"github.com/switchboard-xyz/usdy-example/pkg/config"
	"github.com/switchboard-xyz/usdy-example/pkg/feeder/keystore"
	"github.com/switchboard-xyz/usdy-example/pkg/feeder/oracle"
	"github.com/switchboard-xyz/usdy-example/pkg/feeder/runner"
	feedertx "github.com/switchboard-xyz/usdy-example/pkg/feeder/tx"
	"github.com/switchboard-xyz/usdy-example/pkg/ledger"
	"github.com/switchboard-xyz/usdy-example/pkg/ledger/redisstore"
	"github.com/switchboard-xyz/usdy-example/pkg/logging"
	"github.com/switchboard-xyz/usdy-example/pkg/server/api"
)

// runLocal runs the function against an in-process ledger and attestation network,
// with the read/trigger API in front of the ledger.
func runLocal(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	zl := logger.ZerologLogger()
	programID := solana.MustPublicKeyFromBase58(cfg.Program.ProgramID)
	attestationProgramID := solana.MustPublicKeyFromBase58(cfg.Program.AttestationProgramID)
	function := solana.MustPublicKeyFromBase58(cfg.Function.Account)
	queue := solana.PublicKey{}
	if cfg.Program.AttestationQueue != "" {
		queue = solana.MustPublicKeyFromBase58(cfg.Program.AttestationQueue)
	}

	signer, err := loadEnclaveSigner(cfg, logger)
	if err != nil {
		return err
	}
	authority, origin, err := keystore.LoadOrGenerate(cfg.Function.AuthorityKeypair, "")
	if err != nil {
		return fmt.Errorf("failed to load authority: %w", err)
	}
	logger.Info("Loaded program authority", "public_key", authority.PublicKey().String(), "origin", string(origin))

	measurement, err := localMeasurement(cfg.Function.MrEnclave)
	if err != nil {
		return err
	}

	network := attest.NewMemoryNetwork(zl)
	network.Register(&attest.FunctionAccount{
		Address:             function,
		Authority:           authority.PublicKey(),
		AttestationQueue:    queue,
		AllowedMeasurements: []attest.Measurement{measurement},
		Status:              attest.StatusActive,
		Schedule:            cfg.Function.Schedule,
	})
	if err := network.Verify(ctx, function, signer.PublicKey(), measurement); err != nil {
		return fmt.Errorf("enclave verification failed: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer closeStore()

	rt, err := ledger.NewRuntime(ledger.Config{
		ProgramID:            programID,
		AttestationProgramID: attestationProgramID,
		Store:                store,
		Network:              network,
		Clock:                ledger.NewSystemClock(cfg.Ledger.SlotTime.ToDuration()),
		MaxRowAge:            cfg.Ledger.MaxRowAge.ToDuration(),
		Logger:               zl,
	})
	if err != nil {
		return err
	}
	broadcaster := feedertx.NewBroadcaster(feedertx.BroadcasterConfig{
		Submitter: rt,
		Blockhash: rt,
		Target:    config.ModeLocal,
		Logger:    zl,
	})

	if err := bootstrap(ctx, rt, broadcaster, authority, function); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	engine, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	r, err := runner.New(runner.Config{
		ProgramID:    programID,
		Function:     function,
		Signer:       signer,
		Schedule:     cfg.Function.Schedule,
		CycleTimeout: cfg.Function.CycleTimeout.ToDuration(),
		Triggers:     network.Subscribe(function),
	}, engine, broadcaster, zl)
	if err != nil {
		return err
	}
	if *once {
		return r.RunCycle(ctx, runner.TriggerOnce).Err
	}

	server := api.NewServer(api.Config{
		Addr:      cfg.Server.HTTP.Addr,
		TLS:       cfg.Server.HTTP.TLS,
		ProgramID: programID,
		Store:     store,
		Trigger: &api.TriggerConfig{
			Broadcaster:          broadcaster,
			AttestationProgramID: attestationProgramID,
			Authority:            authority,
			Queue:                queue,
			Rate:                 cfg.Server.TriggerRate,
			Burst:                cfg.Server.TriggerBurst,
		},
		WebSocket: cfg.Server.WebSocket.Enabled,
		Logger:    logger,
	})
	rt.OnCommit(server.OnCommit)

	errChan := make(chan error, 2)
	go func() { errChan <- server.Start(ctx) }()
	go func() { errChan <- r.Start(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err = <-errChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("Shutting down gracefully...")
	if stopErr := server.Stop(shutdownCtx); stopErr != nil {
		logger.Warn("HTTP server shutdown failed", "error", stopErr)
	}
	return err
}

func localMeasurement(configured string) (attest.Measurement, error) {
	if configured != "" {
		return attest.ParseMeasurement(configured)
	}
	return attest.MeasureExecutable()
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ledger.AccountStore, func(), error) {
	if cfg.Ledger.Store != config.StoreRedis {
		return ledger.NewMemoryStore(), func() {}, nil
	}
	store, err := redisstore.Dial(ctx, &redis.Options{
		Addr:     cfg.Ledger.Redis.Addr,
		Password: cfg.Ledger.Redis.Password,
		DB:       cfg.Ledger.Redis.DB,
	}, cfg.Ledger.Redis.Prefix, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// bootstrap makes function the bound writer with provisioned feeds. A fresh ledger is
// initialized; an existing one bound elsewhere is rebound with set_function.
func bootstrap(ctx context.Context, rt *ledger.Runtime, b *feedertx.Broadcaster, authority solana.PrivateKey, function solana.PublicKey) error {
	programID := rt.ProgramID()
	initIx, err := oracle.BuildInitializeInstruction(programID, authority.PublicKey(), function, authority.PublicKey())
	if err != nil {
		return err
	}
	ixs := []solana.Instruction{initIx}

	program, err := ledger.LoadProgramState(ctx, rt.Store(), programID)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
	case err != nil:
		return err
	case !program.BoundWriter.Equals(function):
		set, err := oracle.BuildSetFunctionInstruction(programID, authority.PublicKey(), function)
		if err != nil {
			return err
		}
		ixs = []solana.Instruction{set, initIx}
	}

	_, err = b.BroadcastTx(ctx, feedertx.BroadcastTxRequest{Instructions: ixs, Payer: authority})
	return err
}
