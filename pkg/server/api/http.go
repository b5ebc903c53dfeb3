// Package api serves the ledger's oracle and feed accounts over HTTP and
// streams confirmed rounds over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/switchboard-xyz/usdy-example/pkg/config"
	"github.com/switchboard-xyz/usdy-example/pkg/feeder/oracle"
	"github.com/switchboard-xyz/usdy-example/pkg/feeder/tx"
	"github.com/switchboard-xyz/usdy-example/pkg/ledger"
	"github.com/switchboard-xyz/usdy-example/pkg/logging"
	"github.com/switchboard-xyz/usdy-example/pkg/metrics"
)

// Broadcaster signs and submits a transaction.
type Broadcaster interface {
	BroadcastTx(ctx context.Context, req tx.BroadcastTxRequest) (solana.Signature, error)
}

// TriggerConfig holds what POST /v1/trigger needs to sign trigger_function.
type TriggerConfig struct {
	Broadcaster          Broadcaster
	AttestationProgramID solana.PublicKey
	Authority            solana.PrivateKey // Function authority
	Queue                solana.PublicKey
	Rate                 float64 // Requests per second
	Burst                int
}

// Config contains server configuration.
type Config struct {
	Addr      string
	TLS       config.TLSConfig
	ProgramID solana.PublicKey
	Store     ledger.AccountStore
	Trigger   *TriggerConfig // nil disables the trigger endpoint
	WebSocket bool
	Logger    *logging.Logger
}

// Server represents the HTTP API server.
type Server struct {
	addr      string
	tls       config.TLSConfig
	programID solana.PublicKey
	store     ledger.AccountStore
	trigger   *TriggerConfig
	limiter   *rate.Limiter
	wsServer  *WebSocketServer // Optional round stream
	server    *http.Server
	logger    *logging.Logger
}

// NewServer creates a new HTTP API server.
func NewServer(cfg Config) *Server {
	s := &Server{
		addr:      cfg.Addr,
		tls:       cfg.TLS,
		programID: cfg.ProgramID,
		store:     cfg.Store,
		trigger:   cfg.Trigger,
		logger:    cfg.Logger,
	}
	if s.trigger != nil {
		s.limiter = rate.NewLimiter(rate.Limit(s.trigger.Rate), s.trigger.Burst)
	}
	if cfg.WebSocket {
		s.wsServer = NewWebSocketServer(cfg.Logger)
	}
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Router returns the server's routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Handle("/health", s.instrument(s.handleHealth)).Methods(http.MethodGet)
	r.Handle("/v1/oracle", s.instrument(s.handleOracle)).Methods(http.MethodGet)
	r.Handle("/v1/feeds", s.instrument(s.handleFeeds)).Methods(http.MethodGet)
	if s.trigger != nil {
		r.Handle("/v1/trigger", s.instrument(s.handleTrigger)).Methods(http.MethodPost)
	}
	if s.wsServer != nil {
		r.HandleFunc("/ws", s.wsServer.handleWebSocket)
	}
	return r
}

// Start serves until Stop is called. A Stop that comes first makes Start return at once.
func (s *Server) Start(ctx context.Context) error {
	if s.wsServer != nil {
		go s.wsServer.Run(ctx)
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr, "tls", s.tls.Enabled)
	var err error
	if s.tls.Enabled {
		err = s.server.ListenAndServeTLS(s.tls.Cert, s.tls.Key)
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// OnCommit pushes the new rounds to WebSocket clients after every applied refresh.
func (s *Server) OnCommit(receipt ledger.Receipt) {
	if s.wsServer == nil {
		return
	}
	refreshed := false
	for _, name := range receipt.Instructions {
		if name == ledger.InstructionRefreshOracles {
			refreshed = true
		}
	}
	if !refreshed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	oracleState, err := ledger.LoadOracleState(ctx, s.store, s.programID)
	if err != nil {
		s.logger.Error("Failed to load oracle state for stream", "error", err)
		return
	}
	feeds, err := ledger.LoadFeeds(ctx, s.store, s.programID)
	if err != nil {
		s.logger.Error("Failed to load feeds for stream", "error", err)
		return
	}
	s.wsServer.SendUpdate(RoundUpdateMessage{
		Type:      "round_update",
		Timestamp: time.Unix(receipt.Timestamp, 0).UTC().Format(time.RFC3339),
		Signature: receipt.Signature.String(),
		Slot:      receipt.Slot,
		Oracle:    newOracleResponse(oracleState),
		Feeds:     newFeedsResponse(feeds),
	})
}

// OracleResponse is the oracle state with prices as decimals.
type OracleResponse struct {
	Symbol          string `json:"symbol"`
	OracleTimestamp int64  `json:"oracle_timestamp"`
	OndoPrice       string `json:"ondo_price"`
	TradedPrice     string `json:"traded_price"`
}

func newOracleResponse(s *ledger.OracleState) OracleResponse {
	d := s.USDYUSD
	return OracleResponse{
		Symbol:          ledger.SymbolUSDYUSDC.String(),
		OracleTimestamp: d.OracleTimestamp,
		OndoPrice:       ledger.NewDecimal(d.OndoPrice, ledger.PriceScale).Value().String(),
		TradedPrice:     ledger.NewDecimal(d.TradedPrice, ledger.PriceScale).Value().String(),
	}
}

// FeedRound is one feed's latest confirmed round.
type FeedRound struct {
	Feed               string `json:"feed"`
	Address            string `json:"address"`
	Authority          string `json:"authority"`
	Value              string `json:"value"`
	Mantissa           string `json:"mantissa"`
	Scale              uint32 `json:"scale"`
	NumSuccess         uint32 `json:"num_success"`
	NumError           uint32 `json:"num_error"`
	RoundOpenTimestamp int64  `json:"round_open_timestamp"`
	RoundOpenSlot      uint64 `json:"round_open_slot"`
}

// FeedsResponse lists the bound writer's feeds.
type FeedsResponse struct {
	Writer string      `json:"writer"`
	Feeds  []FeedRound `json:"feeds"`
}

func newFeedsResponse(f *ledger.Feeds) FeedsResponse {
	round := func(name string, v ledger.FeedView) FeedRound {
		r := v.LatestConfirmedRound
		mantissa := "0"
		if r.Result.Mantissa != nil {
			mantissa = r.Result.Mantissa.String()
		}
		return FeedRound{
			Feed:               name,
			Address:            v.Address.String(),
			Authority:          v.Authority.String(),
			Value:              r.Result.Value().String(),
			Mantissa:           mantissa,
			Scale:              r.Result.Scale,
			NumSuccess:         r.NumSuccess,
			NumError:           r.NumError,
			RoundOpenTimestamp: r.RoundOpenTimestamp,
			RoundOpenSlot:      r.RoundOpenSlot,
		}
	}
	return FeedsResponse{
		Writer: f.Writer.String(),
		Feeds: []FeedRound{
			round("ondo_price_feed", f.PriceFeed),
			round("ondo_traded_feed", f.TradedFeed),
		},
	}
}

// TriggerResponse is the result of POST /v1/trigger.
type TriggerResponse struct {
	Signature string `json:"signature"`
	Function  string `json:"function"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleHealth handles /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) int {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
	return http.StatusOK
}

// handleOracle handles GET /v1/oracle.
func (s *Server) handleOracle(w http.ResponseWriter, r *http.Request) int {
	state, err := ledger.LoadOracleState(r.Context(), s.store, s.programID)
	if err != nil {
		return s.sendError(w, err)
	}
	return s.sendJSON(w, http.StatusOK, newOracleResponse(state))
}

// handleFeeds handles GET /v1/feeds.
func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) int {
	feeds, err := ledger.LoadFeeds(r.Context(), s.store, s.programID)
	if err != nil {
		return s.sendError(w, err)
	}
	return s.sendJSON(w, http.StatusOK, newFeedsResponse(feeds))
}

// handleTrigger handles POST /v1/trigger by submitting trigger_function for the bound writer.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) int {
	if !s.limiter.Allow() {
		return s.sendJSON(w, http.StatusTooManyRequests, errorResponse{Error: "trigger rate limit exceeded"})
	}

	program, err := ledger.LoadProgramState(r.Context(), s.store, s.programID)
	if err != nil {
		return s.sendError(w, err)
	}
	ix, err := oracle.BuildTriggerInstruction(s.programID, s.trigger.AttestationProgramID, program.BoundWriter, s.trigger.Authority.PublicKey(), s.trigger.Queue)
	if err != nil {
		return s.sendError(w, err)
	}
	sig, err := s.trigger.Broadcaster.BroadcastTx(r.Context(), tx.BroadcastTxRequest{
		Instructions: []solana.Instruction{ix},
		Payer:        s.trigger.Authority,
	})
	if err != nil {
		s.logger.Warn("Trigger rejected", "error", err)
		return s.sendJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	}

	s.logger.Info("Function triggered", "function", program.BoundWriter.String(), "signature", sig.String())
	return s.sendJSON(w, http.StatusAccepted, TriggerResponse{Signature: sig.String(), Function: program.BoundWriter.String()})
}

// instrument records request metrics for a handler that reports its status.
func (s *Server) instrument(h func(http.ResponseWriter, *http.Request) int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		status := h(w, r)
		metrics.RecordHTTPRequest(path, strconv.Itoa(status), time.Since(start))
	})
}

func (s *Server) sendError(w http.ResponseWriter, err error) int {
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return s.sendJSON(w, http.StatusNotFound, errorResponse{Error: "not initialized"})
	}
	s.logger.Error("Request failed", "error", err)
	return s.sendJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
	return status
}
