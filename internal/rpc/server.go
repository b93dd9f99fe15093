// Package rpc provides a JSON-RPC 2.0 server for the wallet daemon.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/btcfi-labs/btcfi-wallet/internal/backend"
	"github.com/btcfi-labs/btcfi-wallet/internal/faucet"
	"github.com/btcfi-labs/btcfi-wallet/internal/funding"
	"github.com/btcfi-labs/btcfi-wallet/internal/storage"
	"github.com/btcfi-labs/btcfi-wallet/internal/wallet"
	"github.com/btcfi-labs/btcfi-wallet/pkg/logging"
)

// Server is a JSON-RPC 2.0 server.
type Server struct {
	store   *storage.Storage
	wallet  *wallet.Service
	builder *funding.Builder
	backend backend.Backend
	faucet  *faucet.Faucet
	log     *logging.Logger
	wsHub   *WSHub

	allowedOrigins map[string]bool
	started        time.Time

	server   *http.Server
	listener net.Listener

	handlers map[string]Handler
	mu       sync.RWMutex
}

// Config wires the server to the daemon components. Storage and Faucet
// are optional.
type Config struct {
	Storage        *storage.Storage
	Wallet         *wallet.Service
	Builder        *funding.Builder
	Backend        backend.Backend
	Faucet         *faucet.Faucet
	Logger         *logging.Logger
	AllowedOrigins []string
}

// Handler is a JSON-RPC method handler.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Application error codes.
const (
	WalletNotConnected = -32001
	WalletLocked       = -32002
	FaucetUnavailable  = -32010
	FaucetRejected     = -32011
)

// ErrInvalidParams marks handler errors caused by the caller's params.
var ErrInvalidParams = errors.New("invalid params")

func invalidParams(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

// NewServer creates a new JSON-RPC server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Wallet == nil || cfg.Builder == nil {
		return nil, errors.New("rpc: wallet service and builder required")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetDefault()
	}

	s := &Server{
		store:          cfg.Storage,
		wallet:         cfg.Wallet,
		builder:        cfg.Builder,
		backend:        cfg.Backend,
		faucet:         cfg.Faucet,
		log:            log.Component("rpc"),
		wsHub:          NewWSHub(log),
		allowedOrigins: make(map[string]bool),
		started:        time.Now(),
		handlers:       make(map[string]Handler),
	}
	for _, o := range cfg.AllowedOrigins {
		s.allowedOrigins[o] = true
	}

	s.registerHandlers()
	return s, nil
}

// registerHandlers registers all JSON-RPC method handlers.
func (s *Server) registerHandlers() {
	s.handlers["network_info"] = s.networkInfo

	// Wallet methods
	s.handlers["wallet_generate"] = s.walletGenerate
	s.handlers["wallet_restore"] = s.walletRestore
	s.handlers["wallet_validateAddress"] = s.walletValidateAddress
	s.handlers["wallet_status"] = s.walletStatus
	s.handlers["wallet_unlock"] = s.walletUnlock
	s.handlers["wallet_lock"] = s.walletLock
	s.handlers["wallet_disconnect"] = s.walletDisconnect
	s.handlers["wallet_getBalance"] = s.walletGetBalance
	s.handlers["wallet_getUTXOs"] = s.walletGetUTXOs
	s.handlers["wallet_backupPhrase"] = s.walletBackupPhrase
	s.handlers["wallet_send"] = s.walletSend

	// Faucet methods
	s.handlers["faucet_info"] = s.faucetInfo
	s.handlers["faucet_send"] = s.faucetSend

	s.handlers["transfers_list"] = s.transfersList
}

// Start starts the RPC server.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	go s.wsHub.Run()

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("RPC server error", "error", err)
		}
	}()

	s.log.Info("RPC server started", "addr", listener.Addr().String(), "ws", "ws://"+listener.Addr().String()+"/ws")
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the HTTP handler serving JSON-RPC and WebSocket routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleRPC)
	mux.HandleFunc("POST /{$}", s.handleRPC)
	mux.HandleFunc("OPTIONS /", s.handleCORS)
	mux.HandleFunc("OPTIONS /{$}", s.handleCORS)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /ws/", s.handleWS)
	return s.corsMiddleware(mux)
}

// Stop stops the RPC server.
func (s *Server) Stop() error {
	s.wsHub.Stop()
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleRPC handles incoming JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, nil, ParseError, "Parse error", nil)
		return
	}

	if req.JSONRPC != "2.0" {
		s.writeError(w, req.ID, InvalidRequest, "Invalid Request", nil)
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		s.writeError(w, req.ID, MethodNotFound, "Method not found", req.Method)
		return
	}

	result, err := handler(r.Context(), req.Params)
	if err != nil {
		code, data := errorCode(err)
		if code == InternalError {
			s.log.Warn("RPC method failed", "method", req.Method, "error", err)
		}
		s.writeError(w, req.ID, code, err.Error(), data)
		return
	}

	s.writeResult(w, req.ID, result)
}

// errorCode maps handler errors to JSON-RPC codes.
func errorCode(err error) (int, interface{}) {
	var ve *wallet.ValidationError
	var ce *faucet.CooldownError
	switch {
	case errors.As(err, &ve):
		return InvalidParams, map[string]string{"field": ve.Field}
	case errors.Is(err, ErrInvalidParams):
		return InvalidParams, nil
	case errors.Is(err, wallet.ErrNoWallet):
		return WalletNotConnected, nil
	case errors.Is(err, wallet.ErrWalletLocked):
		return WalletLocked, nil
	case errors.Is(err, faucet.ErrDisabled):
		return FaucetUnavailable, nil
	case errors.As(err, &ce):
		return FaucetRejected, map[string]int64{"retryAfter": int64(ce.Remaining.Seconds())}
	case errors.Is(err, faucet.ErrAmountTooLarge):
		return FaucetRejected, nil
	default:
		return InternalError, nil
	}
}

// writeResult writes a successful response.
func (s *Server) writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

// handleCORS handles CORS preflight requests.
func (s *Server) handleCORS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) originAllowed(origin string) bool {
	return len(s.allowedOrigins) == 0 || origin == "" || s.allowedOrigins[origin]
}

// corsMiddleware adds CORS headers to all responses.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !s.originAllowed(origin) {
			http.Error(w, "Origin not allowed", http.StatusForbidden)
			return
		}
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
