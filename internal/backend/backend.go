// Package backend provides blockchain API interfaces for fetching data and broadcasting transactions.
// This package never sees private keys. All signing happens in the funding package.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrNotConnected       = errors.New("backend not connected")
	ErrTxNotFound         = errors.New("transaction not found")
	ErrAddressNotFound    = errors.New("address not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrRequestFailed      = errors.New("request failed")
	ErrBroadcastRejected  = errors.New("transaction rejected by relay")
	ErrUnsupportedBackend = errors.New("unsupported backend type")
)

// DefaultTimeout bounds every request when the config does not set one.
const DefaultTimeout = 10 * time.Second

// Type represents the backend type.
type Type string

const (
	TypeMempool Type = "mempool" // mempool.space API (MutinyNet runs this)
	TypeEsplora Type = "esplora" // blockstream esplora API
)

// UTXO represents an unspent transaction output.
type UTXO struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Amount        int64  `json:"value"` // satoshis
	Confirmed     bool   `json:"confirmed"`
	Confirmations int64  `json:"confirmations"`
	BlockHeight   int64  `json:"block_height,omitempty"`
}

// Transaction is the subset of transaction data the wallet reports.
type Transaction struct {
	TxID          string `json:"txid"`
	Version       int32  `json:"version"`
	Size          int64  `json:"size"`
	VSize         int64  `json:"vsize"`
	Weight        int64  `json:"weight"`
	Fee           int64  `json:"fee"`
	Confirmed     bool   `json:"confirmed"`
	BlockHash     string `json:"block_hash,omitempty"`
	BlockHeight   int64  `json:"block_height,omitempty"`
	BlockTime     int64  `json:"block_time,omitempty"`
	Confirmations int64  `json:"confirmations"`
	InputCount    int    `json:"input_count"`
	OutputCount   int    `json:"output_count"`
}

// AddressInfo contains address balance and transaction info.
type AddressInfo struct {
	Address        string `json:"address"`
	TxCount        int64  `json:"tx_count"`
	FundedTxCount  int64  `json:"funded_txo_count"`
	SpentTxCount   int64  `json:"spent_txo_count"`
	FundedSum      int64  `json:"funded_txo_sum"`
	SpentSum       int64  `json:"spent_txo_sum"`
	Balance        int64  `json:"balance"`         // confirmed: funded - spent
	MempoolBalance int64  `json:"mempool_balance"` // unconfirmed delta
}

// FeeEstimate contains fee estimation for different confirmation targets.
type FeeEstimate struct {
	FastestFee  float64 `json:"fastest_fee"`   // sat/vB for next block
	HalfHourFee float64 `json:"half_hour_fee"` // sat/vB for ~3 blocks
	HourFee     float64 `json:"hour_fee"`      // sat/vB for ~6 blocks
	EconomyFee  float64 `json:"economy_fee"`
	MinimumFee  float64 `json:"minimum_fee"`
}

// Backend defines the interface for blockchain data providers.
type Backend interface {
	// Type returns the backend type (mempool, esplora).
	Type() Type

	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool

	GetAddressInfo(ctx context.Context, address string) (*AddressInfo, error)
	GetAddressUTXOs(ctx context.Context, address string) ([]UTXO, error)

	GetTransaction(ctx context.Context, txID string) (*Transaction, error)

	// BroadcastTransaction submits a hex serialized transaction and returns
	// the txid reported by the relay. A relay rejection is returned as a
	// *BroadcastError; anything else is a transport failure.
	BroadcastTransaction(ctx context.Context, rawTxHex string) (string, error)

	GetBlockHeight(ctx context.Context) (int64, error)
	GetFeeEstimates(ctx context.Context) (*FeeEstimate, error)
}

// Config contains backend configuration.
type Config struct {
	Type    Type          `yaml:"type"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// New creates the backend described by cfg.
func New(cfg *Config) (Backend, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("backend url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch cfg.Type {
	case TypeMempool, "":
		return NewMempoolBackend(cfg.URL, timeout), nil
	case TypeEsplora:
		return NewEsploraBackend(cfg.URL, timeout), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Type)
	}
}

// BroadcastError is a relay's refusal to accept a transaction.
type BroadcastError struct {
	StatusCode int
	Body       string // verbatim relay response
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("%v (status %d): %s", ErrBroadcastRejected, e.StatusCode, e.Body)
}

func (e *BroadcastError) Is(target error) bool {
	return target == ErrBroadcastRejected
}

// Reason extracts the relay's message from bodies such as
// `sendrawtransaction RPC error: {"code":-26,"message":"..."}`.
// Bodies without a JSON object are returned trimmed.
func (e *BroadcastError) Reason() string {
	body := strings.TrimSpace(e.Body)
	start := strings.Index(body, "{")
	if start < 0 {
		return body
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body[start:]), &payload); err != nil {
		return body
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Error != "":
		return payload.Error
	default:
		return body
	}
}
