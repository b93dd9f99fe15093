// Package funding builds, signs and broadcasts transactions that move an
// amount from a wallet-controlled P2WPKH address to a destination.
//
// Each Send runs a fixed pipeline:
//
//	Start -> BalanceCheck -> UtxoFetch -> InputSelection -> Assemble -> Sign -> Broadcast
//
// and ends in either a Success result carrying the txid or a Failed result
// carrying a typed *Error. Nothing reaches the network unless every input
// was signed.
package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcfi-labs/btcfi-wallet/internal/backend"
	"github.com/btcfi-labs/btcfi-wallet/internal/chain"
	"github.com/btcfi-labs/btcfi-wallet/internal/wallet"
	"github.com/btcfi-labs/btcfi-wallet/pkg/logging"
)

// Stage is a step of the funding pipeline.
type Stage string

const (
	StageStart          Stage = "start"
	StageBalanceCheck   Stage = "balance_check"
	StageUtxoFetch      Stage = "utxo_fetch"
	StageInputSelection Stage = "input_selection"
	StageAssemble       Stage = "assemble"
	StageSign           Stage = "sign"
	StageBroadcast      Stage = "broadcast"
	StageSuccess        Stage = "success"
	StageFailed         Stage = "failed"
)

const (
	// DefaultFixedFee is the flat fee paid by every funding transaction.
	DefaultFixedFee int64 = 1000
	// DefaultDustLimit is the largest change value that is not worth an output.
	DefaultDustLimit int64 = 546
	// DefaultTimeout bounds each network call.
	DefaultTimeout = 10 * time.Second

	maxSatoshi int64 = 21_000_000 * 100_000_000
)

// Config controls fee policy and network behavior.
type Config struct {
	FixedFee  int64         `yaml:"fixed_fee"`
	DustLimit int64         `yaml:"dust_limit"`
	Timeout   time.Duration `yaml:"timeout"`

	// SerializeByAddress holds a per-address lock from BalanceCheck through
	// Broadcast. When off, concurrent sends from one address may pick the
	// same outputs and the relay rejects all but one.
	SerializeByAddress bool `yaml:"serialize_by_address"`
}

// DefaultConfig returns the standard fee policy.
func DefaultConfig() Config {
	return Config{
		FixedFee:  DefaultFixedFee,
		DustLimit: DefaultDustLimit,
		Timeout:   DefaultTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.FixedFee <= 0 {
		c.FixedFee = DefaultFixedFee
	}
	if c.DustLimit < 0 {
		c.DustLimit = DefaultDustLimit
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Request describes one transfer.
type Request struct {
	From *wallet.Keypair

	// FromAddress defaults to the P2WPKH address of From.
	FromAddress string

	ToAddress string
	Amount    int64
}

// Result is the outcome of Send. Exactly one of TxID and Error is set.
type Result struct {
	Success      bool   `json:"success"`
	TxID         string `json:"txid,omitempty"`
	Fee          int64  `json:"fee,omitempty"`
	Change       int64  `json:"change,omitempty"`
	AbsorbedDust int64  `json:"absorbedDust,omitempty"`
	InputCount   int    `json:"inputCount,omitempty"`
	ExplorerURL  string `json:"explorerUrl,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorKind    Kind   `json:"errorKind,omitempty"`

	Err *Error `json:"-"`
}

func failed(err *Error) *Result {
	return &Result{
		Success:   false,
		Error:     err.UserMessage(),
		ErrorKind: err.Kind,
		Err:       err,
	}
}

// Builder runs the funding pipeline against a backend.
type Builder struct {
	cfg     Config
	keys    *wallet.Manager
	backend backend.Backend
	locker  *AddressLocker
	log     *logging.Logger
}

// NewBuilder creates a funding builder.
func NewBuilder(cfg Config, keys *wallet.Manager, b backend.Backend, log *logging.Logger) (*Builder, error) {
	if keys == nil {
		return nil, errors.New("funding: key manager required")
	}
	if b == nil {
		return nil, errors.New("funding: backend required")
	}
	if log == nil {
		log = logging.GetDefault()
	}
	return &Builder{
		cfg:     cfg.withDefaults(),
		keys:    keys,
		backend: b,
		locker:  NewAddressLocker(),
		log:     log.Component("funding"),
	}, nil
}

// Config returns the effective configuration.
func (b *Builder) Config() Config {
	return b.cfg
}

// Params returns the network profile transfers are built for.
func (b *Builder) Params() *chain.Params {
	return b.keys.Params()
}

// Send moves req.Amount from the funding address to req.ToAddress.
// Failures are reported in the Result, never returned as a Go error.
func (b *Builder) Send(ctx context.Context, req Request) *Result {
	fromAddress, fundingScript, paymentScript, verr := b.validate(req)
	if verr != nil {
		b.log.Warn("Funding request rejected", "stage", verr.Stage, "error", verr.Message)
		return failed(verr)
	}

	if b.cfg.SerializeByAddress {
		unlock := b.locker.Lock(fromAddress)
		defer unlock()
	}

	log := b.log.With("from", fromAddress, "to", req.ToAddress, "amount", req.Amount)
	log.Debug("Funding started", "stage", StageStart, "fee", b.cfg.FixedFee)

	plan, ferr := b.prepare(ctx, log, fromAddress, fundingScript, paymentScript, req.Amount)
	if ferr != nil {
		log.Warn("Funding failed", "stage", ferr.Stage, "kind", ferr.Kind, "error", ferr.Error())
		return failed(ferr)
	}

	log.Debug("Signing", "stage", StageSign, "inputs", len(plan.Inputs))
	packet, err := assemble(plan)
	if err != nil {
		ferr := &Error{Kind: KindSigning, Stage: StageAssemble, Message: "could not assemble transaction", Err: err}
		log.Warn("Funding failed", "stage", ferr.Stage, "kind", ferr.Kind, "error", err)
		return failed(ferr)
	}
	tx, err := sign(packet, req.From)
	if err != nil {
		ferr := asFundingError(err, KindSigning, StageSign)
		log.Warn("Funding failed", "stage", ferr.Stage, "kind", ferr.Kind, "error", ferr.Error())
		return failed(ferr)
	}

	rawTx, err := serialize(tx)
	if err != nil {
		ferr := &Error{Kind: KindSigning, Stage: StageSign, Message: "could not serialize transaction", Err: err}
		return failed(ferr)
	}

	log.Debug("Broadcasting", "stage", StageBroadcast, "txid", tx.TxHash().String())
	txid, ferr := b.broadcast(ctx, rawTx)
	if ferr != nil {
		log.Warn("Funding failed", "stage", ferr.Stage, "kind", ferr.Kind, "error", ferr.Error())
		return failed(ferr)
	}
	if txid == "" {
		txid = tx.TxHash().String()
	}

	log.Info("Funding transaction broadcast", "txid", txid, "fee", plan.Fee, "change", plan.Change, "inputs", len(plan.Inputs))
	return &Result{
		Success:      true,
		TxID:         txid,
		Fee:          plan.Fee,
		Change:       plan.Change,
		AbsorbedDust: plan.AbsorbedDust,
		InputCount:   len(plan.Inputs),
		ExplorerURL:  b.keys.Params().ExplorerTxURL(txid),
	}
}

// validate checks the request and resolves the scripts it pays from and to.
func (b *Builder) validate(req Request) (string, []byte, []byte, *Error) {
	if req.From == nil {
		return "", nil, nil, validationError("no funding key")
	}
	if req.From.IsZeroed() {
		return "", nil, nil, validationError("funding key has been wiped")
	}
	if req.Amount <= 0 {
		return "", nil, nil, validationError("amount must be positive, got %d", req.Amount)
	}
	if req.Amount > maxSatoshi-b.cfg.FixedFee {
		return "", nil, nil, validationError("amount %d exceeds the maximum supply", req.Amount)
	}

	paymentScript, err := b.keys.AddressScript(req.ToAddress)
	if err != nil {
		return "", nil, nil, validationError("destination %q is not a valid %s address", req.ToAddress, b.keys.Params().Name)
	}

	fromAddress := req.FromAddress
	if fromAddress == "" {
		fromAddress = b.keys.AddressFor(req.From)
	}
	fundingScript, err := b.keys.AddressScript(fromAddress)
	if err != nil {
		return "", nil, nil, validationError("funding address %q is not a valid %s address", fromAddress, b.keys.Params().Name)
	}

	return fromAddress, fundingScript, paymentScript, nil
}

// prepare runs BalanceCheck, UtxoFetch and InputSelection.
func (b *Builder) prepare(ctx context.Context, log *logging.Logger, fromAddress string, fundingScript, paymentScript []byte, amount int64) (*Plan, *Error) {
	required := amount + b.cfg.FixedFee

	log.Debug("Checking balance", "stage", StageBalanceCheck)
	available, ferr := b.balance(ctx, fromAddress)
	if ferr != nil {
		return nil, ferr
	}
	if available < required {
		return nil, insufficientFunds(StageBalanceCheck, required, available)
	}

	log.Debug("Fetching outputs", "stage", StageUtxoFetch, "balance", available)
	utxos, ferr := b.utxos(ctx, fromAddress)
	if ferr != nil {
		return nil, ferr
	}
	if len(utxos) == 0 {
		return nil, &Error{
			Kind:    KindNoSpendableOutputs,
			Stage:   StageUtxoFetch,
			Message: "address has no unspent outputs",
			Address: fromAddress,
		}
	}

	log.Debug("Selecting inputs", "stage", StageInputSelection, "candidates", len(utxos))
	sel, err := SelectInputs(utxos, amount, b.cfg.FixedFee)
	if err != nil {
		return nil, asFundingError(err, KindInsufficientFunds, StageInputSelection)
	}

	log.Debug("Assembling", "stage", StageAssemble, "strategy", sel.Strategy, "inputs", len(sel.Inputs), "total", sel.Total)
	return newPlan(sel, fundingScript, paymentScript, amount, b.cfg.FixedFee, b.cfg.DustLimit), nil
}

func (b *Builder) balance(ctx context.Context, address string) (int64, *Error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	info, err := b.backend.GetAddressInfo(ctx, address)
	if errors.Is(err, backend.ErrAddressNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, networkError(StageBalanceCheck, "could not fetch balance", err)
	}
	return info.Balance, nil
}

func (b *Builder) utxos(ctx context.Context, address string) ([]backend.UTXO, *Error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	utxos, err := b.backend.GetAddressUTXOs(ctx, address)
	if errors.Is(err, backend.ErrAddressNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, networkError(StageUtxoFetch, "could not fetch unspent outputs", err)
	}
	return utxos, nil
}

func (b *Builder) broadcast(ctx context.Context, rawTx string) (string, *Error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	txid, err := b.backend.BroadcastTransaction(ctx, rawTx)
	if err == nil {
		return txid, nil
	}

	var be *backend.BroadcastError
	if errors.As(err, &be) {
		return "", &Error{
			Kind:      KindRelayRejected,
			Stage:     StageBroadcast,
			Message:   be.Reason(),
			RelayText: be.Body,
			Err:       err,
		}
	}
	return "", networkError(StageBroadcast, "could not reach the relay", err)
}

// asFundingError returns err as an *Error, wrapping foreign errors in kind.
func asFundingError(err error, kind Kind, stage Stage) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprint(err), Err: err}
}
