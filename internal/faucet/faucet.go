// Package faucet pays small amounts of test coins from an operator wallet.
package faucet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/btcfi-labs/btcfi-wallet/internal/funding"
	"github.com/btcfi-labs/btcfi-wallet/internal/storage"
	"github.com/btcfi-labs/btcfi-wallet/internal/wallet"
	"github.com/btcfi-labs/btcfi-wallet/pkg/helpers"
	"github.com/btcfi-labs/btcfi-wallet/pkg/logging"
)

const (
	// DefaultPrivateKeyEnv names the variable holding the operator key.
	DefaultPrivateKeyEnv = "BTCFI_FAUCET_PRIVATE_KEY"

	DefaultAmount    int64 = 1000
	DefaultMaxAmount int64 = 100_000
	DefaultCooldown        = 10 * time.Minute
)

var (
	ErrDisabled       = errors.New("faucet disabled")
	ErrNoAdminKey     = errors.New("faucet key not configured")
	ErrAmountTooLarge = errors.New("amount above faucet limit")
	ErrCooldown       = errors.New("recipient is cooling down")
)

// Config holds faucet settings. The private key itself is never part of
// the config, only the name of the environment variable that holds it.
type Config struct {
	Enabled       bool          `yaml:"enabled"`
	PrivateKeyEnv string        `yaml:"private_key_env"`
	Address       string        `yaml:"address,omitempty"` // expected operator address
	DefaultAmount int64         `yaml:"default_amount"`
	MaxAmount     int64         `yaml:"max_amount"`
	Cooldown      time.Duration `yaml:"cooldown"`
}

// DefaultConfig returns a disabled faucet with standard limits.
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		PrivateKeyEnv: DefaultPrivateKeyEnv,
		DefaultAmount: DefaultAmount,
		MaxAmount:     DefaultMaxAmount,
		Cooldown:      DefaultCooldown,
	}
}

// CooldownError is returned when a recipient was paid too recently.
type CooldownError struct {
	Address   string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%v: %s can request again in %s", ErrCooldown, e.Address, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}

// Faucet sends test coins from the operator wallet.
type Faucet struct {
	cfg     Config
	builder *funding.Builder
	store   *storage.Storage
	admin   *wallet.Keypair
	address string
	log     *logging.Logger

	// Drips run one at a time so cooldown checks and UTXO use never overlap.
	mu  sync.Mutex
	now func() time.Time
}

// New loads the operator key from the environment and returns a faucet.
func New(cfg Config, builder *funding.Builder, keys *wallet.Manager, store *storage.Storage, log *logging.Logger) (*Faucet, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if builder == nil || keys == nil {
		return nil, errors.New("faucet: builder and key manager required")
	}
	if cfg.PrivateKeyEnv == "" {
		cfg.PrivateKeyEnv = DefaultPrivateKeyEnv
	}
	if cfg.DefaultAmount <= 0 {
		cfg.DefaultAmount = DefaultAmount
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if log == nil {
		log = logging.GetDefault()
	}
	log = log.Component("faucet")

	privHex := strings.TrimSpace(os.Getenv(cfg.PrivateKeyEnv))
	if privHex == "" {
		return nil, fmt.Errorf("%w: set %s", ErrNoAdminKey, cfg.PrivateKeyEnv)
	}
	admin, err := keys.Restore(privHex)
	if err != nil {
		return nil, fmt.Errorf("faucet key in %s: %w", cfg.PrivateKeyEnv, err)
	}

	address := keys.AddressFor(admin)
	if cfg.Address != "" && cfg.Address != address {
		// Sends will fail at signing; surface it early.
		log.Warn("Configured faucet address does not match key", "configured", cfg.Address, "derived", address)
		address = cfg.Address
	}

	log.Info("Faucet ready", "address", address,
		"default", helpers.FormatSats(cfg.DefaultAmount), "max", helpers.FormatSats(cfg.MaxAmount), "cooldown", cfg.Cooldown)

	return &Faucet{
		cfg:     cfg,
		builder: builder,
		store:   store,
		admin:   admin,
		address: address,
		log:     log,
		now:     time.Now,
	}, nil
}

// Address returns the operator address coins are paid from.
func (f *Faucet) Address() string {
	return f.address
}

// Config returns the effective configuration.
func (f *Faucet) Config() Config {
	return f.cfg
}

// Drip sends amount to the recipient, or the default amount when zero.
// Policy rejections are returned as errors; funding failures are in the
// Result.
func (f *Faucet) Drip(ctx context.Context, to string, amount int64) (*funding.Result, error) {
	if amount == 0 {
		amount = f.cfg.DefaultAmount
	}
	if f.cfg.MaxAmount > 0 && amount > f.cfg.MaxAmount {
		return nil, fmt.Errorf("%w: %s > %s", ErrAmountTooLarge, helpers.FormatSats(amount), helpers.FormatSats(f.cfg.MaxAmount))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkCooldown(to); err != nil {
		return nil, err
	}

	transfer := &storage.Transfer{
		ID:          uuid.NewString(),
		Kind:        storage.TransferKindFaucet,
		Network:     f.builder.Params().Name,
		FromAddress: f.address,
		ToAddress:   to,
		Amount:      amount,
		Status:      storage.TransferStatusPending,
	}
	f.save(transfer)

	res := f.builder.Send(ctx, funding.Request{
		From:        f.admin,
		FromAddress: f.address,
		ToAddress:   to,
		Amount:      amount,
	})

	res.Apply(transfer)
	f.save(transfer)

	if res.Success {
		f.log.Info("Faucet drip sent", "to", to, "amount", amount, "txid", res.TxID)
	} else {
		f.log.Warn("Faucet drip failed", "to", to, "amount", amount, "kind", res.ErrorKind)
	}
	return res, nil
}

func (f *Faucet) checkCooldown(to string) error {
	if f.store == nil || f.cfg.Cooldown == 0 {
		return nil
	}
	last, err := f.store.LastTransferTo(storage.TransferKindFaucet, to)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("faucet: load history: %w", err)
	}

	next := time.Unix(last.CreatedAt, 0).Add(f.cfg.Cooldown)
	if remaining := next.Sub(f.now()); remaining > 0 {
		return &CooldownError{Address: to, Remaining: remaining}
	}
	return nil
}

func (f *Faucet) save(t *storage.Transfer) {
	if f.store == nil {
		return
	}
	if err := f.store.SaveTransfer(t); err != nil {
		f.log.Error("Failed to record faucet transfer", "id", t.ID, "error", err)
	}
}

// Close wipes the operator key.
func (f *Faucet) Close() {
	f.admin.Zero()
}
