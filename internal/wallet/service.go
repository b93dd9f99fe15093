package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/btcfi-labs/btcfi-wallet/internal/backend"
	"github.com/btcfi-labs/btcfi-wallet/internal/storage"
	"github.com/btcfi-labs/btcfi-wallet/pkg/logging"
)

// Service holds the session wallet: at most one keypair per daemon,
// optionally persisted with its key sealed under a password.
type Service struct {
	keys    *Manager
	store   *storage.Storage
	backend backend.Backend
	log     *logging.Logger

	mu               sync.RWMutex
	current          *Keypair
	address          string
	balance          int64
	balanceUpdatedAt time.Time
}

// ServiceConfig holds configuration for the wallet service.
type ServiceConfig struct {
	Keys    *Manager
	Storage *storage.Storage // nil keeps the wallet in memory only
	Backend backend.Backend
	Logger  *logging.Logger
}

// Status is a snapshot of the session wallet.
type Status struct {
	Network          string `json:"network"`
	Connected        bool   `json:"connected"`
	Locked           bool   `json:"locked"`
	Address          string `json:"address,omitempty"`
	PublicKey        string `json:"publicKey,omitempty"`
	Balance          int64  `json:"balance"`
	BalanceUpdatedAt int64  `json:"balanceUpdatedAt,omitempty"`
	ExplorerURL      string `json:"explorerUrl,omitempty"`
}

// NewService creates a new wallet service.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil || cfg.Keys == nil {
		return nil, errors.New("wallet: key manager required")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetDefault()
	}
	return &Service{
		keys:    cfg.Keys,
		store:   cfg.Storage,
		backend: cfg.Backend,
		log:     log.Component("wallet"),
	}, nil
}

// Keys returns the key manager.
func (s *Service) Keys() *Manager {
	return s.keys
}

// Network returns the network profile name.
func (s *Service) Network() string {
	return s.keys.Params().Name
}

// Create generates a fresh keypair and makes it the session wallet.
// A non-empty password also persists it.
func (s *Service) Create(password string) (*Keypair, error) {
	kp, err := s.keys.Generate()
	if err != nil {
		return nil, err
	}
	if err := s.attach(kp, password); err != nil {
		kp.Zero()
		return nil, err
	}
	s.log.Info("Wallet created", "address", s.Address())
	return kp, nil
}

// Connect restores a keypair from hex and makes it the session wallet.
// Surrounding whitespace is ignored. A non-empty password also persists it.
func (s *Service) Connect(privateKeyHex, password string) (*Keypair, error) {
	kp, err := s.keys.Restore(strings.TrimSpace(privateKeyHex))
	if err != nil {
		return nil, err
	}
	if err := s.attach(kp, password); err != nil {
		kp.Zero()
		return nil, err
	}
	s.log.Info("Wallet connected", "address", s.Address())
	return kp, nil
}

// ConnectKeypair makes an already restored keypair the session wallet.
func (s *Service) ConnectKeypair(kp *Keypair, password string) error {
	if kp == nil || kp.IsZeroed() {
		return ErrKeyZeroed
	}
	if err := s.attach(kp, password); err != nil {
		return err
	}
	s.log.Info("Wallet connected", "address", s.Address())
	return nil
}

func (s *Service) attach(kp *Keypair, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return ErrWalletExists
	}

	address := s.keys.AddressFor(kp)
	if password != "" {
		if err := s.persist(kp, address, password); err != nil {
			return err
		}
	}

	s.current = kp
	s.address = address
	s.balance = 0
	s.balanceUpdatedAt = time.Time{}
	return nil
}

// persist seals kp under password, replacing any wallet stored for this network.
func (s *Service) persist(kp *Keypair, address, password string) error {
	if s.store == nil {
		return ErrNotPersisted
	}

	priv := kp.PrivateKey()
	if priv == nil {
		return ErrKeyZeroed
	}
	raw := priv.Serialize()
	defer SecureClear(raw)

	sealed, err := EncryptKey(raw, password)
	if err != nil {
		return err
	}
	blob, err := sealed.Marshal()
	if err != nil {
		return err
	}

	if old, err := s.store.GetWalletByNetwork(s.Network()); err == nil && old.Address != address {
		if err := s.store.DeleteWallet(old.Address); err != nil {
			return fmt.Errorf("failed to replace stored wallet: %w", err)
		}
	}

	return s.store.SaveWallet(&storage.WalletRecord{
		Address:      address,
		Network:      s.Network(),
		PublicKey:    kp.PublicKeyHex(),
		EncryptedKey: blob,
	})
}

// HasStoredWallet reports whether a sealed wallet exists for this network.
func (s *Service) HasStoredWallet() bool {
	if s.store == nil {
		return false
	}
	_, err := s.store.GetWalletByNetwork(s.Network())
	return err == nil
}

// Unlock decrypts the stored wallet and makes it the session wallet.
// Unlocking an already connected wallet is a no-op.
func (s *Service) Unlock(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil
	}
	if s.store == nil {
		return ErrNotPersisted
	}

	rec, err := s.store.GetWalletByNetwork(s.Network())
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotPersisted
	}
	if err != nil {
		return fmt.Errorf("failed to load wallet: %w", err)
	}

	sealed, err := UnmarshalEncryptedKey(rec.EncryptedKey)
	if err != nil {
		return err
	}
	raw, err := DecryptKey(sealed, password)
	if err != nil {
		return err
	}
	defer SecureClear(raw)

	kp, err := s.keys.fromScalar(raw)
	if err != nil {
		return err
	}
	if address := s.keys.AddressFor(kp); address != rec.Address {
		kp.Zero()
		return fmt.Errorf("stored wallet address mismatch: have %s, derived %s", rec.Address, address)
	}

	s.current = kp
	s.address = rec.Address
	s.balance = rec.Balance
	if rec.BalanceUpdatedAt > 0 {
		s.balanceUpdatedAt = time.Unix(rec.BalanceUpdatedAt, 0)
	}

	s.log.Info("Wallet unlocked", "address", rec.Address)
	return nil
}

// Lock wipes the key from memory but keeps the stored wallet.
func (s *Service) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

// Disconnect wipes the key and deletes the stored wallet.
func (s *Service) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNoWallet
	}
	address := s.address
	s.clear()

	if s.store != nil {
		if err := s.store.DeleteWallet(address); err != nil {
			return fmt.Errorf("failed to delete stored wallet: %w", err)
		}
	}

	s.log.Info("Wallet disconnected", "address", address)
	return nil
}

func (s *Service) clear() {
	if s.current != nil {
		s.current.Zero()
	}
	s.current = nil
	s.address = ""
	s.balance = 0
	s.balanceUpdatedAt = time.Time{}
}

// Current returns the session keypair, or nil.
func (s *Service) Current() *Keypair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Keypair returns the session keypair or why there is none.
func (s *Service) Keypair() (*Keypair, error) {
	s.mu.RLock()
	kp := s.current
	s.mu.RUnlock()

	if kp != nil {
		return kp, nil
	}
	if s.HasStoredWallet() {
		return nil, ErrWalletLocked
	}
	return nil, ErrNoWallet
}

// Address returns the session address, or "".
func (s *Service) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

// Balance returns the last fetched confirmed balance.
func (s *Service) Balance() (int64, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance, s.balanceUpdatedAt
}

// RefreshBalance fetches the confirmed balance of the session address.
func (s *Service) RefreshBalance(ctx context.Context) (int64, error) {
	address := s.Address()
	if address == "" {
		return 0, ErrNoWallet
	}
	if s.backend == nil {
		return 0, backend.ErrNotConnected
	}

	var balance int64
	info, err := s.backend.GetAddressInfo(ctx, address)
	switch {
	case errors.Is(err, backend.ErrAddressNotFound):
	case err != nil:
		return 0, err
	default:
		balance = info.Balance
	}

	s.mu.Lock()
	if s.address != address {
		s.mu.Unlock()
		return 0, ErrNoWallet
	}
	s.balance = balance
	s.balanceUpdatedAt = time.Now()
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.UpdateWalletBalance(address, balance); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("Failed to cache balance", "address", address, "error", err)
		}
	}

	s.log.Debug("Balance refreshed", "address", address, "balance", balance)
	return balance, nil
}

// UTXOs returns the unspent outputs of the session address.
func (s *Service) UTXOs(ctx context.Context) ([]backend.UTXO, error) {
	address := s.Address()
	if address == "" {
		return nil, ErrNoWallet
	}
	if s.backend == nil {
		return nil, backend.ErrNotConnected
	}

	utxos, err := s.backend.GetAddressUTXOs(ctx, address)
	if errors.Is(err, backend.ErrAddressNotFound) {
		return []backend.UTXO{}, nil
	}
	return utxos, err
}

// Status returns a snapshot of the session wallet.
func (s *Service) Status() *Status {
	s.mu.RLock()
	st := &Status{
		Network:   s.Network(),
		Connected: s.current != nil,
		Address:   s.address,
		Balance:   s.balance,
	}
	if s.current != nil {
		st.PublicKey = s.current.PublicKeyHex()
		st.ExplorerURL = s.keys.Params().ExplorerAddressURL(s.address)
	}
	if !s.balanceUpdatedAt.IsZero() {
		st.BalanceUpdatedAt = s.balanceUpdatedAt.Unix()
	}
	s.mu.RUnlock()

	st.Locked = !st.Connected && s.HasStoredWallet()
	return st
}
