package storage

import (
	"database/sql"
	"time"
)

// WalletRecord is the persisted session wallet.
type WalletRecord struct {
	Address          string `json:"address"`
	Network          string `json:"network"`
	PublicKey        string `json:"public_key"`
	EncryptedKey     []byte `json:"-"`
	Balance          int64  `json:"balance"`
	BalanceUpdatedAt int64  `json:"balance_updated_at,omitempty"`
	CreatedAt        int64  `json:"created_at"`
}

// SaveWallet inserts or replaces a wallet record.
func (s *Storage) SaveWallet(w *WalletRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.CreatedAt == 0 {
		w.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.Exec(`
		INSERT INTO wallets (address, network, public_key, encrypted_key, balance, balance_updated_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			network = excluded.network,
			public_key = excluded.public_key,
			encrypted_key = excluded.encrypted_key
	`, w.Address, w.Network, w.PublicKey, w.EncryptedKey, w.Balance, nullInt(w.BalanceUpdatedAt), w.CreatedAt)
	return err
}

// GetWallet returns the wallet stored for address, or ErrNotFound.
func (s *Storage) GetWallet(address string) (*WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT address, network, public_key, encrypted_key, balance, balance_updated_at, created_at
		FROM wallets WHERE address = ?
	`, address)
	return scanWallet(row)
}

// GetWalletByNetwork returns the most recently created wallet for a network.
func (s *Storage) GetWalletByNetwork(network string) (*WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT address, network, public_key, encrypted_key, balance, balance_updated_at, created_at
		FROM wallets WHERE network = ?
		ORDER BY created_at DESC LIMIT 1
	`, network)
	return scanWallet(row)
}

// DeleteWallet removes a stored wallet. Deleting a missing wallet is not an error.
func (s *Storage) DeleteWallet(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM wallets WHERE address = ?", address)
	return err
}

// UpdateWalletBalance caches the last known confirmed balance.
func (s *Storage) UpdateWalletBalance(address string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE wallets SET balance = ?, balance_updated_at = ? WHERE address = ?
	`, balance, time.Now().Unix(), address)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWallet(row *sql.Row) (*WalletRecord, error) {
	var w WalletRecord
	var balanceUpdated sql.NullInt64

	err := row.Scan(&w.Address, &w.Network, &w.PublicKey, &w.EncryptedKey, &w.Balance, &balanceUpdated, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if balanceUpdated.Valid {
		w.BalanceUpdatedAt = balanceUpdated.Int64
	}
	return &w, nil
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
