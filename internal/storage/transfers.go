package storage

import (
	"database/sql"
	"time"
)

// TransferKind distinguishes user sends from operator faucet drips.
type TransferKind string

const (
	TransferKindSend   TransferKind = "send"
	TransferKindFaucet TransferKind = "faucet"
)

// TransferStatus is the outcome of a funding attempt.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusBroadcast TransferStatus = "broadcast"
	TransferStatusFailed    TransferStatus = "failed"
)

// Transfer records one funding attempt.
type Transfer struct {
	ID          string         `json:"id"`
	Kind        TransferKind   `json:"kind"`
	Network     string         `json:"network"`
	FromAddress string         `json:"from_address"`
	ToAddress   string         `json:"to_address"`
	Amount      int64          `json:"amount"`
	Fee         int64          `json:"fee"`
	Change      int64          `json:"change"`
	InputCount  int            `json:"input_count"`
	TxID        string         `json:"txid,omitempty"`
	Status      TransferStatus `json:"status"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   int64          `json:"created_at"`
	UpdatedAt   int64          `json:"updated_at"`
}

// TransferFilter narrows ListTransfers.
type TransferFilter struct {
	Address string // matches from or to
	Kind    TransferKind
	Status  TransferStatus
	Limit   int
}

// SaveTransfer inserts or updates a transfer.
func (s *Storage) SaveTransfer(t *Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO transfers (
			id, kind, network, from_address, to_address,
			amount, fee, change, input_count,
			txid, status, error_kind, error,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fee = excluded.fee,
			change = excluded.change,
			input_count = excluded.input_count,
			txid = excluded.txid,
			status = excluded.status,
			error_kind = excluded.error_kind,
			error = excluded.error,
			updated_at = excluded.updated_at
	`,
		t.ID, t.Kind, t.Network, t.FromAddress, t.ToAddress,
		t.Amount, t.Fee, t.Change, t.InputCount,
		nullString(t.TxID), t.Status, nullString(t.ErrorKind), nullString(t.Error),
		t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetTransfer returns a transfer by ID, or ErrNotFound.
func (s *Storage) GetTransfer(id string) (*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(transferSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	transfers, err := scanTransfers(rows)
	if err != nil {
		return nil, err
	}
	if len(transfers) == 0 {
		return nil, ErrNotFound
	}
	return transfers[0], nil
}

// ListTransfers returns transfers newest first.
func (s *Storage) ListTransfers(f TransferFilter) ([]*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := transferSelect + " WHERE 1=1"
	var args []interface{}
	if f.Address != "" {
		query += " AND (from_address = ? OR to_address = ?)"
		args = append(args, f.Address, f.Address)
	}
	if f.Kind != "" {
		query += " AND kind = ?"
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return scanTransfers(rows)
}

// LastTransferTo returns the newest broadcast transfer of kind to address,
// or ErrNotFound.
func (s *Storage) LastTransferTo(kind TransferKind, address string) (*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(transferSelect+`
		WHERE kind = ? AND to_address = ? AND status = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, kind, address, TransferStatusBroadcast)
	if err != nil {
		return nil, err
	}
	transfers, err := scanTransfers(rows)
	if err != nil {
		return nil, err
	}
	if len(transfers) == 0 {
		return nil, ErrNotFound
	}
	return transfers[0], nil
}

const transferSelect = `
	SELECT id, kind, network, from_address, to_address,
		   amount, fee, change, input_count,
		   txid, status, error_kind, error,
		   created_at, updated_at
	FROM transfers`

func scanTransfers(rows *sql.Rows) ([]*Transfer, error) {
	defer rows.Close()

	var transfers []*Transfer
	for rows.Next() {
		var t Transfer
		var txid, errorKind, errMsg sql.NullString

		err := rows.Scan(
			&t.ID, &t.Kind, &t.Network, &t.FromAddress, &t.ToAddress,
			&t.Amount, &t.Fee, &t.Change, &t.InputCount,
			&txid, &t.Status, &errorKind, &errMsg,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		t.TxID = txid.String
		t.ErrorKind = errorKind.String
		t.Error = errMsg.String

		transfers = append(transfers, &t)
	}
	return transfers, rows.Err()
}
