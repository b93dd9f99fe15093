package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/btcfi-labs/btcfi-wallet/internal/backend"
	"github.com/btcfi-labs/btcfi-wallet/internal/funding"
	"github.com/btcfi-labs/btcfi-wallet/internal/storage"
	"github.com/btcfi-labs/btcfi-wallet/internal/wallet"
	"github.com/btcfi-labs/btcfi-wallet/pkg/helpers"
)

// ========================================
// Wallet handlers
// ========================================

// WalletKeyResult is the response for wallet_generate and wallet_restore.
// The private key is only returned by wallet_generate.
type WalletKeyResult struct {
	Address     string `json:"address"`
	PublicKey   string `json:"publicKey"`
	PrivateKey  string `json:"privateKey,omitempty"`
	WIF         string `json:"wif,omitempty"`
	Persisted   bool   `json:"persisted"`
	ExplorerURL string `json:"explorerUrl"`
}

// WalletGenerateParams is the request for wallet_generate.
type WalletGenerateParams struct {
	Password string `json:"password,omitempty"` // persists the key when set
}

func (s *Server) walletGenerate(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p WalletGenerateParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Password != "" {
		if err := wallet.ValidatePassword(p.Password); err != nil {
			return nil, invalidParams("%v", err)
		}
	}

	kp, err := s.wallet.Create(p.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to generate wallet: %w", err)
	}

	result := s.keyResult(kp, p.Password != "")
	result.PrivateKey = kp.PrivateKeyHex()
	result.WIF = kp.WIF()

	s.wsHub.Broadcast(EventWalletConnected, s.wallet.Status())
	return result, nil
}

// WalletRestoreParams is the request for wallet_restore. Exactly one of
// PrivateKey, WIF and Phrase must be set.
type WalletRestoreParams struct {
	PrivateKey string `json:"privateKey,omitempty"`
	WIF        string `json:"wif,omitempty"`
	Phrase     string `json:"phrase,omitempty"`
	Password   string `json:"password,omitempty"`
}

func (s *Server) walletRestore(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p WalletRestoreParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	set := 0
	for _, v := range []string{p.PrivateKey, p.WIF, p.Phrase} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	if set != 1 {
		return nil, invalidParams("exactly one of privateKey, wif or phrase is required")
	}
	if p.Password != "" {
		if err := wallet.ValidatePassword(p.Password); err != nil {
			return nil, invalidParams("%v", err)
		}
	}

	var kp *wallet.Keypair
	switch {
	case p.PrivateKey != "":
		restored, err := s.wallet.Connect(p.PrivateKey, p.Password)
		if err != nil {
			return nil, err
		}
		kp = restored
	default:
		var (
			restored *wallet.Keypair
			err      error
		)
		if p.WIF != "" {
			restored, err = s.wallet.Keys().WIFToKeypair(strings.TrimSpace(p.WIF))
			if err != nil {
				return nil, invalidParams("%v", err)
			}
		} else {
			restored, err = s.wallet.Keys().RestoreFromPhrase(p.Phrase)
			if err != nil {
				return nil, err
			}
		}
		if err := s.wallet.ConnectKeypair(restored, p.Password); err != nil {
			restored.Zero()
			return nil, err
		}
		kp = restored
	}

	s.wsHub.Broadcast(EventWalletConnected, s.wallet.Status())
	return s.keyResult(kp, p.Password != ""), nil
}

func (s *Server) keyResult(kp *wallet.Keypair, persisted bool) *WalletKeyResult {
	address := s.wallet.Keys().AddressFor(kp)
	return &WalletKeyResult{
		Address:     address,
		PublicKey:   kp.PublicKeyHex(),
		Persisted:   persisted,
		ExplorerURL: s.wallet.Keys().Params().ExplorerAddressURL(address),
	}
}

// WalletValidateAddressParams is the request for wallet_validateAddress.
type WalletValidateAddressParams struct {
	Address string `json:"address"`
}

// WalletValidateAddressResult is the response for wallet_validateAddress.
type WalletValidateAddressResult struct {
	Address string `json:"address"`
	Valid   bool   `json:"valid"`
	Network string `json:"network"`
}

func (s *Server) walletValidateAddress(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p WalletValidateAddressParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	address := strings.TrimSpace(p.Address)
	return &WalletValidateAddressResult{
		Address: address,
		Valid:   s.wallet.Keys().IsValidAddress(address),
		Network: s.wallet.Network(),
	}, nil
}

func (s *Server) walletStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return s.wallet.Status(), nil
}

// WalletUnlockParams is the request for wallet_unlock.
type WalletUnlockParams struct {
	Password string `json:"password"`
}

func (s *Server) walletUnlock(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p WalletUnlockParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Password == "" {
		return nil, invalidParams("password is required")
	}

	if err := s.wallet.Unlock(p.Password); err != nil {
		return nil, fmt.Errorf("failed to unlock wallet: %w", err)
	}

	status := s.wallet.Status()
	s.wsHub.Broadcast(EventWalletConnected, status)
	return status, nil
}

func (s *Server) walletLock(ctx context.Context, params json.RawMessage) (interface{}, error) {
	s.wallet.Lock()
	return s.wallet.Status(), nil
}

func (s *Server) walletDisconnect(ctx context.Context, params json.RawMessage) (interface{}, error) {
	address := s.wallet.Address()
	if err := s.wallet.Disconnect(); err != nil {
		return nil, err
	}
	s.wsHub.Broadcast(EventWalletDisconnected, map[string]string{"address": address})
	return map[string]interface{}{"success": true}, nil
}

// WalletBalanceResult is the response for wallet_getBalance.
type WalletBalanceResult struct {
	Address   string `json:"address"`
	Balance   int64  `json:"balance"` // sats
	BTC       string `json:"btc"`
	Formatted string `json:"formatted"`
	UpdatedAt int64  `json:"updatedAt"`
}

func (s *Server) walletGetBalance(ctx context.Context, params json.RawMessage) (interface{}, error) {
	balance, err := s.wallet.RefreshBalance(ctx)
	if err != nil {
		return nil, err
	}
	_, updated := s.wallet.Balance()

	result := &WalletBalanceResult{
		Address:   s.wallet.Address(),
		Balance:   balance,
		BTC:       helpers.SatoshisToBTC(balance),
		Formatted: helpers.FormatSats(balance),
		UpdatedAt: updated.Unix(),
	}
	s.wsHub.Broadcast(EventBalanceUpdated, result)
	return result, nil
}

// WalletUTXOsResult is the response for wallet_getUTXOs.
type WalletUTXOsResult struct {
	Address string         `json:"address"`
	UTXOs   []backend.UTXO `json:"utxos"`
	Total   int64          `json:"total"`
	Count   int            `json:"count"`
}

func (s *Server) walletGetUTXOs(ctx context.Context, params json.RawMessage) (interface{}, error) {
	utxos, err := s.wallet.UTXOs(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, u := range utxos {
		total += u.Amount
	}
	return &WalletUTXOsResult{
		Address: s.wallet.Address(),
		UTXOs:   utxos,
		Total:   total,
		Count:   len(utxos),
	}, nil
}

func (s *Server) walletBackupPhrase(ctx context.Context, params json.RawMessage) (interface{}, error) {
	kp, err := s.wallet.Keypair()
	if err != nil {
		return nil, err
	}
	phrase, err := wallet.BackupPhrase(kp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup phrase: %w", err)
	}
	return map[string]interface{}{
		"phrase": phrase,
		"words":  len(strings.Fields(phrase)),
	}, nil
}

// WalletSendParams is the request for wallet_send.
type WalletSendParams struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"` // sats
}

// WalletSendResult is the response for wallet_send. Funding failures are
// reported in the embedded result, not as a JSON-RPC error.
type WalletSendResult struct {
	*funding.Result
	TransferID string `json:"transferId"`
}

func (s *Server) walletSend(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p WalletSendParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	kp, err := s.wallet.Keypair()
	if err != nil {
		return nil, err
	}
	from := s.wallet.Address()
	to := strings.TrimSpace(p.To)

	transfer := &storage.Transfer{
		ID:          uuid.NewString(),
		Kind:        storage.TransferKindSend,
		Network:     s.wallet.Network(),
		FromAddress: from,
		ToAddress:   to,
		Amount:      p.Amount,
		Status:      storage.TransferStatusPending,
	}
	s.recordTransfer(transfer)

	started := time.Now()
	res := s.builder.Send(ctx, funding.Request{
		From:        kp,
		FromAddress: from,
		ToAddress:   to,
		Amount:      p.Amount,
	})
	res.Apply(transfer)
	s.recordTransfer(transfer)

	if res.Success {
		s.log.Info("Transfer broadcast", "id", transfer.ID, "txid", res.TxID, "elapsed", time.Since(started).Round(time.Millisecond))
		s.wsHub.Broadcast(EventTransferBroadcast, transfer)
	} else {
		s.log.Warn("Transfer failed", "id", transfer.ID, "kind", res.ErrorKind, "error", res.Error)
		s.wsHub.Broadcast(EventTransferFailed, transfer)
	}

	return &WalletSendResult{Result: res, TransferID: transfer.ID}, nil
}
