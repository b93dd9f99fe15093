package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcfi-labs/btcfi-wallet/internal/storage"
)

// Version of the daemon
const Version = "0.1.0-dev"

// parseParams decodes params into v. Missing params leave v untouched.
func parseParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return invalidParams("%v", err)
	}
	return nil
}

// ========================================
// Network handlers
// ========================================

// NetworkInfoResult is the response for network_info.
type NetworkInfoResult struct {
	Network         string `json:"network"`
	DisplayName     string `json:"displayName"`
	Bech32HRP       string `json:"bech32Hrp"`
	SignetChallenge string `json:"signetChallenge,omitempty"`
	APIURL          string `json:"apiUrl"`
	ExplorerURL     string `json:"explorerUrl"`
	FaucetURL       string `json:"faucetUrl,omitempty"`
	BlockTime       string `json:"blockTime"`
	BlockHeight     int64  `json:"blockHeight,omitempty"`
	Backend         string `json:"backend,omitempty"`
	FixedFee        int64  `json:"fixedFee"`
	DustLimit       int64  `json:"dustLimit"`
	Version         string `json:"version"`
	Uptime          string `json:"uptime"`
	WSClients       int    `json:"wsClients"`
}

func (s *Server) networkInfo(ctx context.Context, params json.RawMessage) (interface{}, error) {
	p := s.builder.Params()
	cfg := s.builder.Config()

	result := &NetworkInfoResult{
		Network:         p.Name,
		DisplayName:     p.DisplayName,
		Bech32HRP:       p.Bech32HRP,
		SignetChallenge: p.SignetChallenge,
		APIURL:          p.APIURL,
		ExplorerURL:     p.ExplorerURL,
		FaucetURL:       p.FaucetURL,
		BlockTime:       p.BlockTime.String(),
		FixedFee:        cfg.FixedFee,
		DustLimit:       cfg.DustLimit,
		Version:         Version,
		Uptime:          time.Since(s.started).Round(time.Second).String(),
		WSClients:       s.wsHub.ClientCount(),
	}

	if s.backend != nil {
		result.Backend = string(s.backend.Type())
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if height, err := s.backend.GetBlockHeight(ctx); err == nil {
			result.BlockHeight = height
		} else {
			s.log.Debug("Block height unavailable", "error", err)
		}
	}

	return result, nil
}

// ========================================
// Transfer handlers
// ========================================

// TransfersListParams is the request for transfers_list.
type TransfersListParams struct {
	Address string `json:"address,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Status  string `json:"status,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// TransfersListResult is the response for transfers_list.
type TransfersListResult struct {
	Transfers []*storage.Transfer `json:"transfers"`
	Count     int                 `json:"count"`
}

func (s *Server) transfersList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.store == nil {
		return nil, fmt.Errorf("storage not configured")
	}

	var p TransfersListParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	switch storage.TransferKind(p.Kind) {
	case "", storage.TransferKindSend, storage.TransferKindFaucet:
	default:
		return nil, invalidParams("unknown kind %q", p.Kind)
	}
	switch storage.TransferStatus(p.Status) {
	case "", storage.TransferStatusPending, storage.TransferStatusBroadcast, storage.TransferStatusFailed:
	default:
		return nil, invalidParams("unknown status %q", p.Status)
	}
	if p.Limit <= 0 || p.Limit > 500 {
		p.Limit = 50
	}

	transfers, err := s.store.ListTransfers(storage.TransferFilter{
		Address: p.Address,
		Kind:    storage.TransferKind(p.Kind),
		Status:  storage.TransferStatus(p.Status),
		Limit:   p.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	if transfers == nil {
		transfers = []*storage.Transfer{}
	}

	return &TransfersListResult{Transfers: transfers, Count: len(transfers)}, nil
}

// recordTransfer saves t if storage is configured.
func (s *Server) recordTransfer(t *storage.Transfer) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveTransfer(t); err != nil {
		s.log.Error("Failed to record transfer", "id", t.ID, "error", err)
	}
}
