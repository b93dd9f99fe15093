package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/btcfi-labs/btcfi-wallet/internal/faucet"
	"github.com/btcfi-labs/btcfi-wallet/internal/funding"
)

// ========================================
// Faucet handlers
// ========================================

// FaucetInfoResult is the response for faucet_info.
type FaucetInfoResult struct {
	Enabled       bool   `json:"enabled"`
	Address       string `json:"address,omitempty"`
	DefaultAmount int64  `json:"defaultAmount,omitempty"`
	MaxAmount     int64  `json:"maxAmount,omitempty"`
	Cooldown      string `json:"cooldown,omitempty"`
	PublicFaucet  string `json:"publicFaucet,omitempty"`
}

func (s *Server) faucetInfo(ctx context.Context, params json.RawMessage) (interface{}, error) {
	result := &FaucetInfoResult{PublicFaucet: s.builder.Params().FaucetURL}
	if s.faucet == nil {
		return result, nil
	}
	cfg := s.faucet.Config()
	result.Enabled = true
	result.Address = s.faucet.Address()
	result.DefaultAmount = cfg.DefaultAmount
	result.MaxAmount = cfg.MaxAmount
	result.Cooldown = cfg.Cooldown.String()
	return result, nil
}

// FaucetSendParams is the request for faucet_send. To defaults to the
// session wallet's address.
type FaucetSendParams struct {
	To     string `json:"to,omitempty"`
	Amount int64  `json:"amount,omitempty"`
}

func (s *Server) faucetSend(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.faucet == nil {
		return nil, faucet.ErrDisabled
	}

	var p FaucetSendParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Amount < 0 {
		return nil, invalidParams("amount must not be negative")
	}

	to := strings.TrimSpace(p.To)
	if to == "" {
		to = s.wallet.Address()
	}
	if to == "" {
		return nil, invalidParams("to is required when no wallet is connected")
	}

	res, err := s.faucet.Drip(ctx, to, p.Amount)
	if err != nil {
		return nil, err
	}
	s.broadcastFunding(res, to)
	return res, nil
}

// broadcastFunding emits the transfer event for a faucet result.
func (s *Server) broadcastFunding(res *funding.Result, to string) {
	payload := map[string]interface{}{
		"kind":   "faucet",
		"to":     to,
		"result": res,
	}
	if res.Success {
		s.wsHub.Broadcast(EventTransferBroadcast, payload)
		return
	}
	s.wsHub.Broadcast(EventTransferFailed, payload)
}
