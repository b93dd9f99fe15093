package funding

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/btcfi-labs/btcfi-wallet/internal/backend"
	"github.com/btcfi-labs/btcfi-wallet/internal/wallet"
)

const missingOrSpent = `sendrawtransaction RPC error: {"code":-26,"message":"bad-txns-inputs-missingorspent"}`

// fakeChain is an in-memory relay. A broadcast is rejected when any of
// its inputs was already spent by an earlier broadcast.
type fakeChain struct {
	mu sync.Mutex

	keys    *wallet.Manager
	utxos   map[string][]backend.UTXO
	spent   map[wire.OutPoint]bool
	scripts map[string]string // hex output script -> address
	nextID  int

	// balanceOverride replaces the computed balance of an address.
	balanceOverride map[string]int64

	// trackMempool hides spent outputs and credits new outputs to known
	// addresses, like an indexer that follows the mempool.
	trackMempool bool

	infoErr      error
	utxoErr      error
	broadcastErr error
	blockUTXOs   bool

	broadcasts []*wire.MsgTx
	calls      map[string]int
}

func newFakeChain(keys *wallet.Manager) *fakeChain {
	return &fakeChain{
		keys:            keys,
		utxos:           make(map[string][]backend.UTXO),
		spent:           make(map[wire.OutPoint]bool),
		scripts:         make(map[string]string),
		balanceOverride: make(map[string]int64),
		calls:           make(map[string]int),
	}
}

// fund credits address with one confirmed output per amount.
func (f *fakeChain) fund(address string, amounts ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if script, err := f.keys.AddressScript(address); err == nil {
		f.scripts[hex.EncodeToString(script)] = address
	}
	for _, amt := range amounts {
		f.nextID++
		f.utxos[address] = append(f.utxos[address], backend.UTXO{
			TxID:          fmt.Sprintf("%064x", f.nextID),
			Vout:          uint32(f.nextID % 3),
			Amount:        amt,
			Confirmed:     true,
			Confirmations: 6,
		})
	}
}

func (f *fakeChain) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

func (f *fakeChain) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

func (f *fakeChain) lastTx() *wire.MsgTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.broadcasts) == 0 {
		return nil
	}
	return f.broadcasts[len(f.broadcasts)-1]
}

// prevOuts returns a fetcher for the outputs tx spends.
func (f *fakeChain) prevOuts(tx *wire.MsgTx) *txscript.MultiPrevOutFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for _, in := range tx.TxIn {
		for addr, list := range f.utxos {
			script, err := f.keys.AddressScript(addr)
			if err != nil {
				continue
			}
			for _, u := range list {
				if outpointOf(u) == in.PreviousOutPoint {
					fetcher.AddPrevOut(in.PreviousOutPoint, wire.NewTxOut(u.Amount, script))
				}
			}
		}
	}
	return fetcher
}

func (f *fakeChain) Type() backend.Type                { return "fake" }
func (f *fakeChain) Connect(ctx context.Context) error { return nil }
func (f *fakeChain) Close() error                      { return nil }
func (f *fakeChain) IsConnected() bool                 { return true }

func (f *fakeChain) GetAddressInfo(ctx context.Context, address string) (*backend.AddressInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["info"]++

	if f.infoErr != nil {
		return nil, f.infoErr
	}
	if bal, ok := f.balanceOverride[address]; ok {
		return &backend.AddressInfo{Address: address, Balance: bal}, nil
	}
	var bal int64
	for _, u := range f.utxos[address] {
		if f.trackMempool && f.spent[outpointOf(u)] {
			continue
		}
		bal += u.Amount
	}
	return &backend.AddressInfo{Address: address, Balance: bal, FundedSum: bal}, nil
}

func (f *fakeChain) GetAddressUTXOs(ctx context.Context, address string) ([]backend.UTXO, error) {
	f.mu.Lock()
	f.calls["utxo"]++
	block, err := f.blockUTXOs, f.utxoErr
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", backend.ErrRequestFailed, ctx.Err())
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []backend.UTXO
	for _, u := range f.utxos[address] {
		if f.trackMempool && f.spent[outpointOf(u)] {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeChain) GetTransaction(ctx context.Context, txID string) (*backend.Transaction, error) {
	return nil, backend.ErrTxNotFound
}

func (f *fakeChain) BroadcastTransaction(ctx context.Context, rawTxHex string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["broadcast"]++

	if f.broadcastErr != nil {
		return "", f.broadcastErr
	}

	raw, err := hex.DecodeString(rawTxHex)
	if err != nil {
		return "", &backend.BroadcastError{StatusCode: 400, Body: "TX decode failed"}
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return "", &backend.BroadcastError{StatusCode: 400, Body: "TX decode failed"}
	}

	for _, in := range tx.TxIn {
		if f.spent[in.PreviousOutPoint] {
			return "", &backend.BroadcastError{StatusCode: 400, Body: missingOrSpent}
		}
	}
	for _, in := range tx.TxIn {
		f.spent[in.PreviousOutPoint] = true
	}

	txid := tx.TxHash()
	if f.trackMempool {
		for i, out := range tx.TxOut {
			if addr, ok := f.scripts[hex.EncodeToString(out.PkScript)]; ok {
				f.utxos[addr] = append(f.utxos[addr], backend.UTXO{
					TxID:   txid.String(),
					Vout:   uint32(i),
					Amount: out.Value,
				})
			}
		}
	}

	f.broadcasts = append(f.broadcasts, tx)
	return txid.String(), nil
}

func (f *fakeChain) GetBlockHeight(ctx context.Context) (int64, error) { return 1000, nil }

func (f *fakeChain) GetFeeEstimates(ctx context.Context) (*backend.FeeEstimate, error) {
	return &backend.FeeEstimate{MinimumFee: 1}, nil
}

func outpointOf(u backend.UTXO) wire.OutPoint {
	op := wire.OutPoint{Index: u.Vout}
	if h, err := chainhash.NewHashFromStr(u.TxID); err == nil {
		op.Hash = *h
	}
	return op
}

var _ backend.Backend = (*fakeChain)(nil)
