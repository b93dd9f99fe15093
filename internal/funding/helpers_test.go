package funding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btcfi-labs/btcfi-wallet/internal/backend"
	"github.com/btcfi-labs/btcfi-wallet/internal/chain"
	"github.com/btcfi-labs/btcfi-wallet/internal/wallet"
	"github.com/btcfi-labs/btcfi-wallet/pkg/logging"
)

// Throwaway test keys. Never fund these on a real network.
const (
	fundingKeyHex = "1e99423a4ed27608a15a2616a2b0e9e52ced330ac530edcc32c8ffc6a526aedd"
	payeeKeyHex   = "0c28fca386c7a227600b2fe50b7cae11ec86d3bf1fbe471be89827e19d72aa1d"
	otherKeyHex   = "c28a9f80738f770d527803a566cf6fc3edf6cea586c4fc4a5223a5ad797e1ac3"

	mainnetAddress = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
)

func testManager(t *testing.T) *wallet.Manager {
	t.Helper()
	m, err := wallet.NewManager(chain.MutinyNet())
	require.NoError(t, err)
	return m
}

func testKeypair(t *testing.T, m *wallet.Manager, privHex string) *wallet.Keypair {
	t.Helper()
	kp, err := m.Restore(privHex)
	require.NoError(t, err)
	return kp
}

type builderFixture struct {
	keys    *wallet.Manager
	chain   *fakeChain
	builder *Builder
	from    *wallet.Keypair
	fromAdr string
	payee   string
}

func newFixture(t *testing.T, cfg Config) *builderFixture {
	t.Helper()
	keys := testManager(t)
	fc := newFakeChain(keys)

	b, err := NewBuilder(cfg, keys, fc, logging.Discard())
	require.NoError(t, err)

	from := testKeypair(t, keys, fundingKeyHex)
	payee := testKeypair(t, keys, payeeKeyHex)
	return &builderFixture{
		keys:    keys,
		chain:   fc,
		builder: b,
		from:    from,
		fromAdr: keys.AddressFor(from),
		payee:   keys.AddressFor(payee),
	}
}

func utxo(id int, amount int64) backend.UTXO {
	return backend.UTXO{
		TxID:      fmt.Sprintf("%064x", id),
		Vout:      uint32(id % 2),
		Amount:    amount,
		Confirmed: true,
	}
}
