// Package wallet manages the single-key hot wallet: key generation and
// restore, P2WPKH address derivation and address validation for one
// explicit network profile.
package wallet

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/btcfi-labs/btcfi-wallet/internal/chain"
)

// PrivateKeyHexLen is the length of a hex encoded private key.
const PrivateKeyHexLen = 64

// Keypair is a secp256k1 keypair. It is immutable once created, except
// that its owner may wipe it with Zero.
type Keypair struct {
	mu     sync.RWMutex
	priv   *btcec.PrivateKey
	pub    []byte // 33-byte compressed
	wif    string
	zeroed bool
}

func newKeypair(priv *btcec.PrivateKey, net *chaincfg.Params) (*Keypair, error) {
	wif, err := btcutil.NewWIF(priv, net, true)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WIF: %w", err)
	}
	return &Keypair{
		priv: priv,
		pub:  priv.PubKey().SerializeCompressed(),
		wif:  wif.String(),
	}, nil
}

// PrivateKey returns the signing key, or nil once the keypair was wiped.
func (k *Keypair) PrivateKey() *btcec.PrivateKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.zeroed {
		return nil
	}
	return k.priv
}

// PublicKey returns a copy of the compressed public key.
func (k *Keypair) PublicKey() []byte {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]byte(nil), k.pub...)
}

// PublicKeyHex returns the compressed public key as hex.
func (k *Keypair) PublicKeyHex() string {
	return hex.EncodeToString(k.PublicKey())
}

// PrivateKeyHex returns the private scalar as 64 hex characters.
func (k *Keypair) PrivateKeyHex() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.zeroed {
		return ""
	}
	b := k.priv.Serialize()
	defer SecureClear(b)
	return hex.EncodeToString(b)
}

// WIF returns the wallet import format encoding of the private key.
func (k *Keypair) WIF() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.zeroed {
		return ""
	}
	return k.wif
}

// Zero wipes the private key from memory. The keypair is unusable afterwards.
func (k *Keypair) Zero() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.zeroed {
		return
	}
	k.priv.Zero()
	k.wif = ""
	k.zeroed = true
}

// IsZeroed reports whether Zero has been called.
func (k *Keypair) IsZeroed() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.zeroed
}

// Manager creates keypairs and derives addresses for one network.
type Manager struct {
	params *chain.Params
	net    *chaincfg.Params
}

// NewManager returns a key manager bound to the given network profile.
func NewManager(params *chain.Params) (*Manager, error) {
	net, err := params.ChainCfg()
	if err != nil {
		return nil, err
	}
	return &Manager{params: params, net: net}, nil
}

// Params returns the network profile.
func (m *Manager) Params() *chain.Params {
	return m.params
}

// ChainParams returns the btcd chain parameters derived from the profile.
func (m *Manager) ChainParams() *chaincfg.Params {
	return m.net
}

// Generate creates a new random keypair.
func (m *Manager) Generate() (*Keypair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return newKeypair(priv, m.net)
}

// Restore rebuilds a keypair from a 64 character hex private key.
func (m *Manager) Restore(privateKeyHex string) (*Keypair, error) {
	if len(privateKeyHex) != PrivateKeyHexLen {
		return nil, &ValidationError{
			Field:   FieldLength,
			Message: fmt.Sprintf("expected %d hex characters, got %d", PrivateKeyHexLen, len(privateKeyHex)),
		}
	}
	for i := 0; i < len(privateKeyHex); i++ {
		if !isHexChar(privateKeyHex[i]) {
			return nil, &ValidationError{
				Field:   FieldCharset,
				Message: fmt.Sprintf("non-hex character at position %d", i),
			}
		}
	}

	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, &ValidationError{Field: FieldCharset, Message: err.Error()}
	}
	defer SecureClear(raw)

	return m.fromScalar(raw)
}

// fromScalar checks that raw is a non-zero scalar below the curve order.
func (m *Manager) fromScalar(raw []byte) (*Keypair, error) {
	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(raw)
	defer scalar.Zero()
	if overflow {
		return nil, &ValidationError{Field: FieldScalar, Message: "private key is not below the curve order"}
	}
	if scalar.IsZero() {
		return nil, &ValidationError{Field: FieldScalar, Message: "private key is zero"}
	}

	priv, _ := btcec.PrivKeyFromBytes(raw)
	return newKeypair(priv, m.net)
}

func isHexChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// AddressFor derives the P2WPKH address of a keypair.
func (m *Manager) AddressFor(kp *Keypair) string {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(kp.PublicKey()), m.net)
	if err != nil {
		// A 20-byte program always encodes.
		panic(fmt.Sprintf("wallet: p2wpkh encoding failed: %v", err))
	}
	return addr.EncodeAddress()
}

// ScriptFor returns the P2WPKH output script of a keypair.
func (m *Manager) ScriptFor(kp *Keypair) []byte {
	script, err := m.AddressScript(m.AddressFor(kp))
	if err != nil {
		panic(fmt.Sprintf("wallet: p2wpkh script failed: %v", err))
	}
	return script
}

// IsValidAddress reports whether address decodes to an output script on
// this network.
func (m *Manager) IsValidAddress(address string) bool {
	_, err := m.AddressScript(address)
	return err == nil
}

// AddressScript decodes address for this network and returns its output script.
func (m *Manager) AddressScript(address string) ([]byte, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	decoded, err := btcutil.DecodeAddress(address, m.net)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if !decoded.IsForNet(m.net) {
		return nil, fmt.Errorf("%w: not a %s address", ErrInvalidAddress, m.params.Name)
	}
	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return script, nil
}

// WIFToKeypair imports a WIF encoded key for this network.
func (m *Manager) WIFToKeypair(wifStr string) (*Keypair, error) {
	wif, err := btcutil.DecodeWIF(wifStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode WIF: %w", err)
	}
	if !wif.IsForNet(m.net) {
		return nil, fmt.Errorf("WIF is not for network %s", m.params.Name)
	}
	raw := wif.PrivKey.Serialize()
	defer SecureClear(raw)
	return m.fromScalar(raw)
}
