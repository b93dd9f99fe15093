// Package chain defines the network profiles the wallet can operate on.
// A profile is an explicit value passed to every component that needs it;
// nothing in the wallet reads network settings from package state.
package chain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

var (
	ErrUnknownNetwork = errors.New("unknown network")
	ErrInvalidParams  = errors.New("invalid network params")
)

// Kind is the family a network profile belongs to.
type Kind string

const (
	KindMainnet Kind = "mainnet"
	KindTestnet Kind = "testnet"
	KindSignet  Kind = "signet"
	KindRegtest Kind = "regtest"
)

// Params describes one Bitcoin network profile.
type Params struct {
	// Identity
	Name        string // registry key, e.g. "mutinynet"
	DisplayName string
	Kind        Kind
	Symbol      string
	Decimals    uint8

	// Encoding
	Bech32HRP        string
	PubKeyHashAddrID byte
	ScriptHashAddrID byte
	WIF              byte

	// Signet only: hex-encoded block challenge script.
	SignetChallenge string

	// Peers and ports
	Peers       []string
	DefaultPort string
	RPCPort     string
	BlockTime   time.Duration

	// Public services
	APIURL      string // mempool.space/Esplora compatible REST base
	ExplorerURL string
	FaucetURL   string
}

// Validate checks that the profile is complete enough to build transactions.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil", ErrInvalidParams)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidParams)
	}
	if p.Bech32HRP == "" {
		return fmt.Errorf("%w: %s: bech32 prefix required", ErrInvalidParams, p.Name)
	}
	if p.Kind == KindSignet {
		if _, err := p.challengeBytes(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidParams, p.Name, err)
		}
	}
	return nil
}

func (p *Params) challengeBytes() ([]byte, error) {
	if p.SignetChallenge == "" {
		return nil, errors.New("signet challenge required")
	}
	b, err := hex.DecodeString(p.SignetChallenge)
	if err != nil {
		return nil, fmt.Errorf("signet challenge: %w", err)
	}
	return b, nil
}

// ChainCfg converts the profile into btcd chain parameters.
func (p *Params) ChainCfg() (*chaincfg.Params, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var cfg chaincfg.Params
	switch p.Kind {
	case KindMainnet:
		cfg = chaincfg.MainNetParams
	case KindTestnet:
		cfg = chaincfg.TestNet3Params
	case KindRegtest:
		cfg = chaincfg.RegressionNetParams
	case KindSignet:
		challenge, _ := p.challengeBytes()
		seeds := make([]chaincfg.DNSSeed, 0, len(p.Peers))
		for _, peer := range p.Peers {
			host, _, _ := strings.Cut(peer, ":")
			seeds = append(seeds, chaincfg.DNSSeed{Host: host})
		}
		cfg = chaincfg.CustomSignetParams(challenge, seeds)
	default:
		return nil, fmt.Errorf("%w: %s: kind %q", ErrInvalidParams, p.Name, p.Kind)
	}

	cfg.Name = p.Name
	cfg.Bech32HRPSegwit = p.Bech32HRP
	cfg.PubKeyHashAddrID = p.PubKeyHashAddrID
	cfg.ScriptHashAddrID = p.ScriptHashAddrID
	cfg.PrivateKeyID = p.WIF
	if p.DefaultPort != "" {
		cfg.DefaultPort = p.DefaultPort
	}
	return &cfg, nil
}

// ExplorerTxURL returns the block explorer link for a transaction.
func (p *Params) ExplorerTxURL(txid string) string {
	if p.ExplorerURL == "" {
		return ""
	}
	return strings.TrimSuffix(p.ExplorerURL, "/") + "/tx/" + txid
}

// ExplorerAddressURL returns the block explorer link for an address.
func (p *Params) ExplorerAddressURL(address string) string {
	if p.ExplorerURL == "" {
		return ""
	}
	return strings.TrimSuffix(p.ExplorerURL, "/") + "/address/" + address
}

// Clone returns a deep copy of the profile.
func (p *Params) Clone() *Params {
	c := *p
	c.Peers = append([]string(nil), p.Peers...)
	return &c
}

// registry maps profile names to their constructors.
var registry = map[string]func() *Params{}

// Register adds a network profile constructor.
func Register(name string, fn func() *Params) {
	registry[strings.ToLower(name)] = fn
}

// Get returns a fresh copy of the named profile.
func Get(name string) (*Params, error) {
	fn, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
	return fn(), nil
}

// List returns the registered profile names, sorted.
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupported returns true if the profile is registered.
func IsSupported(name string) bool {
	_, ok := registry[strings.ToLower(name)]
	return ok
}
