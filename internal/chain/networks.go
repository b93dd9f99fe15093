package chain

import "time"

// DefaultNetwork is the profile used when none is configured.
const DefaultNetwork = "mutinynet"

// MutinyNet signet: 30 second blocks, single-key challenge.
const mutinyNetChallenge = "512102f7561d208dd9ae99bf497273e16f389bdbd6c4742ddb8e6b216e64fa2928ad8f51ae"

func init() {
	Register("mutinynet", MutinyNet)
	Register("signet", Signet)
	Register("testnet", Testnet)
	Register("regtest", Regtest)
}

// MutinyNet returns the MutinyNet signet profile.
func MutinyNet() *Params {
	return &Params{
		Name:        "mutinynet",
		DisplayName: "MutinyNet Signet",
		Kind:        KindSignet,
		Symbol:      "sBTC",
		Decimals:    8,

		Bech32HRP:        "tb",
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		WIF:              0xef,

		SignetChallenge: mutinyNetChallenge,

		Peers:       []string{"45.79.52.207:38333"},
		DefaultPort: "38333",
		RPCPort:     "38332",
		BlockTime:   30 * time.Second,

		APIURL:      "https://mutinynet.com/api",
		ExplorerURL: "https://mutinynet.com",
		FaucetURL:   "https://faucet.mutinynet.com",
	}
}

// Signet returns the default public signet profile.
func Signet() *Params {
	return &Params{
		Name:        "signet",
		DisplayName: "Bitcoin Signet",
		Kind:        KindSignet,
		Symbol:      "sBTC",
		Decimals:    8,

		Bech32HRP:        "tb",
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		WIF:              0xef,

		SignetChallenge: "512103ad5e0edad18cb1f0fc0d28a3d4f1f3e445640337489abb10404f2d1e086be430210359ef5021964fe22d6f8e05b2463c9540ce96883fe3b278760f048f5189f2e6c452ae",

		Peers:       []string{"seed.signet.bitcoin.sprovoost.nl:38333"},
		DefaultPort: "38333",
		RPCPort:     "38332",
		BlockTime:   10 * time.Minute,

		APIURL:      "https://mempool.space/signet/api",
		ExplorerURL: "https://mempool.space/signet",
	}
}

// Testnet returns the testnet3 profile.
func Testnet() *Params {
	return &Params{
		Name:        "testnet",
		DisplayName: "Bitcoin Testnet",
		Kind:        KindTestnet,
		Symbol:      "tBTC",
		Decimals:    8,

		Bech32HRP:        "tb",
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		WIF:              0xef,

		DefaultPort: "18333",
		RPCPort:     "18332",
		BlockTime:   10 * time.Minute,

		APIURL:      "https://mempool.space/testnet/api",
		ExplorerURL: "https://mempool.space/testnet",
	}
}

// Regtest returns a local regression test profile. API and explorer
// URLs point at a local esplora instance.
func Regtest() *Params {
	return &Params{
		Name:        "regtest",
		DisplayName: "Bitcoin Regtest",
		Kind:        KindRegtest,
		Symbol:      "rBTC",
		Decimals:    8,

		Bech32HRP:        "bcrt",
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		WIF:              0xef,

		DefaultPort: "18444",
		RPCPort:     "18443",
		BlockTime:   10 * time.Minute,

		APIURL:      "http://127.0.0.1:3002",
		ExplorerURL: "http://127.0.0.1:5000",
	}
}
