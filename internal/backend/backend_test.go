package backend

import (
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		wantType Type
		wantErr  error
	}{
		{"mempool", &Config{Type: TypeMempool, URL: "https://mutinynet.com/api"}, TypeMempool, nil},
		{"default type", &Config{URL: "https://mutinynet.com/api"}, TypeMempool, nil},
		{"esplora", &Config{Type: TypeEsplora, URL: "https://blockstream.info/api"}, TypeEsplora, nil},
		{"unsupported", &Config{Type: "electrum", URL: "tcp://x"}, "", ErrUnsupportedBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if b.Type() != tt.wantType {
				t.Errorf("Type() = %s, want %s", b.Type(), tt.wantType)
			}
			if b.IsConnected() {
				t.Error("should not be connected initially")
			}
		})
	}

	if _, err := New(&Config{}); err == nil {
		t.Error("New() without url should fail")
	}
}

func TestNewMempoolBackend(t *testing.T) {
	b := NewMempoolBackend("https://mutinynet.com/api/", 0)

	if b.BaseURL() != "https://mutinynet.com/api" {
		t.Errorf("baseURL = %s, trailing slash should be removed", b.BaseURL())
	}
	if b.httpClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %s, want default %s", b.httpClient.Timeout, DefaultTimeout)
	}

	b = NewMempoolBackend("https://mutinynet.com/api", 3*time.Second)
	if b.httpClient.Timeout != 3*time.Second {
		t.Errorf("timeout = %s, want 3s", b.httpClient.Timeout)
	}
}

func TestBroadcastErrorReason(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			"bitcoind rpc error",
			`sendrawtransaction RPC error: {"code":-26,"message":"bad-txns-inputs-missingorspent"}`,
			"bad-txns-inputs-missingorspent",
		},
		{"json error field", `{"error":"txn-mempool-conflict"}`, "txn-mempool-conflict"},
		{"plain text", "  min relay fee not met\n", "min relay fee not met"},
		{"broken json", `error: {"code":`, `error: {"code":`},
		{"empty object", `{}`, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &BroadcastError{StatusCode: 400, Body: tt.body}
			if got := e.Reason(); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
			if !errors.Is(e, ErrBroadcastRejected) {
				t.Error("BroadcastError should match ErrBroadcastRejected")
			}
		})
	}
}
