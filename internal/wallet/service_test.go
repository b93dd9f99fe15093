package wallet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/btcfi-labs/btcfi-wallet/internal/backend"
	"github.com/btcfi-labs/btcfi-wallet/internal/storage"
	"github.com/btcfi-labs/btcfi-wallet/pkg/logging"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	store, err := storage.New(&storage.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// newTestAPI serves the address endpoints of a mempool.space style API.
func newTestAPI(t *testing.T, address string, funded, spent int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/address/"+address, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":"` + address + `","chain_stats":{"funded_txo_count":2,"funded_txo_sum":` +
			itoa(funded) + `,"spent_txo_count":1,"spent_txo_sum":` + itoa(spent) +
			`,"tx_count":3},"mempool_stats":{"funded_txo_sum":0,"spent_txo_sum":0,"tx_count":0}}`))
	})
	mux.HandleFunc("/address/"+address+"/utxo", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"txid":"` + strings.Repeat("ab", 32) + `","vout":1,"status":{"confirmed":false},"value":` + itoa(funded-spent) + `}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, store *storage.Storage, b backend.Backend) *Service {
	t.Helper()
	svc, err := NewService(&ServiceConfig{
		Keys:    newTestManager(t),
		Storage: store,
		Backend: b,
		Logger:  logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestNewServiceRequiresKeys(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Error("NewService(nil) should fail")
	}
	if _, err := NewService(&ServiceConfig{}); err == nil {
		t.Error("NewService() without a key manager should fail")
	}
}

func TestServiceConnectInMemory(t *testing.T) {
	svc := newTestService(t, nil, nil)

	if _, err := svc.Keypair(); !errors.Is(err, ErrNoWallet) {
		t.Errorf("Keypair() error = %v, want ErrNoWallet", err)
	}

	kp, err := svc.Connect("  "+keyOneHex+"\n", "")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if svc.Address() != keyOneAddress {
		t.Errorf("Address() = %s, want %s", svc.Address(), keyOneAddress)
	}
	if svc.Current() != kp {
		t.Error("Current() is not the connected keypair")
	}

	if _, err := svc.Connect(keyOneHex, ""); !errors.Is(err, ErrWalletExists) {
		t.Errorf("second Connect() error = %v, want ErrWalletExists", err)
	}

	st := svc.Status()
	if !st.Connected || st.Locked || st.Network != "mutinynet" {
		t.Errorf("Status() = %+v", st)
	}
	if st.ExplorerURL != "https://mutinynet.com/address/"+keyOneAddress {
		t.Errorf("ExplorerURL = %s", st.ExplorerURL)
	}

	if err := svc.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if !kp.IsZeroed() {
		t.Error("Disconnect() should wipe the key")
	}
	if svc.Current() != nil || svc.Address() != "" {
		t.Error("Disconnect() should clear the session")
	}
	if err := svc.Disconnect(); !errors.Is(err, ErrNoWallet) {
		t.Errorf("second Disconnect() error = %v, want ErrNoWallet", err)
	}
}

func TestServiceConnectInvalidKey(t *testing.T) {
	svc := newTestService(t, nil, nil)

	_, err := svc.Connect("abc", "")
	if !IsValidationError(err) {
		t.Errorf("Connect() error = %v, want ValidationError", err)
	}
	if svc.Current() != nil {
		t.Error("invalid key must not become the session wallet")
	}
}

func TestServicePersistAndUnlock(t *testing.T) {
	store := newTestStorage(t)
	svc := newTestService(t, store, nil)

	kp, err := svc.Create(testPassword)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	address := svc.Address()

	rec, err := store.GetWallet(address)
	if err != nil {
		t.Fatalf("GetWallet() error = %v", err)
	}
	if rec.PublicKey != kp.PublicKeyHex() {
		t.Error("stored public key mismatch")
	}

	svc.Lock()
	if !kp.IsZeroed() {
		t.Error("Lock() should wipe the key")
	}
	if !svc.Status().Locked {
		t.Error("Status().Locked = false after Lock")
	}
	if _, err := svc.Keypair(); !errors.Is(err, ErrWalletLocked) {
		t.Errorf("Keypair() error = %v, want ErrWalletLocked", err)
	}

	if err := svc.Unlock("WrongPassword123!"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Unlock(wrong) error = %v, want ErrDecrypt", err)
	}

	// A fresh service over the same store, as after a daemon restart.
	restarted := newTestService(t, store, nil)
	if err := restarted.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if restarted.Address() != address {
		t.Errorf("Unlock() address = %s, want %s", restarted.Address(), address)
	}
	if err := restarted.Unlock(testPassword); err != nil {
		t.Errorf("Unlock() when unlocked error = %v", err)
	}

	if err := restarted.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if _, err := store.GetWallet(address); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("stored wallet survives Disconnect: %v", err)
	}
	if err := restarted.Unlock(testPassword); !errors.Is(err, ErrNotPersisted) {
		t.Errorf("Unlock() after Disconnect error = %v, want ErrNotPersisted", err)
	}
}

func TestServiceConnectReplacesStoredWallet(t *testing.T) {
	store := newTestStorage(t)
	svc := newTestService(t, store, nil)

	if _, err := svc.Create(testPassword); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	first := svc.Address()
	svc.Lock()

	if _, err := svc.Connect(keyOneHex, testPassword); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := store.GetWallet(first); !errors.Is(err, storage.ErrNotFound) {
		t.Error("previous wallet should be replaced")
	}
	rec, err := store.GetWalletByNetwork("mutinynet")
	if err != nil || rec.Address != keyOneAddress {
		t.Errorf("GetWalletByNetwork() = %+v, %v", rec, err)
	}
}

func TestServiceWeakPasswordNotPersisted(t *testing.T) {
	store := newTestStorage(t)
	svc := newTestService(t, store, nil)

	if _, err := svc.Connect(keyOneHex, "weak"); err == nil {
		t.Fatal("Connect() with weak password should fail")
	}
	if svc.Current() != nil {
		t.Error("failed Connect() must not leave a session wallet")
	}
	if svc.HasStoredWallet() {
		t.Error("failed Connect() must not persist")
	}
}

func TestServicePasswordWithoutStorage(t *testing.T) {
	svc := newTestService(t, nil, nil)
	if _, err := svc.Connect(keyOneHex, testPassword); !errors.Is(err, ErrNotPersisted) {
		t.Errorf("Connect() error = %v, want ErrNotPersisted", err)
	}
}

func TestServiceRefreshBalance(t *testing.T) {
	store := newTestStorage(t)
	api := newTestAPI(t, keyOneAddress, 150_000, 20_000)
	svc := newTestService(t, store, backend.NewMempoolBackend(api.URL, time.Second))

	if _, err := svc.RefreshBalance(context.Background()); !errors.Is(err, ErrNoWallet) {
		t.Errorf("RefreshBalance() error = %v, want ErrNoWallet", err)
	}

	if _, err := svc.Connect(keyOneHex, testPassword); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	balance, err := svc.RefreshBalance(context.Background())
	if err != nil {
		t.Fatalf("RefreshBalance() error = %v", err)
	}
	if balance != 130_000 {
		t.Errorf("RefreshBalance() = %d, want 130000", balance)
	}
	if st := svc.Status(); st.Balance != 130_000 || st.BalanceUpdatedAt == 0 {
		t.Errorf("Status() = %+v", st)
	}

	rec, err := store.GetWallet(keyOneAddress)
	if err != nil {
		t.Fatalf("GetWallet() error = %v", err)
	}
	if rec.Balance != 130_000 {
		t.Errorf("cached balance = %d, want 130000", rec.Balance)
	}

	utxos, err := svc.UTXOs(context.Background())
	if err != nil {
		t.Fatalf("UTXOs() error = %v", err)
	}
	if len(utxos) != 1 || utxos[0].Amount != 130_000 {
		t.Errorf("UTXOs() = %+v", utxos)
	}
}

func TestServiceRefreshBalanceUnknownAddress(t *testing.T) {
	api := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(api.Close)
	svc := newTestService(t, nil, backend.NewMempoolBackend(api.URL, time.Second))

	if _, err := svc.Connect(keyOneHex, ""); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	balance, err := svc.RefreshBalance(context.Background())
	if err != nil || balance != 0 {
		t.Errorf("RefreshBalance() = %d, %v, want 0, nil", balance, err)
	}
}

func TestServiceRefreshBalanceNoBackend(t *testing.T) {
	svc := newTestService(t, nil, nil)
	if _, err := svc.Connect(keyOneHex, ""); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := svc.RefreshBalance(context.Background()); !errors.Is(err, backend.ErrNotConnected) {
		t.Errorf("RefreshBalance() error = %v, want ErrNotConnected", err)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
