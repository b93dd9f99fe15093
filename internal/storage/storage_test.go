package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// setupTestStorage creates a storage instance in a temp directory.
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "btcfi-storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := New(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := New(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Join(tmpDir, DBFileName)); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if store.DB() == nil {
		t.Error("DB() returned nil")
	}
	if store.Path() != filepath.Join(tmpDir, DBFileName) {
		t.Errorf("Path() = %s", store.Path())
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandPath("~/.test"); got != filepath.Join(home, ".test") {
		t.Errorf("ExpandPath(~/.test) = %s", got)
	}
	if got := ExpandPath("/var/lib/btcfi"); got != "/var/lib/btcfi" {
		t.Errorf("ExpandPath(abs) = %s", got)
	}
}

func TestStorageSchema(t *testing.T) {
	store := setupTestStorage(t)

	for _, table := range []string{"settings", "wallets", "transfers"} {
		var name string
		err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("%s table not found: %v", table, err)
		}
	}
}

func TestSettings(t *testing.T) {
	store := setupTestStorage(t)

	if _, err := store.GetSetting("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSetting(missing) error = %v, want ErrNotFound", err)
	}

	if err := store.SetSetting("active_wallet", "tb1qa"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := store.SetSetting("active_wallet", "tb1qb"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}

	got, err := store.GetSetting("active_wallet")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if got != "tb1qb" {
		t.Errorf("GetSetting = %s, want tb1qb", got)
	}
}
