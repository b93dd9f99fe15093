package wallet

import (
	"bytes"
	"errors"
	"testing"
)

const testPassword = "TestPassword123!"

func TestEncryptDecryptKey(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)

	sealed, err := EncryptKey(key, testPassword)
	if err != nil {
		t.Fatalf("EncryptKey() error = %v", err)
	}
	if bytes.Contains(sealed.Ciphertext, key) {
		t.Error("ciphertext contains the plaintext key")
	}

	blob, err := sealed.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	decoded, err := UnmarshalEncryptedKey(blob)
	if err != nil {
		t.Fatalf("UnmarshalEncryptedKey() error = %v", err)
	}

	plain, err := DecryptKey(decoded, testPassword)
	if err != nil {
		t.Fatalf("DecryptKey() error = %v", err)
	}
	if !bytes.Equal(plain, key) {
		t.Error("DecryptKey() returned a different key")
	}
}

func TestDecryptKeyWrongPassword(t *testing.T) {
	sealed, err := EncryptKey(bytes.Repeat([]byte{0x01}, 32), testPassword)
	if err != nil {
		t.Fatalf("EncryptKey() error = %v", err)
	}

	if _, err := DecryptKey(sealed, "WrongPassword123!"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("DecryptKey() error = %v, want ErrDecrypt", err)
	}

	sealed.Ciphertext[0] ^= 0xff
	if _, err := DecryptKey(sealed, testPassword); !errors.Is(err, ErrDecrypt) {
		t.Errorf("DecryptKey(tampered) error = %v, want ErrDecrypt", err)
	}
}

func TestEncryptKeyRejects(t *testing.T) {
	if _, err := EncryptKey(make([]byte, 31), testPassword); err == nil {
		t.Error("EncryptKey() accepted a 31-byte key")
	}
	if _, err := EncryptKey(make([]byte, 32), "weak"); err == nil {
		t.Error("EncryptKey() accepted a weak password")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"short1!", true},
		{"alllowercase", true},
		{"lowerUPPER", true},
		{"lowerUPPER1", false},
		{"lower1!!", false},
		{"UPPER1!!", false},
		{testPassword, false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestSecureClear(t *testing.T) {
	b := []byte{1, 2, 3}
	SecureClear(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Errorf("SecureClear() left %v", b)
	}
}
