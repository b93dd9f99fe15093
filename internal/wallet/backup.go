package wallet

import (
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// BackupPhrase encodes the 32-byte private key as a 24-word BIP39 phrase.
// The phrase is the key itself, not an HD seed.
func BackupPhrase(kp *Keypair) (string, error) {
	priv := kp.PrivateKey()
	if priv == nil {
		return "", ErrKeyZeroed
	}
	raw := priv.Serialize()
	defer SecureClear(raw)
	return bip39.NewMnemonic(raw)
}

// RestoreFromPhrase rebuilds a keypair from a phrase made by BackupPhrase.
func (m *Manager) RestoreFromPhrase(phrase string) (*Keypair, error) {
	phrase = strings.Join(strings.Fields(strings.ToLower(phrase)), " ")

	raw, err := bip39.EntropyFromMnemonic(phrase)
	if err != nil {
		return nil, &ValidationError{Field: FieldPhrase, Message: err.Error()}
	}
	defer SecureClear(raw)

	if len(raw) != 32 {
		return nil, &ValidationError{Field: FieldPhrase, Message: "backup phrase must have 24 words"}
	}
	return m.fromScalar(raw)
}
