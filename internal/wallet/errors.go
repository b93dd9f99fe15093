package wallet

import (
	"errors"
	"fmt"
)

var (
	ErrNoWallet       = errors.New("no wallet connected")
	ErrWalletExists   = errors.New("a wallet is already connected")
	ErrWalletLocked   = errors.New("wallet is locked")
	ErrNotPersisted   = errors.New("no stored wallet")
	ErrKeyZeroed      = errors.New("keypair has been wiped")
	ErrInvalidAddress = errors.New("invalid address")
)

// Fields reported by ValidationError.
const (
	FieldLength  = "length"
	FieldCharset = "charset"
	FieldScalar  = "scalar"
	FieldPhrase  = "phrase"
)

// ValidationError reports malformed key material supplied by the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid private key (%s): %s", e.Field, e.Message)
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
