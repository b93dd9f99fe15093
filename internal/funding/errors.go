package funding

import (
	"errors"
	"fmt"

	"github.com/btcfi-labs/btcfi-wallet/pkg/helpers"
)

// Kind classifies a failed funding attempt.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindNoSpendableOutputs Kind = "no_spendable_outputs"
	KindSigning            Kind = "signing"
	KindNetwork            Kind = "network"
	KindRelayRejected      Kind = "relay_rejected"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNoSpendableOutputs = errors.New("no spendable outputs")
	ErrSigning            = errors.New("signing failed")
	ErrNetwork            = errors.New("network error")
	ErrRelayRejected      = errors.New("relay rejected transaction")
)

var kindSentinels = map[Kind]error{
	KindValidation:         ErrValidation,
	KindInsufficientFunds:  ErrInsufficientFunds,
	KindNoSpendableOutputs: ErrNoSpendableOutputs,
	KindSigning:            ErrSigning,
	KindNetwork:            ErrNetwork,
	KindRelayRejected:      ErrRelayRejected,
}

// Error is a typed funding failure.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string

	// Set for KindInsufficientFunds.
	Required  int64
	Available int64

	// Set for KindNoSpendableOutputs.
	Address string

	// Verbatim relay response, set for KindRelayRejected.
	RelayText string

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// UserMessage is a short, actionable description for the person who
// requested the transfer.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindValidation:
		return fmt.Sprintf("Invalid request: %s.", e.Message)
	case KindInsufficientFunds:
		return fmt.Sprintf("Insufficient balance. Required: %s (amount plus fee), available: %s. Add funds to the wallet and try again.",
			helpers.FormatSats(e.Required), helpers.FormatSats(e.Available))
	case KindNoSpendableOutputs:
		return fmt.Sprintf("No spendable outputs found for %s. Wait for incoming funds to confirm and try again.", e.Address)
	case KindSigning:
		return fmt.Sprintf("Could not sign the transaction: %s. Nothing was broadcast.", e.Message)
	case KindNetwork:
		return fmt.Sprintf("Network error during %s: %s. Check connectivity and try again.", e.Stage, e.Message)
	case KindRelayRejected:
		return fmt.Sprintf("The network rejected the transaction: %s.", e.Message)
	default:
		return e.Message
	}
}

// KindOf returns the Kind of err, or "" if err is not a funding error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Stage: StageStart, Message: fmt.Sprintf(format, args...)}
}

func networkError(stage Stage, op string, err error) *Error {
	return &Error{Kind: KindNetwork, Stage: stage, Message: op, Err: err}
}

func signingError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindSigning, Stage: StageSign, Message: fmt.Sprintf(format, args...)}
}

func insufficientFunds(stage Stage, required, available int64) *Error {
	return &Error{
		Kind:      KindInsufficientFunds,
		Stage:     stage,
		Message:   fmt.Sprintf("need %d sats, have %d sats", required, available),
		Required:  required,
		Available: available,
	}
}
