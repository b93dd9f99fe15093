package funding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/btcfi-labs/btcfi-wallet/internal/storage"
)

func TestResultApply(t *testing.T) {
	var ok storage.Transfer
	(&Result{Success: true, TxID: "abcd", Fee: 1000, Change: 500_000, InputCount: 2}).Apply(&ok)
	assert.Equal(t, storage.TransferStatusBroadcast, ok.Status)
	assert.Equal(t, "abcd", ok.TxID)
	assert.Equal(t, int64(1000), ok.Fee)
	assert.Equal(t, 2, ok.InputCount)

	rejected := failed(&Error{
		Kind:      KindRelayRejected,
		Stage:     StageBroadcast,
		Message:   "bad-txns-inputs-missingorspent",
		RelayText: missingOrSpent,
	})
	var bad storage.Transfer
	rejected.Apply(&bad)
	assert.Equal(t, storage.TransferStatusFailed, bad.Status)
	assert.Equal(t, string(KindRelayRejected), bad.ErrorKind)
	assert.Contains(t, bad.Error, missingOrSpent)
	assert.Empty(t, bad.TxID)
}
