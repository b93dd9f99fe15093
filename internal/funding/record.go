package funding

import (
	"github.com/btcfi-labs/btcfi-wallet/internal/storage"
)

// Apply copies the outcome of a send into a transfer record.
func (r *Result) Apply(t *storage.Transfer) {
	if r.Success {
		t.Status = storage.TransferStatusBroadcast
		t.TxID = r.TxID
		t.Fee = r.Fee
		t.Change = r.Change
		t.InputCount = r.InputCount
		t.ErrorKind = ""
		t.Error = ""
		return
	}
	t.Status = storage.TransferStatusFailed
	t.ErrorKind = string(r.ErrorKind)
	t.Error = r.Error
	if r.Err != nil && r.Err.RelayText != "" {
		t.Error = r.Error + " (" + r.Err.RelayText + ")"
	}
}
