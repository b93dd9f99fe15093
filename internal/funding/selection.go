package funding

import (
	"sort"

	"github.com/btcfi-labs/btcfi-wallet/internal/backend"
)

// Strategy records how inputs were chosen.
type Strategy string

const (
	StrategySingle     Strategy = "single"
	StrategyAccumulate Strategy = "accumulate"
)

// Selection is the set of outputs chosen to fund a transfer.
type Selection struct {
	Inputs   []backend.UTXO
	Total    int64
	Target   int64 // amount + fee
	Strategy Strategy
}

// Change returns Total - Target.
func (s *Selection) Change() int64 {
	return s.Total - s.Target
}

// SelectInputs picks outputs to cover amount+fee. If the largest output
// covers the target on its own it is used alone; otherwise outputs are
// accumulated largest first until the target is met. There is no cap on
// the number of inputs.
func SelectInputs(utxos []backend.UTXO, amount, fee int64) (*Selection, error) {
	target := amount + fee

	sorted := make([]backend.UTXO, 0, len(utxos))
	for _, u := range utxos {
		if u.Amount > 0 {
			sorted = append(sorted, u)
		}
	}
	sortDescending(sorted)

	if len(sorted) == 0 {
		return nil, insufficientFunds(StageInputSelection, target, 0)
	}

	if sorted[0].Amount >= target {
		return &Selection{
			Inputs:   sorted[:1],
			Total:    sorted[0].Amount,
			Target:   target,
			Strategy: StrategySingle,
		}, nil
	}

	var total int64
	for i, u := range sorted {
		total += u.Amount
		if total >= target {
			return &Selection{
				Inputs:   sorted[:i+1],
				Total:    total,
				Target:   target,
				Strategy: StrategyAccumulate,
			}, nil
		}
	}

	// Total UTXO value disagrees with the balance check; report what is spendable.
	return nil, insufficientFunds(StageInputSelection, target, total)
}

// sortDescending orders by value, largest first. Ties are broken by
// outpoint so selection is deterministic.
func sortDescending(utxos []backend.UTXO) {
	sort.SliceStable(utxos, func(i, j int) bool {
		a, b := utxos[i], utxos[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		if a.TxID != b.TxID {
			return a.TxID < b.TxID
		}
		return a.Vout < b.Vout
	})
}
