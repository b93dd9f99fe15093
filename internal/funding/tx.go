package funding

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/btcfi-labs/btcfi-wallet/internal/backend"
	"github.com/btcfi-labs/btcfi-wallet/internal/wallet"
)

// Plan is an assembled but unsigned funding transaction.
type Plan struct {
	Inputs        []backend.UTXO
	FundingScript []byte

	PaymentScript []byte
	Amount        int64

	ChangeScript []byte
	Change       int64 // 0 when the change output is omitted
	AbsorbedDust int64 // change at or below the dust limit, given to the miner

	Fee int64
}

// HasChange reports whether the plan carries a change output.
func (p *Plan) HasChange() bool {
	return p.Change > 0
}

// TotalIn returns the value of all inputs.
func (p *Plan) TotalIn() int64 {
	var total int64
	for _, u := range p.Inputs {
		total += u.Amount
	}
	return total
}

// newPlan lays out the outputs for sel: the payment first, then change
// back to the funding script only when it is above dustLimit.
func newPlan(sel *Selection, fundingScript, paymentScript []byte, amount, fee, dustLimit int64) *Plan {
	p := &Plan{
		Inputs:        sel.Inputs,
		FundingScript: fundingScript,
		PaymentScript: paymentScript,
		Amount:        amount,
		ChangeScript:  fundingScript,
		Fee:           fee,
	}

	change := sel.Total - amount - fee
	if change > dustLimit {
		p.Change = change
	} else {
		p.AbsorbedDust = change
	}
	return p
}

// assemble builds the unsigned PSBT for p. Every input carries its
// witness UTXO so it can be signed without the previous transaction.
func assemble(p *Plan) (*psbt.Packet, error) {
	tx := wire.NewMsgTx(wire.TxVersion)

	for _, u := range p.Inputs {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("invalid txid %s: %w", u.TxID, err)
		}
		txIn := wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), nil, nil)
		txIn.Sequence = wire.MaxTxInSequenceNum - 2 // opt in to RBF
		tx.AddTxIn(txIn)
	}

	tx.AddTxOut(wire.NewTxOut(p.Amount, p.PaymentScript))
	if p.HasChange() {
		tx.AddTxOut(wire.NewTxOut(p.Change, p.ChangeScript))
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to create psbt: %w", err)
	}

	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return nil, fmt.Errorf("failed to create psbt updater: %w", err)
	}
	for i, u := range p.Inputs {
		if err := updater.AddInWitnessUtxo(wire.NewTxOut(u.Amount, p.FundingScript), i); err != nil {
			return nil, fmt.Errorf("input %d: add witness utxo: %w", i, err)
		}
		if err := updater.AddInSighashType(txscript.SigHashAll, i); err != nil {
			return nil, fmt.Errorf("input %d: add sighash type: %w", i, err)
		}
	}

	return packet, nil
}

// prevOutFetcher indexes the witness UTXOs of a packet by outpoint.
func prevOutFetcher(packet *psbt.Packet) (*txscript.MultiPrevOutFetcher, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range packet.UnsignedTx.TxIn {
		if packet.Inputs[i].WitnessUtxo == nil {
			return nil, fmt.Errorf("input %d: missing witness utxo", i)
		}
		fetcher.AddPrevOut(in.PreviousOutPoint, packet.Inputs[i].WitnessUtxo)
	}
	return fetcher, nil
}

// sign adds a P2WPKH signature for every input, finalizes and extracts
// the transaction, then runs each input through the script engine. It
// either signs all inputs or fails with a signing error.
func sign(packet *psbt.Packet, kp *wallet.Keypair) (*wire.MsgTx, error) {
	priv := kp.PrivateKey()
	if priv == nil {
		return nil, signingError("funding key has been wiped")
	}
	pubKey := kp.PublicKey()

	fetcher, err := prevOutFetcher(packet)
	if err != nil {
		return nil, signingError("%v", err)
	}
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)

	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return nil, signingError("psbt updater: %v", err)
	}

	for i := range packet.UnsignedTx.TxIn {
		utxo := packet.Inputs[i].WitnessUtxo
		if !txscript.IsPayToWitnessPubKeyHash(utxo.PkScript) {
			return nil, signingError("input %d: funding script is not p2wpkh", i)
		}

		sig, err := txscript.RawTxInWitnessSignature(
			packet.UnsignedTx, sigHashes, i, utxo.Value, utxo.PkScript, txscript.SigHashAll, priv,
		)
		if err != nil {
			return nil, signingError("input %d: %v", i, err)
		}

		outcome, err := updater.Sign(i, sig, pubKey, nil, nil)
		if err != nil {
			return nil, signingError("input %d: %v", i, err)
		}
		if outcome != psbt.SignSuccesful {
			return nil, signingError("input %d: signature not accepted (outcome %d)", i, outcome)
		}
	}

	if err := psbt.MaybeFinalizeAll(packet); err != nil {
		return nil, signingError("finalize: %v", err)
	}

	tx, err := psbt.Extract(packet)
	if err != nil {
		return nil, signingError("extract: %v", err)
	}

	if err := verify(tx, fetcher); err != nil {
		return nil, signingError("%v", err)
	}
	return tx, nil
}

// verify executes every input script of tx against its previous output.
func verify(tx *wire.MsgTx, fetcher txscript.PrevOutputFetcher) error {
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for i, in := range tx.TxIn {
		prev := fetcher.FetchPrevOutput(in.PreviousOutPoint)
		if prev == nil {
			return fmt.Errorf("input %d: previous output not found", i)
		}
		vm, err := txscript.NewEngine(
			prev.PkScript, tx, i, txscript.StandardVerifyFlags, nil, sigHashes, prev.Value, fetcher,
		)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if err := vm.Execute(); err != nil {
			return fmt.Errorf("input %d: signature does not satisfy funding script: %w", i, err)
		}
	}
	return nil
}

// serialize returns the hex encoding of tx in network format.
func serialize(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("failed to serialize: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
