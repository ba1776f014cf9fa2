package bitvmx

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitvmx-labs/protocol-builder/graph"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// SpeedupInput names one UTXO the CPFP child transaction consumes: a
// previously broadcast output (a parent transaction's speedup anchor, or the
// separate funding UTXO) together with the spend requirements needed to
// sign for it.
type SpeedupInput struct {
	Outpoint   wire.OutPoint
	Output     *txtypes.OutputType
	Sighash    txtypes.SighashSpec
	SpendMode  txtypes.SpendMode
	SpendChoice SpendChoice
}

// BuildSpeedupTransaction assembles, signs, and returns a fully witnessed
// CPFP child transaction that consumes every entry of utxos plus funding,
// paying fee satoshis and returning the remainder to changeScriptPubKey.
func (p *Protocol) BuildSpeedupTransaction(ctx context.Context, utxos []SpeedupInput,
	funding SpeedupInput, changeScriptPubKey []byte, fee txtypes.Amount) (*wire.MsgTx, error) {

	inputs := append(append([]SpeedupInput{}, utxos...), funding)
	if len(inputs) == 0 {
		return nil, wrapErr(KindStructural, "speedup", fmt.Errorf("no inputs supplied"))
	}

	tx := wire.NewMsgTx(2)
	infos := make([]*graph.InputSpendingInfo, len(inputs))
	prevouts := make([]*wire.TxOut, len(inputs))

	var totalIn int64
	for i, in := range inputs {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: in.Outpoint,
			Sequence:         wire.MaxTxInSequenceNum,
		})
		infos[i] = graph.NewInputSpendingInfo(in.Sighash, in.SpendMode, in.Output)
		prevouts[i] = &wire.TxOut{
			Value:    int64(in.Output.Value),
			PkScript: in.Output.ScriptPubKey,
		}
		totalIn += int64(in.Output.Value)
	}

	change := totalIn - int64(fee)
	if change < 0 {
		return nil, wrapErr(KindAmount, "speedup", ErrAutoAmountUnderflow)
	}
	tx.AddTxOut(&wire.TxOut{Value: change, PkScript: changeScriptPubKey})

	fetcher := buildPrevOutFetcher(tx, prevouts)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for idx, info := range infos {
		if err := computeInputSighashes(tx, idx, info, sigHashes, fetcher); err != nil {
			return nil, wrapErr(KindStructural, fmt.Sprintf("speedup:%d", idx), err)
		}
	}

	for idx, info := range infos {
		if err := p.signInput(ctx, "speedup", idx, info); err != nil {
			return nil, wrapErr(KindSigning, fmt.Sprintf("speedup:%d", idx), err)
		}
	}

	for idx, info := range infos {
		witness, err := buildWitness(info, inputs[idx].SpendChoice)
		if err != nil {
			return nil, wrapErr(KindAssembly, fmt.Sprintf("speedup:%d", idx), err)
		}
		tx.TxIn[idx].Witness = witness
	}

	return tx, nil
}
