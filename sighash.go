package bitvmx

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitvmx-labs/protocol-builder/graph"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// propagateIdentifiers visits every internal transaction in topological
// order, computes its txid once its inputs are fully pointed at already-
// resolved previous outputs, and rewrites every downstream input's
// previous-output hash. A single pass suffices because order guarantees
// every predecessor has already been visited.
func (p *Protocol) propagateIdentifiers(order []string) error {
	for _, name := range order {
		node, err := p.Graph.Node(name)
		if err != nil {
			return wrapErr(KindStructural, name, err)
		}

		txid := node.Tx.TxHash()
		if err := p.Graph.SetTxid(name, txid); err != nil {
			return wrapErr(KindStructural, name, err)
		}
	}
	return nil
}

// computeSighashes visits every internal transaction in topological order
// and computes the BIP-143/BIP-341 sighash for each of its inputs, keyed by
// (transaction, input index, variant) in the graph's signature store.
func (p *Protocol) computeSighashes(order []string) error {
	for _, name := range order {
		node, err := p.Graph.Node(name)
		if err != nil {
			return wrapErr(KindStructural, name, err)
		}

		prevouts, err := p.Graph.GetPrevouts(name)
		if err != nil {
			return wrapErr(KindStructural, name, err)
		}

		fetcher := buildPrevOutFetcher(node.Tx, prevouts)
		sigHashes := txscript.NewTxSigHashes(node.Tx, fetcher)

		for idx, input := range node.Inputs {
			if err := computeInputSighashes(node.Tx, idx, input, sigHashes, fetcher); err != nil {
				return wrapErr(KindStructural, fmt.Sprintf("%s:%d", name, idx), err)
			}
		}
	}
	return nil
}

func buildPrevOutFetcher(tx *wire.MsgTx, prevouts []*wire.TxOut) txscript.PrevOutputFetcher {
	set := make(map[wire.OutPoint]*wire.TxOut, len(prevouts))
	for i, p := range prevouts {
		set[tx.TxIn[i].PreviousOutPoint] = p
	}
	return txscript.NewMultiPrevOutFetcher(set)
}

func computeInputSighashes(tx *wire.MsgTx, idx int, input *graph.InputSpendingInfo,
	sigHashes *txscript.TxSigHashes, fetcher txscript.PrevOutputFetcher) error {

	sighashType := input.Sighash.Value

	switch input.SpendMode.Kind {
	case txtypes.SpendSegwit:
		scriptCode, err := segwitScriptCode(input.OutputType)
		if err != nil {
			return err
		}
		amt := int64(input.OutputType.Value)
		digest, err := txscript.CalcWitnessSigHash(scriptCode, sigHashes, sighashType, tx, idx, amt)
		if err != nil {
			return err
		}
		input.SetHashedMessage(txtypes.SegwitVariant(), digest)

	case txtypes.SpendKeyOnly:
		digest, err := txscript.CalcTaprootSignatureHash(sigHashes, sighashType, tx, idx, fetcher)
		if err != nil {
			return err
		}
		input.SetHashedMessage(txtypes.KeyPathVariant(), digest)

	case txtypes.SpendScripts:
		if input.OutputType == nil {
			return graph.ErrMissingConnection
		}
		for _, leafIdx := range input.SpendMode.Leaves {
			if leafIdx < 0 || leafIdx >= len(input.OutputType.Leaves) {
				return fmt.Errorf("leaf index %d out of range", leafIdx)
			}
			leaf := txscript.NewBaseTapLeaf(input.OutputType.Leaves[leafIdx].Script())
			digest, err := txscript.CalcTapscriptSignaturehash(
				sigHashes, sighashType, tx, idx, fetcher, leaf,
			)
			if err != nil {
				return err
			}
			input.SetHashedMessage(txtypes.LeafVariant(leafIdx), digest)
		}

	default:
		return fmt.Errorf("bitvmx: unsupported spend mode %s", input.SpendMode.Kind)
	}
	return nil
}

// segwitScriptCode returns the BIP-143 "script code" for a SegWit v0 input:
// the witness script itself for P2WSH, or the implied P2PKH script built
// from the output's public key for P2WPKH.
func segwitScriptCode(ot *txtypes.OutputType) ([]byte, error) {
	if ot == nil {
		return nil, graph.ErrMissingConnection
	}

	if ot.Kind == txtypes.OutputSegwitScript {
		if ot.Script == nil {
			return nil, graph.ErrMissingConnection
		}
		return ot.Script.Script(), nil
	}

	if ot.PublicKey == nil {
		return nil, graph.ErrMissingConnection
	}
	pubKeyHash := btcutil.Hash160(ot.PublicKey.SerializeCompressed())

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pubKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}
