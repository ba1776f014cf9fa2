package bitvmx

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"

	"github.com/bitvmx-labs/protocol-builder/graph"
	"github.com/bitvmx-labs/protocol-builder/scripts"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// SpendChoice tells the witness assembler which of an input's allowed
// spending paths to actually use when more than one was kept open at build
// time (a taproot output with several willing leaves).
type SpendChoice struct {
	// LeafIndex selects the leaf to spend, as an index into the spent
	// output's Leaves; it must be listed in SpendMode.Leaves. Ignored
	// for SpendSegwit and SpendKeyOnly inputs. A negative value picks the
	// first allowed leaf.
	LeafIndex int
}

// DefaultChoice lets the assembler pick the sole or first allowed leaf.
func DefaultChoice() SpendChoice {
	return SpendChoice{LeafIndex: -1}
}

// LeafChoice pins the spend to leaf i.
func LeafChoice(i int) SpendChoice {
	return SpendChoice{LeafIndex: i}
}

// TransactionToSend assembles a broadcast-ready copy of transaction name's
// wire.MsgTx, filling every input's witness from the signature store.
// choices supplies, for inputs with more than one allowed leaf, which one to
// actually use; missing entries fall back to DefaultChoice. Requires the
// protocol to be Signed.
func (p *Protocol) TransactionToSend(name string, choices map[int]SpendChoice) (*wire.MsgTx, error) {
	if p.state != StateSigned {
		return nil, wrapErr(KindState, name, ErrNotBuilt)
	}

	node, err := p.Graph.Node(name)
	if err != nil {
		return nil, wrapErr(KindAssembly, name, err)
	}

	tx := node.Tx.Copy()
	for idx, input := range node.Inputs {
		choice, ok := choices[idx]
		if !ok {
			choice = DefaultChoice()
		}

		witness, err := buildWitness(input, choice)
		if err != nil {
			return nil, wrapErr(KindAssembly, fmt.Sprintf("%s:%d", name, idx), err)
		}
		tx.TxIn[idx].Witness = witness
	}

	return tx, nil
}

func buildWitness(input *graph.InputSpendingInfo, choice SpendChoice) (wire.TxWitness, error) {
	switch input.SpendMode.Kind {
	case txtypes.SpendSegwit:
		return segwitWitness(input)
	case txtypes.SpendKeyOnly:
		return keyPathWitness(input)
	case txtypes.SpendScripts:
		return scriptPathWitness(input, choice)
	default:
		return nil, fmt.Errorf("%w: %s\n%s", ErrUnsupportedSignMode, input.SpendMode.Kind, spew.Sdump(input.SpendMode))
	}
}

func segwitWitness(input *graph.InputSpendingInfo) (wire.TxWitness, error) {
	ot := input.OutputType

	switch ot.Kind {
	case txtypes.OutputSegwitKey, txtypes.OutputSpeedup:
		sig, ok := input.Signature(txtypes.SegwitVariant())
		if !ok {
			return nil, fmt.Errorf("%w: segwit input", ErrMissingSignature)
		}
		return wire.TxWitness{sig.Serialize(), ot.PublicKey.SerializeCompressed()}, nil
	case txtypes.OutputSegwitScript:
		if ot.Script.SignMode() == txtypes.SignSkip {
			return wire.TxWitness{ot.Script.Script()}, nil
		}
		sig, ok := input.Signature(txtypes.SegwitVariant())
		if !ok {
			return nil, fmt.Errorf("%w: segwit input", ErrMissingSignature)
		}
		return wire.TxWitness{sig.Serialize(), ot.Script.Script()}, nil
	default:
		return nil, fmt.Errorf("%w: segwit spend of %s output", ErrUnsupportedSignMode, ot.Kind)
	}
}

func keyPathWitness(input *graph.InputSpendingInfo) (wire.TxWitness, error) {
	sig, ok := input.Signature(txtypes.KeyPathVariant())
	if !ok {
		return nil, fmt.Errorf("%w: taproot key-path input", ErrMissingSignature)
	}
	return wire.TxWitness{sig.Serialize()}, nil
}

func scriptPathWitness(input *graph.InputSpendingInfo, choice SpendChoice) (wire.TxWitness, error) {
	ot := input.OutputType
	if len(input.SpendMode.Leaves) == 0 {
		return nil, fmt.Errorf("%w: no leaves allowed on this input", ErrInconsistentSpendChoice)
	}

	leafIdx := choice.LeafIndex
	if leafIdx < 0 {
		leafIdx = input.SpendMode.Leaves[0]
	} else if !containsInt(input.SpendMode.Leaves, leafIdx) {
		return nil, fmt.Errorf("%w: leaf %d was not kept open for this input", ErrInconsistentSpendChoice, leafIdx)
	}
	if leafIdx < 0 || leafIdx >= len(ot.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of range", leafIdx)
	}
	leaf := ot.Leaves[leafIdx]

	tree, _, err := scripts.BuildTaprootSpendInfo(ot.InternalKey, ot.Leaves)
	if err != nil {
		return nil, err
	}
	controlBlock := tree.LeafMerkleProofs[leafIdx].ToControlBlock(ot.InternalKey)
	controlBlockBytes, err := controlBlock.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("building control block: %w", err)
	}

	variant := txtypes.LeafVariant(leafIdx)

	switch leaf.SignMode() {
	case txtypes.SignSkip:
		return wire.TxWitness{leaf.Script(), controlBlockBytes}, nil

	case txtypes.SignSingle, txtypes.SignAggregate:
		sig, ok := input.Signature(variant)
		if !ok {
			return nil, fmt.Errorf("%w: leaf %d", ErrMissingSignature, leafIdx)
		}
		return wire.TxWitness{sig.Serialize(), leaf.Script(), controlBlockBytes}, nil

	case txtypes.SignWinternitz:
		sig, ok := input.Signature(variant)
		if !ok {
			return nil, fmt.Errorf("%w: leaf %d", ErrMissingSignature, leafIdx)
		}
		items, err := winternitzWitnessItems(sig.Winternitz)
		if err != nil {
			return nil, err
		}
		items = append(items, leaf.Script(), controlBlockBytes)
		return items, nil

	default:
		return nil, fmt.Errorf("%w: %s on leaf %d\n%s", ErrUnsupportedSignMode, leaf.SignMode(), leafIdx,
			spew.Sdump(leaf))
	}
}

// winternitzWitnessItems lays out the (preimage, digit) pairs in the order
// appendOTSCheckSig consumes them: the chain for digit index 0 is verified
// first, so its pair must end up on top of the stack, i.e. last in the
// returned slice.
func winternitzWitnessItems(sig *txtypes.WinternitzSignature) (wire.TxWitness, error) {
	if sig == nil {
		return nil, fmt.Errorf("%w: missing winternitz signature", ErrMissingSignature)
	}

	total := len(sig.Digits)
	items := make(wire.TxWitness, 0, 2*total)
	for i := total - 1; i >= 0; i-- {
		items = append(items, sig.ChainHashes[i], scriptNumBytes(sig.Digits[i]))
	}
	return items, nil
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// scriptNumBytes minimally encodes a small non-negative value the way
// Bitcoin Script numbers are represented on the stack: little-endian
// magnitude with an extra zero byte only when the high bit of the last byte
// would otherwise be mistaken for the sign bit.
func scriptNumBytes(v byte) []byte {
	if v == 0 {
		return nil
	}
	if v&0x80 != 0 {
		return []byte{v, 0x00}
	}
	return []byte{v}
}
