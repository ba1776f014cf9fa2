package bitvmx

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitvmx-labs/protocol-builder/graph"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// AddTransaction creates a new, empty transaction node by name.
func (p *Protocol) AddTransaction(name string, version int32, locktime uint32) error {
	p.demote()
	if err := p.Graph.AddTransaction(name, version, locktime); err != nil {
		return wrapErr(KindStructural, name, err)
	}
	return nil
}

// AddOutput appends an output to the named transaction and returns its
// index.
func (p *Protocol) AddOutput(name string, ot *txtypes.OutputType) (int, error) {
	p.demote()
	idx, err := p.Graph.AddOutput(name, ot)
	if err != nil {
		return 0, wrapErr(KindStructural, name, err)
	}
	return idx, nil
}

// AddInput appends an input slot to the named transaction and returns its
// index. The input's previous-output pointer is filled in by a later
// Connect/ConnectExternal call.
func (p *Protocol) AddInput(name string, sighash txtypes.SighashSpec,
	mode txtypes.SpendMode, sequence uint32) (int, error) {

	p.demote()
	idx, err := p.Graph.AddInput(name, sighash, mode, sequence)
	if err != nil {
		return 0, wrapErr(KindStructural, name, err)
	}
	return idx, nil
}

// resolveOutputSpec turns an OutputSpec into a concrete output index on
// from, creating the output if the spec is Auto. Last resolves to the
// current last output index at the moment of the call and never rebinds
// to a later append.
func (p *Protocol) resolveOutputSpec(from string, spec txtypes.OutputSpec) (int, error) {
	switch spec.Kind {
	case txtypes.OutputSpecIndex:
		return spec.Index, nil
	case txtypes.OutputSpecAuto:
		return p.AddOutput(from, spec.Auto)
	case txtypes.OutputSpecLast:
		node, err := p.Graph.Node(from)
		if err != nil {
			return 0, wrapErr(KindStructural, from, err)
		}
		if len(node.OutputTypes) == 0 {
			return 0, wrapErr(KindStructural, from, ErrOutputIndexOutOfRange)
		}
		return len(node.OutputTypes) - 1, nil
	default:
		return 0, wrapErr(KindStructural, from, fmt.Errorf("unknown output spec kind"))
	}
}

// resolveInputSpec turns an InputSpec into a concrete input index on to,
// creating the input (with default sequence) if the spec is Auto.
func (p *Protocol) resolveInputSpec(to string, spec txtypes.InputSpec) (int, error) {
	switch spec.Kind {
	case txtypes.InputSpecIndex:
		return spec.Index, nil
	case txtypes.InputSpecAuto:
		return p.AddInput(to, spec.Sighash, spec.SpendMode, 0xffffffff)
	default:
		return 0, wrapErr(KindStructural, to, fmt.Errorf("unknown input spec kind"))
	}
}

// Connect resolves output and input specs (creating an output/input if
// either is Auto) and links them with a new connection.
func (p *Protocol) Connect(connectionName, from string, output txtypes.OutputSpec,
	to string, input txtypes.InputSpec) error {

	p.demote()

	outputIdx, err := p.resolveOutputSpec(from, output)
	if err != nil {
		return err
	}
	inputIdx, err := p.resolveInputSpec(to, input)
	if err != nil {
		return err
	}

	if err := p.Graph.Connect(connectionName, from, outputIdx, to, inputIdx); err != nil {
		return wrapErr(KindStructural, connectionName, translateGraphErr(err))
	}
	return nil
}

// translateGraphErr maps a subset of the graph package's own sentinels onto
// their root-level counterparts, so callers checking errors.Is against this
// package's exported errors see them regardless of which layer detected the
// condition.
func translateGraphErr(err error) error {
	if errors.Is(err, graph.ErrOutputAlreadyConsumed) {
		return ErrOutputAlreadyConsumed
	}
	return err
}

// ConnectExternal links a synthetic external output (identified by an
// already-known txid and vout) to an input on an internal transaction. The
// external node has no inputs and does not participate in sighash
// derivation.
func (p *Protocol) ConnectExternal(connectionName string, txid chainhash.Hash,
	outputIndex int, outputType *txtypes.OutputType, to string, input txtypes.InputSpec) error {

	p.demote()

	inputIdx, err := p.resolveInputSpec(to, input)
	if err != nil {
		return err
	}

	if err := p.Graph.ConnectExternal(connectionName, txid, outputIndex, outputType, to, inputIdx); err != nil {
		return wrapErr(KindStructural, connectionName, translateGraphErr(err))
	}
	return nil
}

// AddRounds synthesizes the n-round challenge/response chain
// a_0, b_0, a_1, b_1, ..., a_{n-1}, b_{n-1} with connections a_i -> b_i and
// (for i < n-1) the reverse edge b_i -> a_{i+1}, each parameterized by the
// leaf scripts for the round's taproot outputs. It returns the synthesized
// transaction names for each side.
func (p *Protocol) AddRounds(n int, a, b string, round RoundParams) ([]string, []string, error) {
	names := make([]string, 0, 2*n)
	namesA := make([]string, n)
	namesB := make([]string, n)

	for i := 0; i < n; i++ {
		namesA[i] = fmt.Sprintf("%s_%d", a, i)
		namesB[i] = fmt.Sprintf("%s_%d", b, i)
		names = append(names, namesA[i], namesB[i])
	}

	for _, name := range names {
		if err := p.AddTransaction(name, 2, 0); err != nil {
			return nil, nil, err
		}
	}

	for i := 0; i < n; i++ {
		forwardOutput := txtypes.NewTaprootOutput(
			txtypes.AutoAmount, nil, round.InternalKeyA, nil, round.LeavesA, false, nil,
		)
		spendModeForward := txtypes.NewScriptsSpend(allLeafIndices(len(round.LeavesA))...)

		connName := fmt.Sprintf("%s_to_%s_%d", a, b, i)
		err := p.Connect(
			connName, namesA[i], txtypes.OutputAuto(forwardOutput),
			namesB[i], txtypes.InputAuto(round.SighashA, spendModeForward),
		)
		if err != nil {
			return nil, nil, err
		}

		if i == n-1 {
			continue
		}

		backOutput := txtypes.NewTaprootOutput(
			txtypes.AutoAmount, nil, round.InternalKeyB, nil, round.LeavesB, false, nil,
		)
		spendModeBack := txtypes.NewScriptsSpend(allLeafIndices(len(round.LeavesB))...)

		revName := fmt.Sprintf("%s_to_%s_%d", b, a, i)
		err = p.Connect(
			revName, namesB[i], txtypes.OutputAuto(backOutput),
			namesA[i+1], txtypes.InputAuto(round.SighashB, spendModeBack),
		)
		if err != nil {
			return nil, nil, err
		}
	}

	return namesA, namesB, nil
}

// RoundParams carries the per-round taproot leaf sets and sighash defaults
// consumed by AddRounds.
type RoundParams struct {
	InternalKeyA, InternalKeyB *btcec.PublicKey
	LeavesA, LeavesB           []*txtypes.ProtocolScript
	SighashA, SighashB         txtypes.SighashSpec
}

func allLeafIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
