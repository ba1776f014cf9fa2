// Package graph implements the transaction dependency graph: nodes are
// Bitcoin transactions under construction, edges are spends of one
// transaction's output by another transaction's input. It is a plain
// name-keyed adjacency structure with an explicit insertion-ordered slice
// alongside the map, rather than a general-purpose graph library, since the
// graph shape needed here (one DAG, named nodes, topological order) does not
// warrant pulling one in.
package graph

import (
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// InputSpendingInfo tracks everything known about one input beyond its
// OutPoint: the sighash/spend requirements it was declared with, the output
// type it ended up connected to, and every hashed message / signature
// computed for it, keyed by which spending path (key-path, a specific leaf,
// or the sole SegWit path) they belong to.
type InputSpendingInfo struct {
	Sighash    txtypes.SighashSpec
	SpendMode  txtypes.SpendMode
	OutputType *txtypes.OutputType

	hashedMessages map[txtypes.SigVariant][]byte
	signatures     map[txtypes.SigVariant]*txtypes.Signature
}

func newInputSpendingInfo(sighash txtypes.SighashSpec, mode txtypes.SpendMode) *InputSpendingInfo {
	return &InputSpendingInfo{
		Sighash:        sighash,
		SpendMode:      mode,
		hashedMessages: make(map[txtypes.SigVariant][]byte),
		signatures:     make(map[txtypes.SigVariant]*txtypes.Signature),
	}
}

// NewInputSpendingInfo builds a standalone InputSpendingInfo bound to
// outputType, for callers (the CPFP speedup builder) that need the sighash
// engine and signing dispatcher's per-input bookkeeping without running them
// through a full TransactionGraph.
func NewInputSpendingInfo(sighash txtypes.SighashSpec, mode txtypes.SpendMode,
	outputType *txtypes.OutputType) *InputSpendingInfo {

	info := newInputSpendingInfo(sighash, mode)
	info.OutputType = outputType
	return info
}

// SetHashedMessage records the sighash digest for one spending-path variant.
func (i *InputSpendingInfo) SetHashedMessage(variant txtypes.SigVariant, message []byte) {
	i.hashedMessages[variant] = message
}

// HashedMessage looks up a previously recorded sighash digest.
func (i *InputSpendingInfo) HashedMessage(variant txtypes.SigVariant) ([]byte, bool) {
	msg, ok := i.hashedMessages[variant]
	return msg, ok
}

// SetSignature records a signature for one spending-path variant.
func (i *InputSpendingInfo) SetSignature(variant txtypes.SigVariant, sig *txtypes.Signature) {
	i.signatures[variant] = sig
}

// Signature looks up a previously recorded signature.
func (i *InputSpendingInfo) Signature(variant txtypes.SigVariant) (*txtypes.Signature, bool) {
	sig, ok := i.signatures[variant]
	return sig, ok
}

// Node is one transaction under construction, along with the protocol-level
// metadata the plain wire.MsgTx does not carry on its own.
type Node struct {
	Name        string
	Tx          *wire.MsgTx
	OutputTypes []*txtypes.OutputType
	Inputs      []*InputSpendingInfo

	// Txid is cached once the identifier propagator computes it during a
	// build; zero until then.
	Txid chainhash.Hash
}

func newNode(name string, tx *wire.MsgTx) *Node {
	return &Node{Name: name, Tx: tx}
}

type edge struct {
	Name        string
	From        string
	OutputIndex int
	To          string
	InputIndex  int
	External    bool
	Txid        chainhash.Hash
}

// consumedOutput identifies one producing output, internal or external, so
// TransactionGraph can reject a second input binding to it.
type consumedOutput struct {
	external    bool
	from        string
	txid        chainhash.Hash
	outputIndex int
}

// TransactionGraph is the dependency graph of transactions and the spends
// connecting them.
type TransactionGraph struct {
	nodes    map[string]*Node
	order    []string
	edges    []edge
	consumed map[consumedOutput]bool
}

// New returns an empty transaction graph.
func New() *TransactionGraph {
	return &TransactionGraph{
		nodes:    make(map[string]*Node),
		consumed: make(map[consumedOutput]bool),
	}
}

// markConsumed records key as bound to an input, failing if it was already
// bound by a prior Connect/ConnectExternal call.
func (g *TransactionGraph) markConsumed(key consumedOutput) error {
	if g.consumed[key] {
		return ErrOutputAlreadyConsumed
	}
	g.consumed[key] = true
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyTransactionName
	}
	return nil
}

// AddTransaction registers a new, initially empty transaction under name.
func (g *TransactionGraph) AddTransaction(name string, version int32, locktime uint32) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, exists := g.nodes[name]; exists {
		return ErrTransactionExists
	}

	tx := wire.NewMsgTx(version)
	tx.LockTime = locktime

	g.nodes[name] = newNode(name, tx)
	g.order = append(g.order, name)
	return nil
}

// Node returns the node for name.
func (g *TransactionGraph) Node(name string) (*Node, error) {
	node, ok := g.nodes[name]
	if !ok {
		return nil, ErrMissingTransaction
	}
	return node, nil
}

// ContainsTransaction reports whether name has been added.
func (g *TransactionGraph) ContainsTransaction(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// TransactionNames returns every transaction name in insertion order.
func (g *TransactionGraph) TransactionNames() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// AddOutput appends a new output to name's transaction and returns its
// index.
func (g *TransactionGraph) AddOutput(name string, ot *txtypes.OutputType) (int, error) {
	node, err := g.Node(name)
	if err != nil {
		return 0, err
	}

	value := int64(ot.Value)
	if ot.Value.IsSentinel() {
		value = 0
	}

	node.Tx.AddTxOut(&wire.TxOut{Value: value, PkScript: ot.ScriptPubKey})
	node.OutputTypes = append(node.OutputTypes, ot)
	return len(node.OutputTypes) - 1, nil
}

// AddInput appends a new input to name's transaction, with its spend
// requirements, and returns its index. The input's previous outpoint is left
// zeroed until a Connect/ConnectExternal call fills it in.
func (g *TransactionGraph) AddInput(name string, sighash txtypes.SighashSpec,
	mode txtypes.SpendMode, sequence uint32) (int, error) {

	node, err := g.Node(name)
	if err != nil {
		return 0, err
	}

	node.Tx.AddTxIn(&wire.TxIn{Sequence: sequence})
	node.Inputs = append(node.Inputs, newInputSpendingInfo(sighash, mode))
	return len(node.Inputs) - 1, nil
}

// OutputAt returns the output type at outputIndex on name's transaction.
func (g *TransactionGraph) OutputAt(name string, outputIndex int) (*txtypes.OutputType, error) {
	node, err := g.Node(name)
	if err != nil {
		return nil, err
	}
	if outputIndex < 0 || outputIndex >= len(node.OutputTypes) {
		return nil, ErrMissingOutput
	}
	return node.OutputTypes[outputIndex], nil
}

// Connect wires an existing output of from to an existing input of to,
// recording the edge and binding the input's OutputType.
func (g *TransactionGraph) Connect(connectionName, from string, outputIndex int,
	to string, inputIndex int) error {

	if err := validateName(from); err != nil {
		return err
	}
	if err := validateName(to); err != nil {
		return err
	}

	fromNode, err := g.Node(from)
	if err != nil {
		return err
	}
	toNode, err := g.Node(to)
	if err != nil {
		return err
	}
	if outputIndex < 0 || outputIndex >= len(fromNode.OutputTypes) {
		return ErrMissingOutput
	}
	if inputIndex < 0 || inputIndex >= len(toNode.Inputs) {
		return ErrMissingInput
	}

	outputType := fromNode.OutputTypes[outputIndex]
	input := toNode.Inputs[inputIndex]
	if !input.Sighash.CompatibleWith(outputType.Kind) {
		return ErrIncompatibleSighash
	}
	if err := g.markConsumed(consumedOutput{from: from, outputIndex: outputIndex}); err != nil {
		return err
	}
	input.OutputType = outputType

	toNode.Tx.TxIn[inputIndex].PreviousOutPoint = wire.OutPoint{
		Index: uint32(outputIndex),
	}

	g.edges = append(g.edges, edge{
		Name:        connectionName,
		From:        from,
		OutputIndex: outputIndex,
		To:          to,
		InputIndex:  inputIndex,
	})
	return nil
}

// ConnectExternal wires an existing input of to to an output that lives on
// an already-broadcast transaction outside this graph. Since the producing
// transaction is not in this graph, outputType must be supplied explicitly.
func (g *TransactionGraph) ConnectExternal(connectionName string, txid chainhash.Hash,
	outputIndex int, outputType *txtypes.OutputType, to string, inputIndex int) error {

	if err := validateName(to); err != nil {
		return err
	}

	toNode, err := g.Node(to)
	if err != nil {
		return err
	}
	if inputIndex < 0 || inputIndex >= len(toNode.Inputs) {
		return ErrMissingInput
	}

	input := toNode.Inputs[inputIndex]
	if !input.Sighash.CompatibleWith(outputType.Kind) {
		return ErrIncompatibleSighash
	}
	if err := g.markConsumed(consumedOutput{external: true, txid: txid, outputIndex: outputIndex}); err != nil {
		return err
	}
	input.OutputType = outputType

	toNode.Tx.TxIn[inputIndex].PreviousOutPoint = wire.OutPoint{
		Hash:  txid,
		Index: uint32(outputIndex),
	}

	g.edges = append(g.edges, edge{
		Name:        connectionName,
		From:        "",
		OutputIndex: outputIndex,
		To:          to,
		InputIndex:  inputIndex,
		External:    true,
		Txid:        txid,
	})
	return nil
}

// GetPrevouts returns the previous outputs feeding every input of name's
// transaction, in input order. It fails if any input lacks a connection.
func (g *TransactionGraph) GetPrevouts(name string) ([]*wire.TxOut, error) {
	node, err := g.Node(name)
	if err != nil {
		return nil, err
	}

	prevouts := make([]*wire.TxOut, len(node.Inputs))
	for _, e := range g.edges {
		if e.To != name {
			continue
		}
		if e.External {
			info := node.Inputs[e.InputIndex]
			if info.OutputType == nil {
				return nil, ErrMissingConnection
			}
			prevouts[e.InputIndex] = &wire.TxOut{
				Value:    int64(info.OutputType.Value),
				PkScript: info.OutputType.ScriptPubKey,
			}
			continue
		}

		fromNode, err := g.Node(e.From)
		if err != nil {
			return nil, err
		}
		prevouts[e.InputIndex] = fromNode.Tx.TxOut[e.OutputIndex]
	}

	for i, p := range prevouts {
		if p == nil {
			return nil, ErrMissingConnection
		}
		_ = i
	}
	return prevouts, nil
}

// SetTxid caches name's computed txid on its node and rewrites the
// previous-output hash of every downstream input that spends one of name's
// outputs, per the identifier propagator's pass.
func (g *TransactionGraph) SetTxid(name string, txid chainhash.Hash) error {
	node, err := g.Node(name)
	if err != nil {
		return err
	}
	node.Txid = txid

	for _, e := range g.edges {
		if e.From != name || e.External {
			continue
		}
		toNode, err := g.Node(e.To)
		if err != nil {
			return err
		}
		toNode.Tx.TxIn[e.InputIndex].PreviousOutPoint.Hash = txid
	}
	return nil
}

// Dependencies returns the (producer name, producer output index) pairs
// feeding name's inputs, one per input that is connected internally.
func (g *TransactionGraph) Dependencies(name string) []struct {
	From        string
	OutputIndex int
	InputIndex  int
} {
	var deps []struct {
		From        string
		OutputIndex int
		InputIndex  int
	}
	for _, e := range g.edges {
		if e.To == name && !e.External {
			deps = append(deps, struct {
				From        string
				OutputIndex int
				InputIndex  int
			}{From: e.From, OutputIndex: e.OutputIndex, InputIndex: e.InputIndex})
		}
	}
	return deps
}
