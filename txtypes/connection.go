package txtypes

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// OutputSpecKind tags how an OutputSpec resolves an output on the producing
// transaction.
type OutputSpecKind uint8

const (
	OutputSpecIndex OutputSpecKind = iota
	OutputSpecAuto
	OutputSpecLast
)

// OutputSpec names the output a Connection attaches to. Index pins a fixed
// position; Auto appends a freshly built OutputType and binds to it; Last
// resolves, at connect time, to whatever the highest-indexed output on the
// producing transaction is at that moment — it never rebinds after the
// connection is made, even if more outputs are appended later.
type OutputSpec struct {
	Kind  OutputSpecKind
	Index int
	Auto  *OutputType
}

// OutputIndex pins a connection to an existing output by position.
func OutputIndex(i int) OutputSpec {
	return OutputSpec{Kind: OutputSpecIndex, Index: i}
}

// OutputAuto appends ot to the producing transaction and binds to it.
func OutputAuto(ot *OutputType) OutputSpec {
	return OutputSpec{Kind: OutputSpecAuto, Auto: ot}
}

// OutputLast binds to whatever the last output on the producing transaction
// is at connect time.
func OutputLast() OutputSpec {
	return OutputSpec{Kind: OutputSpecLast}
}

// InputSpecKind tags how an InputSpec resolves an input on the consuming
// transaction.
type InputSpecKind uint8

const (
	InputSpecIndex InputSpecKind = iota
	InputSpecAuto
)

// InputSpec names the input a Connection attaches to. Index pins a fixed
// position on an input that must already exist; Auto appends a brand new
// input with the given sighash spec and spend mode.
type InputSpec struct {
	Kind      InputSpecKind
	Index     int
	Sighash   SighashSpec
	SpendMode SpendMode
}

// InputIndex pins a connection to an existing input by position.
func InputIndex(i int) InputSpec {
	return InputSpec{Kind: InputSpecIndex, Index: i}
}

// InputAuto appends a new input satisfied under the given sighash spec and
// spend mode.
func InputAuto(sighash SighashSpec, mode SpendMode) InputSpec {
	return InputSpec{Kind: InputSpecAuto, Sighash: sighash, SpendMode: mode}
}

// Connection is one edge of the transaction graph: an output on From feeds
// an input on To, either because From lives in the same graph (internal) or
// because it is an already-broadcast transaction identified by Txid
// (external).
type Connection struct {
	Name     string
	From     string
	Output   OutputSpec
	To       string
	Input    InputSpec
	Timelock *uint16

	// External marks a connection whose previous output was not built by
	// this graph; Txid then identifies the already-broadcast transaction
	// that owns it.
	External bool
	Txid     chainhash.Hash
}

// NewConnection builds an internal connection between two transactions in
// the same graph.
func NewConnection(name, from string, output OutputSpec, to string, input InputSpec, timelock *uint16) Connection {
	return Connection{
		Name:     name,
		From:     from,
		Output:   output,
		To:       to,
		Input:    input,
		Timelock: timelock,
	}
}

// NewExternalConnection builds a connection to a previous output that lives
// outside this graph, already confirmed on chain under txid.
func NewExternalConnection(name string, txid chainhash.Hash, from string, output OutputSpec,
	to string, input InputSpec, timelock *uint16) Connection {

	return Connection{
		Name:     name,
		From:     from,
		Output:   output,
		To:       to,
		Input:    input,
		Timelock: timelock,
		External: true,
		Txid:     txid,
	}
}
