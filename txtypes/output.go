package txtypes

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
)

// OutputKind tags the concrete shape of an OutputType: one struct, one
// discriminant, fields that only apply to some kinds left at their zero
// value otherwise, rather than an interface hierarchy.
type OutputKind uint8

const (
	OutputUnknown OutputKind = iota
	OutputSegwitKey
	OutputSegwitScript
	OutputTaproot
	OutputOpReturn
	OutputTimelock
	OutputSpeedup
)

func (k OutputKind) String() string {
	switch k {
	case OutputSegwitKey:
		return "SegwitKey"
	case OutputSegwitScript:
		return "SegwitScript"
	case OutputTaproot:
		return "Taproot"
	case OutputOpReturn:
		return "OpReturn"
	case OutputTimelock:
		return "Timelock"
	case OutputSpeedup:
		return "Speedup"
	default:
		return "Unknown"
	}
}

// OutputType describes the scriptPubKey and spending requirements of one
// transaction output. Exactly the fields relevant to Kind are populated; the
// rest are left at their zero value.
type OutputType struct {
	Kind         OutputKind
	Value        Amount
	ScriptPubKey []byte

	// OutputSegwitKey / OutputSpeedup
	PublicKey *btcec.PublicKey

	// OutputSegwitScript
	Script *ProtocolScript

	// OutputTaproot / OutputTimelock (a timelock output is built as a
	// taproot output with an expiry leaf and a renew leaf, script-path
	// only)
	InternalKey *btcec.PublicKey
	Tweak       []byte
	Leaves      []*ProtocolScript
	WithKeyPath bool

	// OutputTimelock
	Blocks   uint16
	OwnerKey *btcec.PublicKey
	RenewKey *btcec.PublicKey

	// OutputOpReturn
	Data []byte

	// Prevouts required by a taproot sighash (BIP-341 requires every
	// prevout of the spending transaction when Prevouts::All is used).
	Prevouts []*wire.TxOut
}

// NewSegwitKeyOutput builds a P2WPKH output.
func NewSegwitKeyOutput(value Amount, scriptPubKey []byte, pub *btcec.PublicKey) *OutputType {
	return &OutputType{
		Kind:         OutputSegwitKey,
		Value:        value,
		ScriptPubKey: scriptPubKey,
		PublicKey:    pub,
	}
}

// NewSegwitScriptOutput builds a P2WSH output backed by a single leaf
// script.
func NewSegwitScriptOutput(value Amount, scriptPubKey []byte, script *ProtocolScript) *OutputType {
	return &OutputType{
		Kind:         OutputSegwitScript,
		Value:        value,
		ScriptPubKey: scriptPubKey,
		Script:       script,
	}
}

// NewTaprootOutput builds a P2TR output, optionally with a key-spend tweak
// and/or a script tree. withKeyPath also accepts the key-spend path in
// addition to any leaves.
func NewTaprootOutput(value Amount, scriptPubKey []byte, internalKey *btcec.PublicKey,
	tweak []byte, leaves []*ProtocolScript, withKeyPath bool, prevouts []*wire.TxOut) *OutputType {

	return &OutputType{
		Kind:         OutputTaproot,
		Value:        value,
		ScriptPubKey: scriptPubKey,
		InternalKey:  internalKey,
		Tweak:        tweak,
		Leaves:       leaves,
		WithKeyPath:  withKeyPath,
		Prevouts:     prevouts,
	}
}

// NewOpReturnOutput builds a zero-value, provably unspendable OP_RETURN
// output carrying data.
func NewOpReturnOutput(scriptPubKey []byte, data []byte) *OutputType {
	return &OutputType{
		Kind:         OutputOpReturn,
		Value:        0,
		ScriptPubKey: scriptPubKey,
		Data:         data,
	}
}

// NewTimelockOutput builds a taproot output with two script-path leaves: an
// expiry leaf (spendable by ownerKey once blocks have elapsed since
// confirmation) and a renew leaf (spendable by renewKey at any time, used to
// push the expiry back out). internalKey is normally an unspendable NUMS
// point so only the two leaves are reachable.
func NewTimelockOutput(value Amount, scriptPubKey []byte, internalKey *btcec.PublicKey,
	expiryLeaf, renewLeaf *ProtocolScript, blocks uint16, ownerKey, renewKey *btcec.PublicKey) *OutputType {

	return &OutputType{
		Kind:         OutputTimelock,
		Value:        value,
		ScriptPubKey: scriptPubKey,
		InternalKey:  internalKey,
		Leaves:       []*ProtocolScript{expiryLeaf, renewLeaf},
		Blocks:       blocks,
		OwnerKey:     ownerKey,
		RenewKey:     renewKey,
	}
}

// NewSpeedupOutput builds the small P2WPKH-style anchor output a transaction
// carries purely so a later CPFP transaction has something to spend.
func NewSpeedupOutput(value Amount, scriptPubKey []byte, pub *btcec.PublicKey) *OutputType {
	return &OutputType{
		Kind:         OutputSpeedup,
		Value:        value,
		ScriptPubKey: scriptPubKey,
		PublicKey:    pub,
	}
}

// Name returns the kind name.
func (o *OutputType) Name() string {
	return o.Kind.String()
}

// HasPrevouts reports whether this output type carries an explicit prevout
// list for taproot sighash computation.
func (o *OutputType) HasPrevouts() bool {
	return len(o.Prevouts) > 0
}

// IsTaprootScriptPath reports whether this output's leaves list is
// applicable, i.e. it is a taproot output with at least one leaf.
func (o *OutputType) IsTaprootScriptPath() bool {
	return (o.Kind == OutputTaproot || o.Kind == OutputTimelock) && len(o.Leaves) > 0
}
