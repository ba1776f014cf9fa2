package txtypes

import (
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/exp/maps"
)

// KeyKind tags the kind of key a ScriptKey refers to: plain ECDSA/Schnorr
// keys need a signature, Winternitz keys need a one-time-signature reveal,
// and the witness assembler needs to know which before it can satisfy a
// leaf.
type KeyKind uint8

const (
	KeyKindUnknown KeyKind = iota
	KeyKindECDSA
	KeyKindXOnly
	KeyKindWinternitzHash160
	KeyKindWinternitzSHA256
)

func (k KeyKind) String() string {
	switch k {
	case KeyKindECDSA:
		return "ecdsa"
	case KeyKindXOnly:
		return "xonly"
	case KeyKindWinternitzHash160:
		return "winternitz_hash160"
	case KeyKindWinternitzSHA256:
		return "winternitz_sha256"
	default:
		return "unknown"
	}
}

// ScriptKey names one of the key-bearing gaps inside a leaf script, so the
// witness assembler knows which derived key (or Winternitz key) fills which
// stack slot.
type ScriptKey struct {
	Name             string
	Kind             KeyKind
	DerivationIndex  uint32
	KeyPosition      uint32
}

// ProtocolScript wraps a raw script together with the bookkeeping needed to
// fill in its signatures and commitments: the key that verifies it (if any),
// any named sub-keys referenced from within the script body, and the
// SignMode the signing dispatcher must use to satisfy it.
type ProtocolScript struct {
	script       []byte
	keys         map[string]ScriptKey
	verifyingKey *btcec.PublicKey
	signMode     SignMode
}

// NewProtocolScript wraps script under the given verifying key, satisfied by
// a single ECDSA/Schnorr signature.
func NewProtocolScript(script []byte, verifyingKey *btcec.PublicKey) *ProtocolScript {
	return &ProtocolScript{
		script:       script,
		keys:         make(map[string]ScriptKey),
		verifyingKey: verifyingKey,
		signMode:     SignSingle,
	}
}

// NewAggregateProtocolScript wraps script under a MuSig2 aggregated
// verifying key, satisfied by an aggregate Schnorr signature.
func NewAggregateProtocolScript(script []byte, aggregatedKey *btcec.PublicKey) *ProtocolScript {
	p := NewProtocolScript(script, aggregatedKey)
	p.signMode = SignAggregate
	return p
}

// NewWinternitzProtocolScript wraps script with no top-level verifying key,
// satisfied by a Winternitz one-time signature over the leaf's sighash.
func NewWinternitzProtocolScript(script []byte) *ProtocolScript {
	return &ProtocolScript{
		script:   script,
		keys:     make(map[string]ScriptKey),
		signMode: SignWinternitz,
	}
}

// NewUnsignedProtocolScript flags a script as not requiring a signature from
// the builder, e.g. branches that are satisfied purely by a revealed secret.
func NewUnsignedProtocolScript(script []byte, verifyingKey *btcec.PublicKey) *ProtocolScript {
	p := NewProtocolScript(script, verifyingKey)
	p.signMode = SignSkip
	return p
}

// AddKey registers a named key reference at the given stack position.
func (p *ProtocolScript) AddKey(name string, derivationIndex uint32, kind KeyKind, position uint32) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyScriptName
	}
	p.keys[name] = ScriptKey{
		Name:            name,
		Kind:            kind,
		DerivationIndex: derivationIndex,
		KeyPosition:     position,
	}
	return nil
}

// Script returns the raw script bytes.
func (p *ProtocolScript) Script() []byte {
	return p.script
}

// Key looks up a named key reference.
func (p *ProtocolScript) Key(name string) (ScriptKey, bool) {
	k, ok := p.keys[name]
	return k, ok
}

// Keys returns every named key reference ordered by ascending KeyPosition.
func (p *ProtocolScript) Keys() []ScriptKey {
	out := maps.Values(p.keys)
	sort.Slice(out, func(i, j int) bool {
		return out[i].KeyPosition < out[j].KeyPosition
	})
	return out
}

// VerifyingKey returns the key that the top-level OP_CHECKSIG(VERIFY) in this
// leaf is expected to verify against.
func (p *ProtocolScript) VerifyingKey() *btcec.PublicKey {
	return p.verifyingKey
}

// SignMode reports which signing path the dispatcher must use to satisfy
// this leaf.
func (p *ProtocolScript) SignMode() SignMode {
	return p.signMode
}
