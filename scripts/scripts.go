// Package scripts provides pure builder functions for the handful of
// Bitcoin script shapes the protocol builder needs: OP_RETURN carriers, CSV
// timelock/renew branches, plain checksig leaves, and Winternitz
// commit-and-checksig leaves. Every function returns (or consumes) a
// txtypes.ProtocolScript; this package never mutates global state and has a
// single downward dependency on txtypes.
package scripts

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// OpReturn builds a provably unspendable OP_RETURN script carrying data.
func OpReturn(data []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(data).
		Script()
}

// Timelock builds the expiry leaf of a timelocked output: once blocks have
// elapsed since confirmation, ownerKey alone can spend it.
func Timelock(blocks uint16, ownerKey *btcec.PublicKey) (*txtypes.ProtocolScript, error) {
	script, err := txscript.NewScriptBuilder().
		AddInt64(int64(blocks)).
		AddOp(txscript.OP_CHECKSEQUENCEVERIFY).
		AddOp(txscript.OP_DROP).
		AddData(schnorrPubKeyBytes(ownerKey)).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, fmt.Errorf("building timelock script: %w", err)
	}

	return txtypes.NewProtocolScript(script, ownerKey), nil
}

// TimelockRenew builds the renew leaf of a timelocked output: spendable by
// renewKey at any time, used to push a pending expiry back out.
func TimelockRenew(renewKey *btcec.PublicKey) (*txtypes.ProtocolScript, error) {
	return CheckSignature(renewKey)
}

// CheckSignature builds a plain "one key signs" leaf.
func CheckSignature(key *btcec.PublicKey) (*txtypes.ProtocolScript, error) {
	script, err := txscript.NewScriptBuilder().
		AddData(schnorrPubKeyBytes(key)).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, fmt.Errorf("building checksig script: %w", err)
	}

	return txtypes.NewProtocolScript(script, key), nil
}

// CheckAggregatedSignature builds a checksig leaf over a MuSig2 aggregated
// key. It is script-identical to CheckSignature; the leaf is tagged
// SignAggregate so the signing dispatcher resolves it through a MuSig2
// session instead of a single key.
func CheckAggregatedSignature(aggregatedKey *btcec.PublicKey) (*txtypes.ProtocolScript, error) {
	script, err := txscript.NewScriptBuilder().
		AddData(schnorrPubKeyBytes(aggregatedKey)).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, fmt.Errorf("building aggregated checksig script: %w", err)
	}

	return txtypes.NewAggregateProtocolScript(script, aggregatedKey), nil
}

// WinternitzCheckSig builds a leaf that verifies a revealed Winternitz
// one-time signature over the leaf's own sighash and nothing else: the
// hash-chain verification gadget leaves OP_1 on top of the stack once every
// chain and the checksum check pass.
func WinternitzCheckSig(keyName string,
	winternitzKey *txtypes.WinternitzPublicKey) (*txtypes.ProtocolScript, error) {

	b := txscript.NewScriptBuilder()
	appendOTSCheckSig(b, winternitzKey)
	b.AddOp(txscript.OP_1)

	script, err := b.Script()
	if err != nil {
		return nil, fmt.Errorf("building winternitz checksig script: %w", err)
	}

	leaf := txtypes.NewWinternitzProtocolScript(script)
	if err := leaf.AddKey(keyName, winternitzKey.DerivationIndex,
		winternitzKeyKind(winternitzKey.HashType), 0); err != nil {
		return nil, err
	}

	return leaf, nil
}

// appendOTSCheckSig emits the hash-chain verification gadget for one
// Winternitz public key: for every digit, walk its hash chain up to
// WinternitzBase steps checking against the committed tip, then verify the
// revealed digits sum to the committed checksum. The stack inputs (digit
// values and preimages) are pushed by the witness assembler in the same
// order the chains are declared here.
func appendOTSCheckSig(b *txscript.ScriptBuilder, key *txtypes.WinternitzPublicKey) {
	total := int(key.TotalLen())
	messageSize := int(key.MessageSize)
	checksumSize := int(key.ChecksumSize())

	for digitIndex := 0; digitIndex < total; digitIndex++ {
		b.AddInt64(txtypes.WinternitzBase).
			AddOp(txscript.OP_MIN).
			AddOp(txscript.OP_DUP).
			AddOp(txscript.OP_TOALTSTACK).
			AddOp(txscript.OP_TOALTSTACK)

		var hashOp byte = txscript.OP_HASH160
		if key.HashType == txtypes.WinternitzSHA256 {
			hashOp = txscript.OP_SHA256
		}

		for i := 0; i < txtypes.WinternitzBase; i++ {
			b.AddOp(txscript.OP_DUP).AddOp(hashOp)
		}

		b.AddOp(txscript.OP_FROMALTSTACK).
			AddOp(txscript.OP_PICK).
			AddData(key.Hashes[digitIndex]).
			AddOp(txscript.OP_EQUALVERIFY)

		for i := 0; i < (txtypes.WinternitzBase+1)/2; i++ {
			b.AddOp(txscript.OP_2DROP)
		}
	}

	b.AddOp(txscript.OP_FROMALTSTACK).AddOp(txscript.OP_DUP).AddOp(txscript.OP_NEGATE)
	for i := 1; i < messageSize; i++ {
		b.AddOp(txscript.OP_FROMALTSTACK).AddOp(txscript.OP_TUCK).AddOp(txscript.OP_SUB)
	}
	b.AddInt64(int64(txtypes.WinternitzBase * messageSize)).AddOp(txscript.OP_ADD)

	b.AddOp(txscript.OP_FROMALTSTACK)
	for i := 0; i < checksumSize-1; i++ {
		for bit := 0; bit < txtypes.WinternitzBitsPerDigit; bit++ {
			b.AddOp(txscript.OP_DUP).AddOp(txscript.OP_ADD)
		}
		b.AddOp(txscript.OP_FROMALTSTACK).AddOp(txscript.OP_ADD)
	}
	b.AddOp(txscript.OP_EQUALVERIFY)

	if messageSize == 1 {
		b.AddOp(txscript.OP_DROP)
	} else if messageSize%2 == 0 {
		for i := 0; i < messageSize/2; i++ {
			b.AddOp(txscript.OP_2DROP)
		}
	} else {
		for i := 0; i < messageSize/2; i++ {
			b.AddOp(txscript.OP_2DROP)
		}
		b.AddOp(txscript.OP_DROP)
	}
}

func winternitzKeyKind(hashType txtypes.WinternitzHashType) txtypes.KeyKind {
	if hashType == txtypes.WinternitzSHA256 {
		return txtypes.KeyKindWinternitzSHA256
	}
	return txtypes.KeyKindWinternitzHash160
}

// BuildTaprootSpendInfo assembles the taproot script tree for a set of
// leaves and computes the resulting output key under internalKey, placing
// leaves so that leaf depth stays within one level of the minimum across
// the whole tree.
func BuildTaprootSpendInfo(internalKey *btcec.PublicKey,
	leaves []*txtypes.ProtocolScript) (*txscript.IndexedTapScriptTree, *btcec.PublicKey, error) {

	if len(leaves) == 0 {
		return nil, nil, txtypes.ErrNoScriptsProvided
	}

	tapLeaves := make([]txscript.TapLeaf, len(leaves))
	for i, leaf := range leaves {
		tapLeaves[i] = txscript.NewBaseTapLeaf(leaf.Script())
	}

	tree := txscript.AssembleTaprootScriptTree(tapLeaves...)
	root := tree.RootNode.TapHash()

	outputKey := txscript.ComputeTaprootOutputKey(internalKey, root[:])

	return tree, outputKey, nil
}

// schnorrPubKeyBytes returns the 32-byte x-only encoding of key, the form
// every leaf script here pushes before OP_CHECKSIG.
func schnorrPubKeyBytes(key *btcec.PublicKey) []byte {
	return schnorr.SerializePubKey(key)
}
