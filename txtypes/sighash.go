package txtypes

import "github.com/btcsuite/btcd/txscript"

// SighashMode distinguishes which sighash algorithm family a SighashSpec
// belongs to. btcd represents both taproot and legacy/segwit sighash flags
// with the same txscript.SigHashType, but the two families are not
// interchangeable (taproot sighash flags additionally gate the "default"
// all-zero-byte encoding), so the mode is kept explicit as a distinct tag
// rather than inferred from the flag value alone.
type SighashMode uint8

const (
	SighashUnknown SighashMode = iota
	SighashTaproot
	SighashEcdsa
)

func (m SighashMode) String() string {
	switch m {
	case SighashTaproot:
		return "Taproot"
	case SighashEcdsa:
		return "Ecdsa"
	default:
		return "Unknown"
	}
}

// SighashSpec pairs a sighash mode with its flag value.
type SighashSpec struct {
	Mode  SighashMode
	Value txscript.SigHashType
}

// TaprootAll returns the default "sign everything" taproot sighash spec.
func TaprootAll() SighashSpec {
	return SighashSpec{Mode: SighashTaproot, Value: txscript.SigHashDefault}
}

// EcdsaAll returns the SIGHASH_ALL spec for SegWit v0 spends.
func EcdsaAll() SighashSpec {
	return SighashSpec{Mode: SighashEcdsa, Value: txscript.SigHashAll}
}

// CompatibleWith reports whether an output of the given kind may be signed
// under this sighash mode.
func (s SighashSpec) CompatibleWith(kind OutputKind) bool {
	switch s.Mode {
	case SighashTaproot:
		return kind == OutputTaproot || kind == OutputTimelock
	case SighashEcdsa:
		return kind == OutputSegwitKey || kind == OutputSegwitScript ||
			kind == OutputSpeedup
	default:
		return false
	}
}

// VariantKind tags which spending path a stored Signature/sighash belongs
// to, since a single taproot output may need a distinct sighash per leaf
// plus one more for the key-spend path.
type VariantKind uint8

const (
	VariantUnknown VariantKind = iota
	VariantKeyPath
	VariantLeaf
	VariantSegwit
)

// SigVariant identifies one (transaction, input, variant) slot in the
// signature/sighash store.
type SigVariant struct {
	Kind      VariantKind
	LeafIndex int
}

// KeyPathVariant is the sentinel variant for a taproot key-spend path.
func KeyPathVariant() SigVariant {
	return SigVariant{Kind: VariantKeyPath}
}

// LeafVariant identifies the i-th script-path leaf.
func LeafVariant(i int) SigVariant {
	return SigVariant{Kind: VariantLeaf, LeafIndex: i}
}

// SegwitVariant is the sentinel variant for a SegWit v0 spend.
func SegwitVariant() SigVariant {
	return SigVariant{Kind: VariantSegwit}
}
