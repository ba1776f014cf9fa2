package txtypes

import (
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

// SignatureKind tags which curve-signature scheme a Signature carries.
type SignatureKind uint8

const (
	SignatureUnknown SignatureKind = iota
	SignatureECDSA
	SignatureSchnorr
	SignatureWinternitz
)

// Signature wraps an ECDSA signature, a Schnorr signature, or a revealed
// Winternitz one-time signature together with the sighash flag it was
// produced under (unused for the Winternitz case).
type Signature struct {
	Kind        SignatureKind
	Ecdsa       *ecdsa.Signature
	Schnorr     *schnorr.Signature
	Winternitz  *WinternitzSignature
	SighashFlag txscript.SigHashType
}

// NewECDSASignature wraps sig under the given SIGHASH flag.
func NewECDSASignature(sig *ecdsa.Signature, flag txscript.SigHashType) *Signature {
	return &Signature{Kind: SignatureECDSA, Ecdsa: sig, SighashFlag: flag}
}

// NewSchnorrSignature wraps sig under the given taproot sighash flag.
func NewSchnorrSignature(sig *schnorr.Signature, flag txscript.SigHashType) *Signature {
	return &Signature{Kind: SignatureSchnorr, Schnorr: sig, SighashFlag: flag}
}

// NewWinternitzSignature wraps a revealed one-time signature.
func NewWinternitzSignature(sig *WinternitzSignature) *Signature {
	return &Signature{Kind: SignatureWinternitz, Winternitz: sig}
}

// Serialize returns the raw signature bytes followed by the sighash flag
// byte when the flag is not the taproot default, matching how a taproot
// witness must append the explicit sighash byte for non-default flags and a
// SegWit v0 witness always appends one. The Winternitz case has no sighash
// flag to append; callers needing its witness stack elements use Winternitz
// directly instead.
func (s *Signature) Serialize() []byte {
	var raw []byte
	switch s.Kind {
	case SignatureECDSA:
		raw = s.Ecdsa.Serialize()
	case SignatureSchnorr:
		raw = s.Schnorr.Serialize()
	case SignatureWinternitz:
		return nil
	}

	if s.Kind == SignatureSchnorr && s.SighashFlag == txscript.SigHashDefault {
		return raw
	}

	return append(raw, byte(s.SighashFlag))
}
