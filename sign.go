package bitvmx

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/txscript"

	"github.com/bitvmx-labs/protocol-builder/graph"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// computeSignatures visits every internal transaction in topological order
// and, for every sighash the sighash engine stored, requests a signature
// from the key manager according to the SignMode attached to that spending
// path, filing the result under the same (transaction, input, variant) key.
func (p *Protocol) computeSignatures(ctx context.Context, order []string) error {
	for _, name := range order {
		node, err := p.Graph.Node(name)
		if err != nil {
			return wrapErr(KindStructural, name, err)
		}

		for idx, input := range node.Inputs {
			if err := p.signInput(ctx, name, idx, input); err != nil {
				return wrapErr(KindSigning, fmt.Sprintf("%s:%d", name, idx), err)
			}
		}
	}
	return nil
}

func (p *Protocol) signInput(ctx context.Context, txName string, idx int, input *graph.InputSpendingInfo) error {
	switch input.SpendMode.Kind {
	case txtypes.SpendSegwit:
		return p.signSegwit(ctx, input)

	case txtypes.SpendKeyOnly:
		return p.signKeyPath(ctx, input)

	case txtypes.SpendScripts:
		for _, leafIdx := range input.SpendMode.Leaves {
			if err := p.signLeaf(ctx, input, leafIdx); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedSignMode, input.SpendMode.Kind)
	}
}

func (p *Protocol) signSegwit(ctx context.Context, input *graph.InputSpendingInfo) error {
	ot := input.OutputType
	if ot == nil {
		return graph.ErrMissingConnection
	}

	var (
		verifyingKey *btcec.PublicKey
		mode         = txtypes.SignSingle
	)
	switch ot.Kind {
	case txtypes.OutputSegwitKey, txtypes.OutputSpeedup:
		verifyingKey = ot.PublicKey
	case txtypes.OutputSegwitScript:
		verifyingKey = ot.Script.VerifyingKey()
		mode = ot.Script.SignMode()
	default:
		return fmt.Errorf("%w: segwit spend of %s output", ErrUnsupportedSignMode, ot.Kind)
	}

	variant := txtypes.SegwitVariant()
	digest, ok := input.HashedMessage(variant)
	if !ok {
		return ErrMissingSignature
	}

	switch mode {
	case txtypes.SignSkip:
		return nil
	case txtypes.SignSingle:
		loc, err := p.locatorFor(verifyingKey)
		if err != nil {
			return err
		}
		sig, err := p.Signer.SignECDSA(ctx, loc, digest)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSigningFailed, err)
		}
		input.SetSignature(variant, txtypes.NewECDSASignature(sig, input.Sighash.Value))
		return nil
	default:
		return fmt.Errorf("%w: %s on a SegWit v0 input", ErrUnsupportedSignMode, mode)
	}
}

func (p *Protocol) signKeyPath(ctx context.Context, input *graph.InputSpendingInfo) error {
	ot := input.OutputType
	if ot == nil {
		return graph.ErrMissingConnection
	}

	variant := txtypes.KeyPathVariant()
	digest, ok := input.HashedMessage(variant)
	if !ok {
		return ErrMissingSignature
	}

	mode := input.SpendMode.KeyPathSign
	switch mode {
	case txtypes.SignSkip:
		return nil

	case txtypes.SignSingle:
		loc, err := p.locatorFor(ot.InternalKey)
		if err != nil {
			return err
		}
		sig, err := p.Signer.SignSchnorr(ctx, loc, digest, ot.Tweak)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSigningFailed, err)
		}
		input.SetSignature(variant, txtypes.NewSchnorrSignature(sig, input.Sighash.Value))
		return nil

	case txtypes.SignAggregate:
		sig, err := p.signAggregate(ctx, ot.InternalKey, digest, input.Sighash.Value)
		if err != nil {
			return err
		}
		input.SetSignature(variant, sig)
		return nil

	default:
		return fmt.Errorf("%w: %s on a taproot key-spend path", ErrUnsupportedSignMode, mode)
	}
}

func (p *Protocol) signLeaf(ctx context.Context, input *graph.InputSpendingInfo, leafIdx int) error {
	ot := input.OutputType
	if ot == nil {
		return graph.ErrMissingConnection
	}
	if leafIdx < 0 || leafIdx >= len(ot.Leaves) {
		return fmt.Errorf("leaf index %d out of range", leafIdx)
	}
	leaf := ot.Leaves[leafIdx]

	variant := txtypes.LeafVariant(leafIdx)
	digest, ok := input.HashedMessage(variant)
	if !ok {
		return ErrMissingSignature
	}

	switch leaf.SignMode() {
	case txtypes.SignSkip:
		return nil

	case txtypes.SignSingle:
		loc, err := p.locatorFor(leaf.VerifyingKey())
		if err != nil {
			return err
		}
		sig, err := p.Signer.SignSchnorr(ctx, loc, digest, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSigningFailed, err)
		}
		input.SetSignature(variant, txtypes.NewSchnorrSignature(sig, input.Sighash.Value))
		return nil

	case txtypes.SignAggregate:
		sig, err := p.signAggregate(ctx, leaf.VerifyingKey(), digest, input.Sighash.Value)
		if err != nil {
			return err
		}
		input.SetSignature(variant, sig)
		return nil

	case txtypes.SignWinternitz:
		sig, err := p.signWinternitz(ctx, leaf, digest)
		if err != nil {
			return err
		}
		input.SetSignature(variant, sig)
		return nil

	default:
		return fmt.Errorf("%w: %s on leaf %d", ErrUnsupportedSignMode, leaf.SignMode(), leafIdx)
	}
}

// signAggregate drives a MuSig2 session previously opened for aggregateKey
// through a partial signature and combines it. The builder's local signer
// holds every participant's key material (the same self-contained model
// LocalSigner uses for plain key derivation), so a single local partial
// signature is sufficient to complete the session.
func (p *Protocol) signAggregate(ctx context.Context, aggregateKey *btcec.PublicKey,
	digest []byte, flag txscript.SigHashType) (*txtypes.Signature, error) {

	session, err := p.musigSessionFor(aggregateKey)
	if err != nil {
		return nil, err
	}

	var msg [32]byte
	copy(msg[:], digest)

	partial, err := session.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: musig2 partial sign: %v", ErrSigningFailed, err)
	}

	if _, err := session.CombineSignatures([]*musig2.PartialSignature{partial}); err != nil {
		return nil, fmt.Errorf("%w: musig2 combine: %v", ErrSigningFailed, err)
	}

	return txtypes.NewSchnorrSignature(session.FinalSignature(), flag), nil
}

func (p *Protocol) signWinternitz(ctx context.Context, leaf *txtypes.ProtocolScript,
	digest []byte) (*txtypes.Signature, error) {

	keys := leaf.Keys()
	if len(keys) != 1 {
		return nil, fmt.Errorf("%w: winternitz leaf must carry exactly one key, got %d",
			ErrUnsupportedSignMode, len(keys))
	}
	key := keys[0]

	hashType := txtypes.WinternitzHash160
	if key.Kind == txtypes.KeyKindWinternitzSHA256 {
		hashType = txtypes.WinternitzSHA256
	}

	sig, err := p.Signer.SignWinternitz(ctx, hashType, key.DerivationIndex, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return txtypes.NewWinternitzSignature(sig), nil
}
