package keymgr

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/lightningnetwork/lnd/keychain"

	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// Signer is the narrow interface the protocol builder consumes to obtain
// public keys and signatures, split between key derivation and signing: the
// builder never holds private key material directly, only key identities
// (keychain.KeyLocator) and the resulting public keys/signatures. Every
// method threads a context.Context because the underlying signer may be a
// remote RPC call, the only operation in this module that is allowed to
// block.
type Signer interface {
	// DeriveKeyPair returns the public key for loc, creating the
	// underlying key if this is the first time loc has been requested.
	DeriveKeyPair(ctx context.Context, loc keychain.KeyLocator) (*btcec.PublicKey, error)

	// SignECDSA produces a BIP-143 ECDSA signature over sigHash using the
	// key at loc.
	SignECDSA(ctx context.Context, loc keychain.KeyLocator, sigHash []byte) (*ecdsa.Signature, error)

	// SignSchnorr produces a BIP-340 Schnorr signature over sigHash using
	// the key at loc, optionally tweaked (BIP-341 taproot output key
	// tweak) when tweak is non-nil.
	SignSchnorr(ctx context.Context, loc keychain.KeyLocator, sigHash []byte, tweak []byte) (*schnorr.Signature, error)

	// OpenMuSig2Session begins a MuSig2 aggregate signing session for loc
	// among the given participant public keys, returning the aggregated
	// key and a handle used to drive the two-round nonce/partial-signature
	// exchange.
	OpenMuSig2Session(ctx context.Context, loc keychain.KeyLocator, participants []*btcec.PublicKey) (*MuSig2Session, error)

	// DeriveWinternitzKeyPair derives (or looks up) the Winternitz public
	// key committing to a message of messageSize bytes at derivationIndex.
	DeriveWinternitzKeyPair(ctx context.Context, hashType txtypes.WinternitzHashType,
		derivationIndex, messageSize uint32) (*txtypes.WinternitzPublicKey, error)

	// SignWinternitz produces a Winternitz one-time signature over message
	// using the key previously derived at derivationIndex.
	SignWinternitz(ctx context.Context, hashType txtypes.WinternitzHashType,
		derivationIndex uint32, message []byte) (*txtypes.WinternitzSignature, error)
}

// MuSig2Session wraps a btcec/v2/schnorr/musig2 session, carrying it through
// the builder's two-round aggregate signing flow: every participant first
// exchanges public nonces, then exchanges partial signatures over the same
// sighash, and any participant can combine the partials into the final
// aggregate Schnorr signature.
type MuSig2Session struct {
	session       *musig2.Session
	combinedNonce [musig2.PubNonceSize]byte
	combinedKey   *btcec.PublicKey
}

// CombinedKey returns the MuSig2 aggregate public key this session signs
// for, available as soon as the session is opened (it does not require a
// completed nonce/partial-signature exchange).
func (s *MuSig2Session) CombinedKey() *btcec.PublicKey {
	return s.combinedKey
}

// PublicNonce returns this session's public nonce, to be exchanged with the
// other participants before any partial signature can be produced.
func (s *MuSig2Session) PublicNonce() [musig2.PubNonceSize]byte {
	return s.session.PublicNonce()
}

// RegisterPublicNonces incorporates the other participants' public nonces.
// Must be called with every other participant's nonce before Sign.
func (s *MuSig2Session) RegisterPublicNonces(nonces [][musig2.PubNonceSize]byte) (bool, error) {
	var haveAll bool
	for _, n := range nonces {
		var err error
		haveAll, err = s.session.RegisterPubNonce(n)
		if err != nil {
			return false, fmt.Errorf("keymgr: registering musig2 nonce: %w", err)
		}
	}
	return haveAll, nil
}

// Sign produces this participant's partial signature over msg.
func (s *MuSig2Session) Sign(msg [32]byte) (*musig2.PartialSignature, error) {
	return s.session.Sign(msg)
}

// CombineSignatures folds in partial signatures from the other
// participants, returning true once every participant's partial has been
// combined and FinalSignature is ready to call.
func (s *MuSig2Session) CombineSignatures(partials []*musig2.PartialSignature) (bool, error) {
	var done bool
	for _, p := range partials {
		var err error
		done, err = s.session.CombineSig(p)
		if err != nil {
			return false, fmt.Errorf("keymgr: combining musig2 partial signature: %w", err)
		}
	}
	return done, nil
}

// FinalSignature returns the aggregate Schnorr signature once
// CombineSignatures has reported completion.
func (s *MuSig2Session) FinalSignature() *schnorr.Signature {
	return s.session.FinalSig()
}
