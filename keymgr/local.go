package keymgr

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/keychain"

	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// LocalSigner is an in-process Signer backed by deterministically derived
// private keys, without a wallet database behind it: every key is derived
// from a single root seed by hashing the seed together with the requested
// KeyLocator, which is sufficient for a self-contained builder process and
// avoids pulling in a full BIP-32/wallet stack. Safe for concurrent use.
type LocalSigner struct {
	seed []byte

	mu          sync.Mutex
	keys        map[keychain.KeyLocator]*btcec.PrivateKey
	winternitz  map[winternitzLocator]*WinternitzPrivateKey
	musigByLoc  map[keychain.KeyLocator]*musig2.Session
}

type winternitzLocator struct {
	hashType        txtypes.WinternitzHashType
	derivationIndex uint32
	messageSize     uint32
}

// NewLocalSigner returns a LocalSigner deriving all key material from seed.
func NewLocalSigner(seed []byte) *LocalSigner {
	return &LocalSigner{
		seed:       seed,
		keys:       make(map[keychain.KeyLocator]*btcec.PrivateKey),
		winternitz: make(map[winternitzLocator]*WinternitzPrivateKey),
		musigByLoc: make(map[keychain.KeyLocator]*musig2.Session),
	}
}

func (s *LocalSigner) privKeyFor(loc keychain.KeyLocator) *btcec.PrivateKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	if priv, ok := s.keys[loc]; ok {
		return priv
	}

	h := sha256.New()
	h.Write(s.seed)
	h.Write([]byte{byte(loc.Family >> 8), byte(loc.Family)})
	h.Write([]byte{
		byte(loc.Index >> 24), byte(loc.Index >> 16),
		byte(loc.Index >> 8), byte(loc.Index),
	})
	digest := h.Sum(nil)

	priv, _ := btcec.PrivKeyFromBytes(digest)
	s.keys[loc] = priv
	return priv
}

func (s *LocalSigner) DeriveKeyPair(_ context.Context, loc keychain.KeyLocator) (*btcec.PublicKey, error) {
	return s.privKeyFor(loc).PubKey(), nil
}

func (s *LocalSigner) SignECDSA(_ context.Context, loc keychain.KeyLocator, sigHash []byte) (*ecdsa.Signature, error) {
	if len(sigHash) != 32 {
		return nil, fmt.Errorf("keymgr: ecdsa sighash must be 32 bytes, got %d", len(sigHash))
	}
	return ecdsa.Sign(s.privKeyFor(loc), sigHash), nil
}

func (s *LocalSigner) SignSchnorr(_ context.Context, loc keychain.KeyLocator, sigHash []byte, tweak []byte) (*schnorr.Signature, error) {
	if len(sigHash) != 32 {
		return nil, fmt.Errorf("keymgr: schnorr sighash must be 32 bytes, got %d", len(sigHash))
	}

	priv := s.privKeyFor(loc)
	if tweak != nil {
		priv = txscript.TweakTaprootPrivKey(*priv, tweak)
	}

	var msg [32]byte
	copy(msg[:], sigHash)
	return schnorr.Sign(priv, msg[:])
}

func (s *LocalSigner) OpenMuSig2Session(_ context.Context, loc keychain.KeyLocator, participants []*btcec.PublicKey) (*MuSig2Session, error) {
	priv := s.privKeyFor(loc)

	// The musig2 context matches the signing key against the key set in
	// x-only form, so participants are normalized the same way.
	keySet := make([]*btcec.PublicKey, len(participants))
	for i, pub := range participants {
		xOnly, err := schnorr.ParsePubKey(schnorr.SerializePubKey(pub))
		if err != nil {
			return nil, fmt.Errorf("keymgr: normalizing musig2 participant: %w", err)
		}
		keySet[i] = xOnly
	}

	musigCtx, err := musig2.NewContext(priv, true, musig2.WithKnownSigners(keySet))
	if err != nil {
		return nil, fmt.Errorf("keymgr: building musig2 context: %w", err)
	}

	session, err := musigCtx.NewSession()
	if err != nil {
		return nil, fmt.Errorf("keymgr: opening musig2 session: %w", err)
	}

	combinedKey, err := musigCtx.CombinedKey()
	if err != nil {
		return nil, fmt.Errorf("keymgr: computing musig2 combined key: %w", err)
	}

	s.mu.Lock()
	s.musigByLoc[loc] = session
	s.mu.Unlock()

	return &MuSig2Session{session: session, combinedKey: combinedKey}, nil
}

func (s *LocalSigner) DeriveWinternitzKeyPair(_ context.Context, hashType txtypes.WinternitzHashType,
	derivationIndex, messageSize uint32) (*txtypes.WinternitzPublicKey, error) {

	key := winternitzLocator{hashType, derivationIndex, messageSize}

	s.mu.Lock()
	priv, ok := s.winternitz[key]
	s.mu.Unlock()
	if ok {
		return priv.PublicKey(), nil
	}

	priv, pub, err := GenerateWinternitzKeyPair(hashType, derivationIndex, messageSize)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.winternitz[key] = priv
	s.mu.Unlock()

	return pub, nil
}

func (s *LocalSigner) SignWinternitz(_ context.Context, hashType txtypes.WinternitzHashType,
	derivationIndex uint32, message []byte) (*txtypes.WinternitzSignature, error) {

	key := winternitzLocator{hashType, derivationIndex, uint32(len(message))}

	s.mu.Lock()
	priv, ok := s.winternitz[key]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("keymgr: no winternitz key derived at index %d for message size %d",
			derivationIndex, len(message))
	}

	return priv.Sign(message)
}
