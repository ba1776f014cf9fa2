// Package keymgr defines the narrow Signer interface the protocol builder
// consumes to obtain signatures, plus a self-contained Winternitz one-time
// signature primitive. No general-purpose Go library implements Winternitz
// signatures, so the hash-chain scheme is implemented directly here.
package keymgr

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// WinternitzPrivateKey holds the per-chain seed preimages backing one
// Winternitz one-time signature.
type WinternitzPrivateKey struct {
	HashType        txtypes.WinternitzHashType
	DerivationIndex uint32
	MessageSize     uint32
	seeds           [][]byte
}

// GenerateWinternitzKeyPair derives a fresh Winternitz key pair for a
// message of messageSize bytes under the given hash type. The seeds are
// drawn from a CSPRNG; deriving them instead from a caller-held master seed
// plus derivationIndex is the caller's responsibility if determinism across
// restarts is required — this builder only needs the resulting key pair to
// be internally consistent.
func GenerateWinternitzKeyPair(hashType txtypes.WinternitzHashType, derivationIndex,
	messageSize uint32) (*WinternitzPrivateKey, *txtypes.WinternitzPublicKey, error) {

	priv := &WinternitzPrivateKey{
		HashType:        hashType,
		DerivationIndex: derivationIndex,
		MessageSize:     messageSize,
	}

	pub := &txtypes.WinternitzPublicKey{
		HashType:        hashType,
		DerivationIndex: derivationIndex,
		MessageSize:     messageSize,
	}

	total := int(pub.TotalLen())
	priv.seeds = make([][]byte, total)
	pub.Hashes = make([][]byte, total)

	for i := 0; i < total; i++ {
		seed := make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return nil, nil, fmt.Errorf("keymgr: generating winternitz seed: %w", err)
		}
		priv.seeds[i] = seed
		pub.Hashes[i] = iterateHash(hashType, seed, txtypes.WinternitzBase)
	}

	return priv, pub, nil
}

// PublicKey recomputes the public key for priv.
func (priv *WinternitzPrivateKey) PublicKey() *txtypes.WinternitzPublicKey {
	pub := &txtypes.WinternitzPublicKey{
		HashType:        priv.HashType,
		DerivationIndex: priv.DerivationIndex,
		MessageSize:     priv.MessageSize,
		Hashes:          make([][]byte, len(priv.seeds)),
	}
	for i, seed := range priv.seeds {
		pub.Hashes[i] = iterateHash(priv.HashType, seed, txtypes.WinternitzBase)
	}
	return pub
}

// Sign produces a Winternitz one-time signature over message, which must be
// exactly MessageSize bytes.
func (priv *WinternitzPrivateKey) Sign(message []byte) (*txtypes.WinternitzSignature, error) {
	if uint32(len(message)) != priv.MessageSize {
		return nil, fmt.Errorf("keymgr: message length %d does not match key message size %d",
			len(message), priv.MessageSize)
	}

	pub := priv.PublicKey()
	total := int(pub.TotalLen())
	checksumSize := int(pub.ChecksumSize())

	digits := make([]byte, total)
	copy(digits, message)

	checksum := uint64(0)
	for _, d := range message {
		checksum += uint64(txtypes.WinternitzBase - 1 - int(d))
	}
	for i := checksumSize - 1; i >= 0; i-- {
		digits[int(priv.MessageSize)+i] = byte(checksum & 0xff)
		checksum >>= txtypes.WinternitzBitsPerDigit
	}

	chainHashes := make([][]byte, total)
	for i := 0; i < total; i++ {
		chainHashes[i] = iterateHash(priv.HashType, priv.seeds[i], int(digits[i]))
	}

	return &txtypes.WinternitzSignature{
		PublicKey:   pub,
		ChainHashes: chainHashes,
		Digits:      digits,
	}, nil
}

// iterateHash applies the chosen hash function n times to seed.
func iterateHash(hashType txtypes.WinternitzHashType, seed []byte, n int) []byte {
	cur := seed
	for i := 0; i < n; i++ {
		cur = applyHash(hashType, cur)
	}
	return cur
}

func applyHash(hashType txtypes.WinternitzHashType, data []byte) []byte {
	if hashType == txtypes.WinternitzSHA256 {
		sum := sha256.Sum256(data)
		return sum[:]
	}
	return btcutil.Hash160(data)
}
