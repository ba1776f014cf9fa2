package keymgr

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/keychain"
	"github.com/stretchr/testify/require"

	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

func locator(family, index uint32) keychain.KeyLocator {
	return keychain.KeyLocator{Family: keychain.KeyFamily(family), Index: index}
}

func TestDeriveKeyPairIsDeterministicPerLocator(t *testing.T) {
	t.Parallel()

	signer := NewLocalSigner([]byte("test-seed"))
	loc := locator(0, 5)

	pub1, err := signer.DeriveKeyPair(context.Background(), loc)
	require.NoError(t, err)
	pub2, err := signer.DeriveKeyPair(context.Background(), loc)
	require.NoError(t, err)
	require.True(t, pub1.IsEqual(pub2))

	other, err := signer.DeriveKeyPair(context.Background(), locator(0, 6))
	require.NoError(t, err)
	require.False(t, pub1.IsEqual(other))
}

func TestSignECDSAProducesVerifiableSignature(t *testing.T) {
	t.Parallel()

	signer := NewLocalSigner([]byte("test-seed"))
	loc := locator(1, 0)
	pub, err := signer.DeriveKeyPair(context.Background(), loc)
	require.NoError(t, err)

	var sigHash [32]byte
	copy(sigHash[:], []byte("a 32 byte sighash for this test"))

	sig, err := signer.SignECDSA(context.Background(), loc, sigHash[:])
	require.NoError(t, err)
	require.True(t, sig.Verify(sigHash[:], pub))
}

func TestSignSchnorrProducesVerifiableSignature(t *testing.T) {
	t.Parallel()

	signer := NewLocalSigner([]byte("test-seed"))
	loc := locator(2, 0)
	pub, err := signer.DeriveKeyPair(context.Background(), loc)
	require.NoError(t, err)

	var sigHash [32]byte
	copy(sigHash[:], []byte("a 32 byte sighash for this test"))

	sig, err := signer.SignSchnorr(context.Background(), loc, sigHash[:], nil)
	require.NoError(t, err)
	require.True(t, sig.Verify(sigHash[:], pub))
}

func TestSignSchnorrWithTaprootTweakVerifiesAgainstOutputKey(t *testing.T) {
	t.Parallel()

	signer := NewLocalSigner([]byte("test-seed"))
	loc := locator(2, 1)
	internalKey, err := signer.DeriveKeyPair(context.Background(), loc)
	require.NoError(t, err)

	tweak := []byte("32-byte taproot merkle root here")[:32]
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, tweak)

	var sigHash [32]byte
	copy(sigHash[:], []byte("another 32 byte sighash message"))

	sig, err := signer.SignSchnorr(context.Background(), loc, sigHash[:], tweak)
	require.NoError(t, err)
	require.True(t, sig.Verify(sigHash[:], outputKey))
}

func TestOpenMuSig2SessionCombinedKeyIsDeterministicAcrossParticipantOrder(t *testing.T) {
	t.Parallel()

	signerA := NewLocalSigner([]byte("seed-a"))
	locA := locator(3, 0)
	pubA, err := signerA.DeriveKeyPair(context.Background(), locA)
	require.NoError(t, err)

	signerB := NewLocalSigner([]byte("seed-b"))
	locB := locator(3, 0)
	pubB, err := signerB.DeriveKeyPair(context.Background(), locB)
	require.NoError(t, err)

	sessionA, err := signerA.OpenMuSig2Session(context.Background(), locA,
		[]*btcec.PublicKey{pubA, pubB})
	require.NoError(t, err)
	sessionB, err := signerB.OpenMuSig2Session(context.Background(), locB,
		[]*btcec.PublicKey{pubB, pubA})
	require.NoError(t, err)

	require.True(t, sessionA.CombinedKey().IsEqual(sessionB.CombinedKey()))
}

func TestDeriveAndSignWinternitzRoundTrip(t *testing.T) {
	t.Parallel()

	signer := NewLocalSigner([]byte("test-seed"))

	pub, err := signer.DeriveWinternitzKeyPair(context.Background(), txtypes.WinternitzSHA256, 0, 4)
	require.NoError(t, err)

	message := []byte{0x10, 0x20, 0x30, 0x40}
	sig, err := signer.SignWinternitz(context.Background(), txtypes.WinternitzSHA256, 0, message)
	require.NoError(t, err)
	require.Equal(t, pub.Hashes, sig.PublicKey.Hashes)
}

func TestSignWinternitzFailsWithoutDerivingFirst(t *testing.T) {
	t.Parallel()

	signer := NewLocalSigner([]byte("test-seed"))
	_, err := signer.SignWinternitz(context.Background(), txtypes.WinternitzSHA256, 99, []byte{0x01})
	require.Error(t, err)
}
