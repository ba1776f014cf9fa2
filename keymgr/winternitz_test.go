package keymgr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

func TestWinternitzSignAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	for _, hashType := range []txtypes.WinternitzHashType{txtypes.WinternitzHash160, txtypes.WinternitzSHA256} {
		priv, pub, err := GenerateWinternitzKeyPair(hashType, 0, 4)
		require.NoError(t, err)

		message := []byte{0x01, 0x02, 0xfe, 0x00}
		sig, err := priv.Sign(message)
		require.NoError(t, err)
		require.Len(t, sig.ChainHashes, int(pub.TotalLen()))
		require.Len(t, sig.Digits, int(pub.TotalLen()))

		for i, chainHash := range sig.ChainHashes {
			remaining := txtypes.WinternitzBase - int(sig.Digits[i])
			tip := iterateHash(hashType, chainHash, remaining)
			require.True(t, bytes.Equal(tip, pub.Hashes[i]), "chain %d did not reach the published tip", i)
		}
	}
}

func TestWinternitzSignRejectsWrongMessageLength(t *testing.T) {
	t.Parallel()

	priv, _, err := GenerateWinternitzKeyPair(txtypes.WinternitzSHA256, 0, 4)
	require.NoError(t, err)

	_, err = priv.Sign([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestWinternitzPublicKeyRecomputesFromSeeds(t *testing.T) {
	t.Parallel()

	priv, pub, err := GenerateWinternitzKeyPair(txtypes.WinternitzHash160, 3, 2)
	require.NoError(t, err)

	recomputed := priv.PublicKey()
	require.Equal(t, pub.Hashes, recomputed.Hashes)
	require.Equal(t, pub.DerivationIndex, recomputed.DerivationIndex)
}

func TestChecksumSizeGrowsWithMessageSize(t *testing.T) {
	t.Parallel()

	small := (&txtypes.WinternitzPublicKey{MessageSize: 1}).ChecksumSize()
	large := (&txtypes.WinternitzPublicKey{MessageSize: 32}).ChecksumSize()
	require.GreaterOrEqual(t, large, small)
}
