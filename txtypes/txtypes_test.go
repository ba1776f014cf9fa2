package txtypes

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func testPubKey(t *testing.T) *btcec.PublicKey {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func TestAmountSentinelsAreNegativeAndDistinct(t *testing.T) {
	t.Parallel()

	require.True(t, AutoAmount.IsSentinel())
	require.True(t, RecoverAmount.IsSentinel())
	require.False(t, Amount(0).IsSentinel())
	require.False(t, Amount(5000).IsSentinel())
	require.NotEqual(t, AutoAmount, RecoverAmount)
	require.Equal(t, "AUTO_AMOUNT", AutoAmount.String())
	require.Equal(t, "5000", Amount(5000).String())
}

func TestSpendModeConstructors(t *testing.T) {
	t.Parallel()

	segwit := NewSegwitSpend()
	require.Equal(t, SpendSegwit, segwit.Kind)

	keyOnly := NewKeyOnlySpend(SignAggregate)
	require.Equal(t, SpendKeyOnly, keyOnly.Kind)
	require.Equal(t, SignAggregate, keyOnly.KeyPathSign)

	scripts := NewScriptsSpend(0, 2, 3)
	require.Equal(t, SpendScripts, scripts.Kind)
	require.Equal(t, []int{0, 2, 3}, scripts.Leaves)
}

func TestSighashSpecCompatibleWith(t *testing.T) {
	t.Parallel()

	taproot := TaprootAll()
	require.True(t, taproot.CompatibleWith(OutputTaproot))
	require.True(t, taproot.CompatibleWith(OutputTimelock))
	require.False(t, taproot.CompatibleWith(OutputSegwitKey))

	ecdsa := EcdsaAll()
	require.True(t, ecdsa.CompatibleWith(OutputSegwitKey))
	require.True(t, ecdsa.CompatibleWith(OutputSegwitScript))
	require.True(t, ecdsa.CompatibleWith(OutputSpeedup))
	require.False(t, ecdsa.CompatibleWith(OutputTaproot))
}

func TestSigVariantConstructors(t *testing.T) {
	t.Parallel()

	require.Equal(t, VariantKeyPath, KeyPathVariant().Kind)
	require.Equal(t, VariantSegwit, SegwitVariant().Kind)

	leaf := LeafVariant(3)
	require.Equal(t, VariantLeaf, leaf.Kind)
	require.Equal(t, 3, leaf.LeafIndex)
}

func TestOutputSpecAndInputSpecConstructors(t *testing.T) {
	t.Parallel()

	idx := OutputIndex(2)
	require.Equal(t, OutputSpecIndex, idx.Kind)
	require.Equal(t, 2, idx.Index)

	auto := OutputAuto(NewOpReturnOutput(nil, []byte("x")))
	require.Equal(t, OutputSpecAuto, auto.Kind)
	require.NotNil(t, auto.Auto)

	last := OutputLast()
	require.Equal(t, OutputSpecLast, last.Kind)

	inIdx := InputIndex(1)
	require.Equal(t, InputSpecIndex, inIdx.Kind)

	inAuto := InputAuto(EcdsaAll(), NewSegwitSpend())
	require.Equal(t, InputSpecAuto, inAuto.Kind)
	require.Equal(t, SpendSegwit, inAuto.SpendMode.Kind)
}

func TestOutputTypeConstructorsSetKind(t *testing.T) {
	t.Parallel()

	pub := testPubKey(t)

	segwitKey := NewSegwitKeyOutput(1000, nil, pub)
	require.Equal(t, OutputSegwitKey, segwitKey.Kind)
	require.Equal(t, "SegwitKey", segwitKey.Name())

	taproot := NewTaprootOutput(1000, nil, pub, nil, nil, true, nil)
	require.Equal(t, OutputTaproot, taproot.Kind)
	require.True(t, taproot.WithKeyPath)
	require.False(t, taproot.IsTaprootScriptPath())

	leaf := NewProtocolScript([]byte{0x51}, pub)
	taprootWithLeaf := NewTaprootOutput(1000, nil, pub, nil, []*ProtocolScript{leaf}, false, nil)
	require.True(t, taprootWithLeaf.IsTaprootScriptPath())

	timelock := NewTimelockOutput(1000, nil, pub, leaf, leaf, 144, pub, pub)
	require.Equal(t, OutputTimelock, timelock.Kind)
	require.Len(t, timelock.Leaves, 2)

	speedup := NewSpeedupOutput(330, nil, pub)
	require.Equal(t, OutputSpeedup, speedup.Kind)

	opReturn := NewOpReturnOutput(nil, []byte("hello"))
	require.Equal(t, Amount(0), opReturn.Value)
}

func TestOutputTypeHasPrevouts(t *testing.T) {
	t.Parallel()

	without := NewTaprootOutput(1000, nil, nil, nil, nil, true, nil)
	require.False(t, without.HasPrevouts())
}

func TestProtocolScriptConstructorsSetSignMode(t *testing.T) {
	t.Parallel()

	pub := testPubKey(t)

	single := NewProtocolScript([]byte{0x51}, pub)
	require.Equal(t, SignSingle, single.SignMode())
	require.True(t, single.VerifyingKey().IsEqual(pub))

	aggregate := NewAggregateProtocolScript([]byte{0x51}, pub)
	require.Equal(t, SignAggregate, aggregate.SignMode())

	winternitz := NewWinternitzProtocolScript([]byte{0x51})
	require.Equal(t, SignWinternitz, winternitz.SignMode())
	require.Nil(t, winternitz.VerifyingKey())

	unsigned := NewUnsignedProtocolScript([]byte{0x51}, pub)
	require.Equal(t, SignSkip, unsigned.SignMode())
}

func TestProtocolScriptAddKeyRejectsEmptyName(t *testing.T) {
	t.Parallel()

	p := NewProtocolScript([]byte{0x51}, testPubKey(t))
	err := p.AddKey("  ", 0, KeyKindECDSA, 0)
	require.ErrorIs(t, err, ErrEmptyScriptName)
}

func TestProtocolScriptKeysOrderedByPosition(t *testing.T) {
	t.Parallel()

	p := NewProtocolScript([]byte{0x51}, testPubKey(t))
	require.NoError(t, p.AddKey("second", 1, KeyKindECDSA, 1))
	require.NoError(t, p.AddKey("first", 0, KeyKindXOnly, 0))

	keys := p.Keys()
	require.Len(t, keys, 2)
	require.Equal(t, "first", keys[0].Name)
	require.Equal(t, "second", keys[1].Name)
}

func TestSignatureSerializeAppendsSighashByteExceptSchnorrDefault(t *testing.T) {
	t.Parallel()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var hash [32]byte
	schnorrSig, err := schnorr.Sign(priv, hash[:])
	require.NoError(t, err)

	defaultSig := NewSchnorrSignature(schnorrSig, txscript.SigHashDefault)
	require.Len(t, defaultSig.Serialize(), 64)

	allSig := NewSchnorrSignature(schnorrSig, txscript.SigHashAll)
	require.Len(t, allSig.Serialize(), 65)
}

func TestNewWinternitzSignatureHasNoSerializedForm(t *testing.T) {
	t.Parallel()

	sig := NewWinternitzSignature(&WinternitzSignature{})
	require.Nil(t, sig.Serialize())
}
