package bitvmx

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/keychain"
	"github.com/stretchr/testify/require"

	"github.com/bitvmx-labs/protocol-builder/keymgr"
	"github.com/bitvmx-labs/protocol-builder/scripts"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

func locator(index uint32) keychain.KeyLocator {
	return keychain.KeyLocator{Family: 0, Index: index}
}

func TestBuildAndSignSegwitChainEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	signer := keymgr.NewLocalSigner([]byte("builder-test-seed"))
	p := New("funding-to-recover", signer)

	pub, err := p.DeriveKey(ctx, locator(0))
	require.NoError(t, err)

	require.NoError(t, p.AddTransaction("start", 2, 0))
	_, err = p.AddInput("start", txtypes.EcdsaAll(), txtypes.NewSegwitSpend(), 0)
	require.NoError(t, err)

	fundingTxid := chainhash.HashH([]byte("funding"))
	fundingOutput := txtypes.NewSegwitKeyOutput(100_000, nil, pub)
	require.NoError(t, p.ConnectExternal("fund", fundingTxid, 0, fundingOutput,
		"start", txtypes.InputIndex(0)))

	startOutIdx, err := p.AddOutput("start", txtypes.NewSegwitKeyOutput(txtypes.AutoAmount, nil, pub))
	require.NoError(t, err)

	require.NoError(t, p.AddTransaction("next", 2, 0))
	_, err = p.AddInput("next", txtypes.EcdsaAll(), txtypes.NewSegwitSpend(), 0)
	require.NoError(t, err)
	require.NoError(t, p.Connect("spend", "start", txtypes.OutputIndex(startOutIdx),
		"next", txtypes.InputIndex(0)))
	_, err = p.AddOutput("next", txtypes.NewSegwitKeyOutput(txtypes.RecoverAmount, nil, pub))
	require.NoError(t, err)

	require.Equal(t, StateMutable, p.State())
	require.NoError(t, p.Build())
	require.Equal(t, StateBuilt, p.State())

	require.NoError(t, p.Sign(ctx))
	require.Equal(t, StateSigned, p.State())

	startTx, err := p.TransactionToSend("start", nil)
	require.NoError(t, err)
	require.Len(t, startTx.TxIn[0].Witness, 2)

	nextTx, err := p.TransactionToSend("next", nil)
	require.NoError(t, err)
	require.Len(t, nextTx.TxIn[0].Witness, 2)
	require.Equal(t, startTx.TxHash(), nextTx.TxIn[0].PreviousOutPoint.Hash)
}

func TestSignBeforeBuildFails(t *testing.T) {
	t.Parallel()

	signer := keymgr.NewLocalSigner([]byte("seed"))
	p := New("unbuilt", signer)
	require.ErrorIs(t, p.Sign(context.Background()), ErrNotBuilt)
}

func TestMutationAfterBuildDemotesState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	signer := keymgr.NewLocalSigner([]byte("seed"))
	p := New("demote-test", signer)

	pub, err := p.DeriveKey(ctx, locator(0))
	require.NoError(t, err)

	require.NoError(t, p.AddTransaction("only", 2, 0))
	_, err = p.AddInput("only", txtypes.EcdsaAll(), txtypes.NewSegwitSpend(), 0)
	require.NoError(t, err)

	txid := chainhash.HashH([]byte("external"))
	require.NoError(t, p.ConnectExternal("fund", txid, 0,
		txtypes.NewSegwitKeyOutput(50_000, nil, pub), "only", txtypes.InputIndex(0)))
	_, err = p.AddOutput("only", txtypes.NewSegwitKeyOutput(txtypes.RecoverAmount, nil, pub))
	require.NoError(t, err)

	require.NoError(t, p.Build())
	require.Equal(t, StateBuilt, p.State())

	_, err = p.AddOutput("only", txtypes.NewOpReturnOutput(nil, []byte("late")))
	require.NoError(t, err)
	require.Equal(t, StateMutable, p.State())
}

func TestTaprootScriptPathThreeLeavesWitnessOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	signer := keymgr.NewLocalSigner([]byte("script-path-test-seed"))
	p := New("script-path", signer)

	internalKey, err := p.DeriveKey(ctx, locator(0))
	require.NoError(t, err)

	leaves := make([]*txtypes.ProtocolScript, 3)
	for i := range leaves {
		leafKey, err := p.DeriveKey(ctx, locator(uint32(i+1)))
		require.NoError(t, err)
		leaf, err := scripts.CheckSignature(leafKey)
		require.NoError(t, err)
		leaves[i] = leaf
	}

	require.NoError(t, p.AddTransaction("start", 2, 0))
	_, err = p.AddInput("start", txtypes.EcdsaAll(), txtypes.NewSegwitSpend(), 0)
	require.NoError(t, err)

	fundingTxid := chainhash.HashH([]byte("funding"))
	require.NoError(t, p.ConnectExternal("fund", fundingTxid, 0,
		txtypes.NewSegwitKeyOutput(100_000, nil, internalKey), "start", txtypes.InputIndex(0)))

	taprootOutput := txtypes.NewTaprootOutput(txtypes.AutoAmount, nil, internalKey, nil, leaves, false, nil)

	require.NoError(t, p.AddTransaction("next", 2, 0))
	require.NoError(t, p.Connect("spend", "start", txtypes.OutputAuto(taprootOutput),
		"next", txtypes.InputAuto(txtypes.TaprootAll(), txtypes.NewScriptsSpend(0, 1, 2))))
	_, err = p.AddOutput("next", txtypes.NewSegwitKeyOutput(txtypes.RecoverAmount, nil, internalKey))
	require.NoError(t, err)

	require.NoError(t, p.BuildAndSign(ctx))

	nextTx, err := p.TransactionToSend("next", map[int]SpendChoice{0: LeafChoice(1)})
	require.NoError(t, err)

	witness := nextTx.TxIn[0].Witness
	require.Len(t, witness, 3)
	require.Equal(t, leaves[1].Script(), []byte(witness[1]))
}

func TestScriptPathLeafWithSkipSignModeNeedsNoSignature(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	signer := keymgr.NewLocalSigner([]byte("skip-mode-test-seed"))
	p := New("skip-mode", signer)

	internalKey, err := p.DeriveKey(ctx, locator(0))
	require.NoError(t, err)
	renewKey, err := p.DeriveKey(ctx, locator(1))
	require.NoError(t, err)

	unsignedLeaf := txtypes.NewUnsignedProtocolScript([]byte{0x51}, nil)
	renewLeaf, err := scripts.CheckSignature(renewKey)
	require.NoError(t, err)
	leaves := []*txtypes.ProtocolScript{unsignedLeaf, renewLeaf}

	require.NoError(t, p.AddTransaction("start", 2, 0))
	_, err = p.AddInput("start", txtypes.EcdsaAll(), txtypes.NewSegwitSpend(), 0)
	require.NoError(t, err)

	fundingTxid := chainhash.HashH([]byte("funding"))
	require.NoError(t, p.ConnectExternal("fund", fundingTxid, 0,
		txtypes.NewSegwitKeyOutput(100_000, nil, internalKey), "start", txtypes.InputIndex(0)))

	taprootOutput := txtypes.NewTaprootOutput(txtypes.AutoAmount, nil, internalKey, nil, leaves, false, nil)

	require.NoError(t, p.AddTransaction("next", 2, 0))
	require.NoError(t, p.Connect("spend", "start", txtypes.OutputAuto(taprootOutput),
		"next", txtypes.InputAuto(txtypes.TaprootAll(), txtypes.NewScriptsSpend(0, 1))))
	_, err = p.AddOutput("next", txtypes.NewSegwitKeyOutput(txtypes.RecoverAmount, nil, internalKey))
	require.NoError(t, err)

	require.NoError(t, p.BuildAndSign(ctx))

	nextTx, err := p.TransactionToSend("next", map[int]SpendChoice{0: LeafChoice(0)})
	require.NoError(t, err)

	witness := nextTx.TxIn[0].Witness
	require.Len(t, witness, 2)
	require.Equal(t, unsignedLeaf.Script(), []byte(witness[0]))
}

func TestAddRoundsSynthesizesChallengeResponseChain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	signer := keymgr.NewLocalSigner([]byte("rounds-test-seed"))
	p := New("rounds", signer)

	keyA, err := p.DeriveKey(ctx, locator(0))
	require.NoError(t, err)
	keyB, err := p.DeriveKey(ctx, locator(1))
	require.NoError(t, err)

	leafA, err := scripts.CheckSignature(keyA)
	require.NoError(t, err)
	leafB, err := scripts.CheckSignature(keyB)
	require.NoError(t, err)

	round := RoundParams{
		InternalKeyA: keyA,
		InternalKeyB: keyB,
		LeavesA:      []*txtypes.ProtocolScript{leafA},
		LeavesB:      []*txtypes.ProtocolScript{leafB},
		SighashA:     txtypes.TaprootAll(),
		SighashB:     txtypes.TaprootAll(),
	}

	namesA, namesB, err := p.AddRounds(3, "a", "b", round)
	require.NoError(t, err)
	require.Equal(t, []string{"a_0", "a_1", "a_2"}, namesA)
	require.Equal(t, []string{"b_0", "b_1", "b_2"}, namesB)

	for _, name := range namesA {
		require.True(t, p.Graph.ContainsTransaction(name))
	}
	for _, name := range namesB {
		require.True(t, p.Graph.ContainsTransaction(name))
	}

	// Each b_i is fed by a_i; a_0 has no predecessor in the chain; a_1 and
	// a_2 are fed back by the previous round's b_i, giving 3 forward edges
	// and 2 backward edges, 5 total.
	require.Len(t, p.Graph.Dependencies(namesA[0]), 0)
	for i := 0; i < 3; i++ {
		deps := p.Graph.Dependencies(namesB[i])
		require.Len(t, deps, 1)
		require.Equal(t, namesA[i], deps[0].From)
	}
	for i := 1; i < 3; i++ {
		deps := p.Graph.Dependencies(namesA[i])
		require.Len(t, deps, 1)
		require.Equal(t, namesB[i-1], deps[0].From)
	}

	order, err := p.Graph.TopoSort()
	require.NoError(t, err)
	require.Len(t, order, 6)
}

func TestConnectRejectsDoubleBindingSameOutput(t *testing.T) {
	t.Parallel()

	signer := keymgr.NewLocalSigner([]byte("seed"))
	p := New("double-bind", signer)

	require.NoError(t, p.AddTransaction("start", 2, 0))
	_, err := p.AddOutput("start", txtypes.NewSegwitKeyOutput(1000, nil, nil))
	require.NoError(t, err)

	require.NoError(t, p.AddTransaction("next", 2, 0))
	require.NoError(t, p.AddTransaction("other", 2, 0))
	require.NoError(t, p.Connect("c1", "start", txtypes.OutputIndex(0), "next",
		txtypes.InputAuto(txtypes.EcdsaAll(), txtypes.NewSegwitSpend())))

	err = p.Connect("c2", "start", txtypes.OutputIndex(0), "other",
		txtypes.InputAuto(txtypes.EcdsaAll(), txtypes.NewSegwitSpend()))
	require.ErrorIs(t, err, ErrOutputAlreadyConsumed)
}

func TestBuildRejectsCycle(t *testing.T) {
	t.Parallel()

	signer := keymgr.NewLocalSigner([]byte("seed"))
	p := New("cycle-test", signer)

	require.NoError(t, p.AddTransaction("a", 2, 0))
	require.NoError(t, p.AddTransaction("b", 2, 0))

	_, err := p.AddOutput("a", txtypes.NewSegwitKeyOutput(1000, nil, nil))
	require.NoError(t, err)
	_, err = p.AddInput("b", txtypes.EcdsaAll(), txtypes.NewSegwitSpend(), 0)
	require.NoError(t, err)
	require.NoError(t, p.Connect("a-to-b", "a", txtypes.OutputIndex(0), "b", txtypes.InputIndex(0)))

	_, err = p.AddOutput("b", txtypes.NewSegwitKeyOutput(1000, nil, nil))
	require.NoError(t, err)
	_, err = p.AddInput("a", txtypes.EcdsaAll(), txtypes.NewSegwitSpend(), 0)
	require.NoError(t, err)
	require.NoError(t, p.Connect("b-to-a", "b", txtypes.OutputIndex(0), "a", txtypes.InputIndex(0)))

	err = p.Build()
	require.Error(t, err)
}
