package fee

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/bitvmx-labs/protocol-builder/graph"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

func fundedChain(t *testing.T, fundingValue int64) (*graph.TransactionGraph, []string) {
	g := graph.New()
	require.NoError(t, g.AddTransaction("start", 2, 0))
	_, err := g.AddInput("start", txtypes.EcdsaAll(), txtypes.NewSegwitSpend(), 0)
	require.NoError(t, err)
	txid := chainhash.HashH([]byte("funding"))
	require.NoError(t, g.ConnectExternal("fund", txid, 0,
		txtypes.NewSegwitKeyOutput(txtypes.Amount(fundingValue), nil, nil), "start", 0))

	outIdx, err := g.AddOutput("start", txtypes.NewSegwitKeyOutput(txtypes.AutoAmount, nil, nil))
	require.NoError(t, err)

	require.NoError(t, g.AddTransaction("next", 2, 0))
	_, err = g.AddInput("next", txtypes.EcdsaAll(), txtypes.NewSegwitSpend(), 0)
	require.NoError(t, err)
	require.NoError(t, g.Connect("spend", "start", outIdx, "next", 0))
	_, err = g.AddOutput("next", txtypes.NewSegwitKeyOutput(txtypes.RecoverAmount, nil, nil))
	require.NoError(t, err)

	return g, []string{"start", "next"}
}

func TestResolveAmountsFillsAutoAndRecoverOutputs(t *testing.T) {
	t.Parallel()

	g, order := fundedChain(t, 100_000)
	require.NoError(t, ResolveAmounts(g, order, NewEstimator()))

	start, err := g.Node("start")
	require.NoError(t, err)
	require.False(t, start.OutputTypes[0].Value.IsSentinel())
	require.Greater(t, int64(start.OutputTypes[0].Value), int64(0))

	next, err := g.Node("next")
	require.NoError(t, err)
	require.False(t, next.OutputTypes[0].Value.IsSentinel())
	require.Greater(t, int64(next.OutputTypes[0].Value), int64(0))
}

func TestResolveAmountsFailsWhenFundingTooSmall(t *testing.T) {
	t.Parallel()

	g, order := fundedChain(t, 1)
	err := ResolveAmounts(g, order, NewEstimator())
	require.ErrorIs(t, err, ErrAutoAmountUnderflow)
}

func TestResolveAmountsRejectsMultipleRecoverOutputs(t *testing.T) {
	t.Parallel()

	g, order := fundedChain(t, 100_000)
	node, err := g.Node("next")
	require.NoError(t, err)
	_, err = g.AddOutput("next", txtypes.NewSegwitKeyOutput(txtypes.RecoverAmount, nil, nil))
	require.NoError(t, err)
	_ = node

	err = ResolveAmounts(g, order, NewEstimator())
	require.ErrorIs(t, err, ErrMultipleRecoverOutputs)
}
