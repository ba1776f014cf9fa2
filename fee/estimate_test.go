package fee

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitvmx-labs/protocol-builder/graph"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

func buildNode(t *testing.T, name string, spendMode txtypes.SpendMode, sighash txtypes.SighashSpec,
	outputType *txtypes.OutputType) *graph.Node {

	g := graph.New()
	require.NoError(t, g.AddTransaction(name, 2, 0))
	_, err := g.AddInput(name, sighash, spendMode, 0)
	require.NoError(t, err)

	node, err := g.Node(name)
	require.NoError(t, err)
	node.Inputs[0].OutputType = outputType
	return node
}

func TestEstimateVSizeGrowsWithSegwitScriptLength(t *testing.T) {
	t.Parallel()

	e := NewEstimator()

	keyOutput := txtypes.NewSegwitKeyOutput(1000, nil, nil)
	keyNode := buildNode(t, "key", txtypes.NewSegwitSpend(), txtypes.EcdsaAll(), keyOutput)
	keySize, err := e.EstimateVSize(keyNode)
	require.NoError(t, err)

	leaf := txtypes.NewProtocolScript(make([]byte, 200), nil)
	scriptOutput := txtypes.NewSegwitScriptOutput(1000, nil, leaf)
	scriptNode := buildNode(t, "script", txtypes.NewSegwitSpend(), txtypes.EcdsaAll(), scriptOutput)
	scriptSize, err := e.EstimateVSize(scriptNode)
	require.NoError(t, err)

	require.Greater(t, scriptSize, keySize)
}

func TestEstimateVSizeKeyPathSmallerThanScriptPath(t *testing.T) {
	t.Parallel()

	e := NewEstimator()

	keyOnlyNode := buildNode(t, "keyonly", txtypes.NewKeyOnlySpend(txtypes.SignSingle),
		txtypes.TaprootAll(), txtypes.NewTaprootOutput(1000, nil, nil, nil, nil, true, nil))
	keyOnlySize, err := e.EstimateVSize(keyOnlyNode)
	require.NoError(t, err)

	leaves := []*txtypes.ProtocolScript{
		txtypes.NewProtocolScript([]byte{0x51}, nil),
		txtypes.NewProtocolScript([]byte{0x52}, nil),
	}
	scriptsNode := buildNode(t, "scripts", txtypes.NewScriptsSpend(0, 1),
		txtypes.TaprootAll(), txtypes.NewTaprootOutput(1000, nil, nil, nil, leaves, false, nil))
	scriptsSize, err := e.EstimateVSize(scriptsNode)
	require.NoError(t, err)

	require.Greater(t, scriptsSize, keyOnlySize)
}

func TestEstimateInputWitnessBytesScriptPathTakesMaxLeafNotSum(t *testing.T) {
	t.Parallel()

	e := NewEstimator()

	smallLeaf := txtypes.NewProtocolScript([]byte{0x51}, nil)
	bigLeaf := txtypes.NewProtocolScript(make([]byte, 100), nil)
	leaves := []*txtypes.ProtocolScript{smallLeaf, bigLeaf}

	node := buildNode(t, "multi", txtypes.NewScriptsSpend(0, 1), txtypes.TaprootAll(),
		txtypes.NewTaprootOutput(1000, nil, nil, nil, leaves, false, nil))

	got, err := e.estimateInputWitnessBytes(node.Inputs[0])
	require.NoError(t, err)

	depth := treeDepth(len(leaves))
	controlBlockSize := int64(controlBlockBase + controlBlockPerHop*depth)
	wantSingleLeaf := witnessFieldSize([]int64{schnorrSigEstimate, int64(len(bigLeaf.Script())), controlBlockSize})
	wantSummed := wantSingleLeaf + witnessFieldSize([]int64{schnorrSigEstimate, int64(len(smallLeaf.Script())), controlBlockSize})

	require.Equal(t, wantSingleLeaf, got, "estimate must take the larger leaf's witness size, not sum both")
	require.NotEqual(t, wantSummed, got)
}
