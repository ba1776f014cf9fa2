// Package fee estimates transaction virtual size ahead of signing and
// resolves AUTO_AMOUNT/RECOVER_AMOUNT output placeholders into concrete
// satoshi values, computing virtual size from the base transaction fields
// plus a per-input witness estimate for inputs that are not yet signed
// (auto-amount outputs must be resolved before signing produces a real
// witness to measure).
package fee

import (
	"github.com/bitvmx-labs/protocol-builder/graph"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

const (
	ecdsaSigEstimate    = 73 // DER signature plus sighash-type byte, worst case
	schnorrSigEstimate  = 65 // 64-byte Schnorr signature plus sighash-type byte
	compressedKeySize   = 33
	controlBlockBase    = 33 // leaf version/parity byte + internal key
	controlBlockPerHop  = 32 // one sibling hash per tree level
	segwitMarkerFlag    = 2
)

// Estimator computes virtual byte sizes ahead of signing.
type Estimator struct{}

// NewEstimator returns a fee estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// EstimateVSize estimates the virtual size, in vbytes, of node's
// transaction, using its already-structurally-complete inputs/outputs
// (scripts and amounts may still be placeholders; those don't affect size)
// plus a per-input witness-byte estimate driven by each input's spend mode.
func (e *Estimator) EstimateVSize(node *graph.Node) (int64, error) {
	baseSize := int64(node.Tx.SerializeSizeStripped())

	var witnessTotal int64
	hasWitness := false
	for i, input := range node.Inputs {
		w, err := e.estimateInputWitnessBytes(input)
		if err != nil {
			return 0, err
		}
		if w > 0 {
			hasWitness = true
		}
		witnessTotal += w
		_ = i
	}

	totalSize := baseSize + witnessTotal
	if hasWitness {
		totalSize += segwitMarkerFlag
	}

	weight := baseSize*3 + totalSize
	return ceilDiv4(weight), nil
}

func ceilDiv4(weight int64) int64 {
	return (weight + 3) / 4
}

// estimateInputWitnessBytes estimates the serialized witness field size for
// one input (item-count varint plus each item's length-prefixed bytes),
// based purely on its spend mode — no signature needs to exist yet.
func (e *Estimator) estimateInputWitnessBytes(input *graph.InputSpendingInfo) (int64, error) {
	switch input.SpendMode.Kind {
	case txtypes.SpendSegwit:
		scriptLen := int64(0)
		if input.OutputType != nil && input.OutputType.Kind == txtypes.OutputSegwitScript &&
			input.OutputType.Script != nil {
			scriptLen = int64(len(input.OutputType.Script.Script()))
		}
		if scriptLen > 0 {
			// P2WSH: [sig, witness_script]
			return witnessFieldSize([]int64{ecdsaSigEstimate, scriptLen}), nil
		}
		// P2WPKH: [sig, pubkey]
		return witnessFieldSize([]int64{ecdsaSigEstimate, compressedKeySize}), nil

	case txtypes.SpendKeyOnly:
		// Key-path taproot spend: [schnorr_sig]
		return witnessFieldSize([]int64{schnorrSigEstimate}), nil

	case txtypes.SpendScripts:
		if input.OutputType == nil {
			return 0, nil
		}
		numLeaves := len(input.OutputType.Leaves)
		depth := treeDepth(numLeaves)
		controlBlockSize := int64(controlBlockBase + controlBlockPerHop*depth)

		if len(input.SpendMode.Leaves) == 0 {
			return witnessFieldSize([]int64{schnorrSigEstimate, 32, controlBlockSize}), nil
		}

		// The witness assembler picks exactly one of the listed leaves to
		// spend, so the estimate takes the largest single-leaf witness
		// among them rather than summing every candidate.
		var maxSize int64
		for _, leafIdx := range input.SpendMode.Leaves {
			leafLen := int64(32)
			if leafIdx >= 0 && leafIdx < numLeaves && input.OutputType.Leaves[leafIdx] != nil {
				leafLen = int64(len(input.OutputType.Leaves[leafIdx].Script()))
			}
			size := witnessFieldSize([]int64{schnorrSigEstimate, leafLen, controlBlockSize})
			if size > maxSize {
				maxSize = size
			}
		}
		return maxSize, nil

	default:
		return 0, nil
	}
}

func treeDepth(numLeaves int) int {
	depth := 0
	for (1 << depth) < numLeaves {
		depth++
	}
	if depth == 0 && numLeaves > 1 {
		depth = 1
	}
	return depth
}

// witnessFieldSize computes the serialized size of a witness stack: a
// varint item count followed by each item's varint length prefix and bytes.
func witnessFieldSize(items []int64) int64 {
	total := varIntSize(int64(len(items)))
	for _, item := range items {
		total += varIntSize(item) + item
	}
	return total
}

func varIntSize(v int64) int64 {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}
