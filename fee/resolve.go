package fee

import (
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"

	"github.com/bitvmx-labs/protocol-builder/graph"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// DefaultFeeRate is the flat 1 sat/vB rate the resolver assumes absent any
// fee-market input, expressed as lnd's sat-per-kilo-weight-unit type.
const DefaultFeeRate = chainfee.SatPerKWeight(250) // 1 sat/vB == 250 sat/kw

// autoAmountBuffer is the safety margin added on top of the strict minimum
// fee-sufficient AUTO_AMOUNT value.
const autoAmountBufferNum, autoAmountBufferDen = 105, 100

// ResolveAmounts runs the two-pass amount resolver over g: a forward pass
// assigning every AUTO_AMOUNT output the minimum fee-sufficient value for
// its consuming transaction (plus a 5% safety buffer), followed by a
// reverse pass assigning each transaction's single RECOVER_AMOUNT output
// whatever value remains once its inputs, its other outputs, and its own
// estimated fee are accounted for. order must be a valid topological order
// over g's internal transactions.
func ResolveAmounts(g *graph.TransactionGraph, order []string, estimator *Estimator) error {
	if err := resolveAutoAmounts(g, order, estimator); err != nil {
		return err
	}
	if err := resolveRecoverAmounts(g, order, estimator); err != nil {
		return err
	}
	return checkFullyResolved(g, order)
}

func resolveAutoAmounts(g *graph.TransactionGraph, order []string, estimator *Estimator) error {
	for _, name := range order {
		node, err := g.Node(name)
		if err != nil {
			return err
		}

		autoIndexes := make([]int, 0)
		for i, ot := range node.OutputTypes {
			if ot.Value != txtypes.AutoAmount {
				continue
			}

			consumerName, consumerInput, found := findConsumer(g, name, i)
			if !found {
				return ErrMissingUpstreamOutputs
			}

			consumerNode, err := g.Node(consumerName)
			if err != nil {
				return err
			}

			vsize, err := estimator.EstimateVSize(consumerNode)
			if err != nil {
				return err
			}

			minValue := feeForVSize(vsize, DefaultFeeRate)
			minValue = (minValue*autoAmountBufferNum + autoAmountBufferDen - 1) / autoAmountBufferDen

			ot.Value = txtypes.Amount(minValue)
			node.Tx.TxOut[i].Value = minValue
			autoIndexes = append(autoIndexes, i)
			_ = consumerInput
		}

		if len(autoIndexes) == 0 {
			continue
		}

		available, err := availableValue(g, node)
		if err != nil {
			return err
		}
		// availableValue has already subtracted the AUTO_AMOUNT values just
		// assigned, so a negative remainder means they exceed the parent.
		if available < 0 {
			return ErrAutoAmountUnderflow
		}
	}
	return nil
}

func resolveRecoverAmounts(g *graph.TransactionGraph, order []string, estimator *Estimator) error {
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		node, err := g.Node(name)
		if err != nil {
			return err
		}

		recoverIdx := -1
		for j, ot := range node.OutputTypes {
			if ot.Value != txtypes.RecoverAmount {
				continue
			}
			if recoverIdx != -1 {
				return ErrMultipleRecoverOutputs
			}
			recoverIdx = j
		}

		if recoverIdx == -1 {
			continue
		}

		available, err := availableValue(g, node)
		if err != nil {
			return err
		}

		vsize, err := estimator.EstimateVSize(node)
		if err != nil {
			return err
		}
		ownFee := feeForVSize(vsize, DefaultFeeRate)

		// availableValue has already subtracted every resolved output.
		recovered := available - ownFee
		node.OutputTypes[recoverIdx].Value = txtypes.Amount(recovered)
		node.Tx.TxOut[recoverIdx].Value = recovered
	}
	return nil
}

func checkFullyResolved(g *graph.TransactionGraph, order []string) error {
	for _, name := range order {
		node, err := g.Node(name)
		if err != nil {
			return err
		}
		for _, ot := range node.OutputTypes {
			if ot.Value.IsSentinel() {
				return ErrUnresolvedAmount
			}
		}
	}
	return nil
}

// availableValue sums node's resolved input values (its prevouts) less any
// already-resolved non-sentinel outputs.
func availableValue(g *graph.TransactionGraph, node *graph.Node) (int64, error) {
	prevouts, err := g.GetPrevouts(node.Name)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, p := range prevouts {
		total += p.Value
	}

	for _, ot := range node.OutputTypes {
		if !ot.Value.IsSentinel() {
			total -= int64(ot.Value)
		}
	}
	return total, nil
}

// findConsumer locates the (transaction, input index) that spends
// producer's output at outputIndex.
func findConsumer(g *graph.TransactionGraph, producer string, outputIndex int) (string, int, bool) {
	for _, name := range g.TransactionNames() {
		for _, dep := range g.Dependencies(name) {
			if dep.From == producer && dep.OutputIndex == outputIndex {
				return name, dep.InputIndex, true
			}
		}
	}
	return "", 0, false
}

// feeForVSize converts an estimated virtual size to a satoshi fee at rate.
func feeForVSize(vsize int64, rate chainfee.SatPerKWeight) int64 {
	// SatPerKWeight is defined per 1000 weight units; 1 vbyte == 4 weight
	// units, so fee = vsize * 4 * rate / 1000.
	return int64(rate) * vsize * 4 / 1000
}
