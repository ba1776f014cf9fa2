package graph

import "fmt"

// MessageID names one (transaction, input, variant-slot) sighash or
// signature uniquely across the whole graph and renders it as a stable
// string. The signature store does not key on it: InputSpendingInfo keys
// its sighashes and signatures by txtypes.SigVariant.
type MessageID struct {
	Transaction string
	InputIndex  uint32
	SlotIndex   uint32
}

// String renders the canonical "tx:<name>_ix:<input>_sx:<slot>" form.
func (m MessageID) String() string {
	return fmt.Sprintf("tx:%s_ix:%d_sx:%d", m.Transaction, m.InputIndex, m.SlotIndex)
}
