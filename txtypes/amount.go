package txtypes

import "strconv"

// Amount is a satoshi value that may carry one of the two placeholder
// sentinels until the amount resolver runs. Concrete amounts are always
// non-negative, so the sentinels borrow the negative range.
type Amount int64

const (
	// AutoAmount marks an output whose value must be back-filled with the
	// minimum fee-sufficient amount for its consuming transaction.
	AutoAmount Amount = -1

	// RecoverAmount marks an output that sweeps whatever value remains in
	// its own transaction once every other output has been resolved.
	RecoverAmount Amount = -2
)

// IsSentinel reports whether the amount is still a placeholder.
func (a Amount) IsSentinel() bool {
	return a == AutoAmount || a == RecoverAmount
}

func (a Amount) String() string {
	switch a {
	case AutoAmount:
		return "AUTO_AMOUNT"
	case RecoverAmount:
		return "RECOVER_AMOUNT"
	default:
		return strconv.FormatInt(int64(a), 10)
	}
}
