package fee

import "errors"

var (
	// ErrAutoAmountUnderflow is returned when an AUTO_AMOUNT output's
	// computed minimum value exceeds what the parent transaction has
	// available.
	ErrAutoAmountUnderflow = errors.New("fee: auto amount exceeds available parent value")
	// ErrMultipleRecoverOutputs is returned when a transaction declares
	// more than one RECOVER_AMOUNT output.
	ErrMultipleRecoverOutputs = errors.New("fee: at most one recover amount output is allowed per transaction")
	// ErrUnresolvedAmount is returned when an output still carries a
	// sentinel amount after both resolution passes complete.
	ErrUnresolvedAmount = errors.New("fee: output amount left unresolved")
	// ErrMissingUpstreamOutputs is returned when an AUTO_AMOUNT output is
	// not spent by any transaction in the graph, so there is no consumer
	// whose size could value it. The forward pass sizes each consumer from
	// its outputs as they stand and does not defer any AUTO_AMOUNT output
	// to the reverse pass.
	ErrMissingUpstreamOutputs = errors.New("fee: consumer transaction outputs not fully valued yet")
)
