package txtypes

// SignMode tells the signing dispatcher how a given spending path should be
// satisfied.
type SignMode uint8

const (
	// SignSkip means the builder never produces a signature for this
	// path; it is satisfied some other way (a revealed secret, a bare
	// timelock branch, an already-signed external input).
	SignSkip SignMode = iota
	// SignSingle is satisfied by one ECDSA or Schnorr signature from a
	// single key.
	SignSingle
	// SignAggregate is satisfied by a MuSig2 aggregate Schnorr signature
	// produced from a two-round nonce/partial-signature exchange.
	SignAggregate
	// SignWinternitz is satisfied by revealing a Winternitz one-time
	// signature over a committed message.
	SignWinternitz
)

func (m SignMode) String() string {
	switch m {
	case SignSkip:
		return "Skip"
	case SignSingle:
		return "Single"
	case SignAggregate:
		return "Aggregate"
	case SignWinternitz:
		return "Winternitz"
	default:
		return "Unknown"
	}
}

// SpendKind tags the shape of SpendMode.
type SpendKind uint8

const (
	SpendUnknown SpendKind = iota
	// SpendSegwit spends a SegWit v0 output (P2WPKH or P2WSH) with a
	// single ECDSA signature.
	SpendSegwit
	// SpendKeyOnly spends a taproot output via the key-spend path only.
	SpendKeyOnly
	// SpendScripts spends a taproot output via one or more script-path
	// leaves, each indexed into the OutputType's Leaves slice.
	SpendScripts
)

func (k SpendKind) String() string {
	switch k {
	case SpendSegwit:
		return "Segwit"
	case SpendKeyOnly:
		return "KeyOnly"
	case SpendScripts:
		return "Scripts"
	default:
		return "Unknown"
	}
}

// SpendMode describes how an input is meant to satisfy its previous output.
// Exactly one mode is active per input: an input is either a SegWit v0
// spend, a taproot key-path spend, or a taproot script-path spend over one
// or more candidate leaves, never a mix.
type SpendMode struct {
	Kind SpendKind

	// KeyPathSign applies when Kind == SpendKeyOnly.
	KeyPathSign SignMode

	// Leaves applies when Kind == SpendScripts: the indices, into the
	// spent OutputType's Leaves slice, of every leaf this input is
	// willing to satisfy. The witness assembler picks one at spend time.
	Leaves []int
}

// NewSegwitSpend builds a SpendMode for a SegWit v0 previous output.
func NewSegwitSpend() SpendMode {
	return SpendMode{Kind: SpendSegwit}
}

// NewKeyOnlySpend builds a SpendMode for a taproot key-spend path.
func NewKeyOnlySpend(mode SignMode) SpendMode {
	return SpendMode{Kind: SpendKeyOnly, KeyPathSign: mode}
}

// NewScriptsSpend builds a SpendMode over one or more taproot script-path
// leaves.
func NewScriptsSpend(leaves ...int) SpendMode {
	return SpendMode{Kind: SpendScripts, Leaves: leaves}
}
