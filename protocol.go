package bitvmx

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/keychain"

	"github.com/bitvmx-labs/protocol-builder/fee"
	"github.com/bitvmx-labs/protocol-builder/graph"
	"github.com/bitvmx-labs/protocol-builder/keymgr"
)

// pubKeyID is a comparable map key for a compressed public key, used to
// recover which KeyLocator (or MuSig2 session) a leaf's raw public key came
// from when the signing dispatcher later needs to request a signature for
// it.
type pubKeyID [33]byte

func idFor(pub *btcec.PublicKey) pubKeyID {
	var id pubKeyID
	copy(id[:], pub.SerializeCompressed())
	return id
}

// protocolState tags where a Protocol sits in its Mutable -> Built -> Signed
// lifecycle.
type protocolState uint8

const (
	StateMutable protocolState = iota
	StateBuilt
	StateSigned
)

func (s protocolState) String() string {
	switch s {
	case StateBuilt:
		return "Built"
	case StateSigned:
		return "Signed"
	default:
		return "Mutable"
	}
}

// Protocol is a named transaction graph plus its build/sign state: the
// top-level object the package exposes, combining graph.TransactionGraph
// with the identifier propagator, sighash engine, signing dispatcher, and
// witness assembler operating on it.
type Protocol struct {
	Name      string
	Graph     *graph.TransactionGraph
	Signer    keymgr.Signer
	Estimator *fee.Estimator

	state protocolState
	order []string

	keyLocators map[pubKeyID]keychain.KeyLocator
	musigKeys   map[pubKeyID]*keymgr.MuSig2Session
}

// New returns an empty, Mutable protocol ready to accept builder calls.
func New(name string, signer keymgr.Signer) *Protocol {
	return &Protocol{
		Name:        name,
		Graph:       graph.New(),
		Signer:      signer,
		Estimator:   fee.NewEstimator(),
		state:       StateMutable,
		keyLocators: make(map[pubKeyID]keychain.KeyLocator),
		musigKeys:   make(map[pubKeyID]*keymgr.MuSig2Session),
	}
}

// DeriveKey asks the key manager for the public key at loc and remembers
// the mapping so the signing dispatcher can later recover loc from any
// OutputType/leaf that embeds the returned key.
func (p *Protocol) DeriveKey(ctx context.Context, loc keychain.KeyLocator) (*btcec.PublicKey, error) {
	pub, err := p.Signer.DeriveKeyPair(ctx, loc)
	if err != nil {
		return nil, wrapErr(KindSigning, p.Name, err)
	}
	p.keyLocators[idFor(pub)] = loc
	return pub, nil
}

// DeriveAggregateKey opens a MuSig2 session for loc among participants and
// remembers the resulting aggregate key so the signing dispatcher can later
// recover the session from any leaf that embeds it.
func (p *Protocol) DeriveAggregateKey(ctx context.Context, loc keychain.KeyLocator,
	participants []*btcec.PublicKey) (*btcec.PublicKey, error) {

	session, err := p.Signer.OpenMuSig2Session(ctx, loc, participants)
	if err != nil {
		return nil, wrapErr(KindSigning, p.Name, err)
	}
	combined := session.CombinedKey()
	p.musigKeys[idFor(combined)] = session
	return combined, nil
}

func (p *Protocol) locatorFor(pub *btcec.PublicKey) (keychain.KeyLocator, error) {
	loc, ok := p.keyLocators[idFor(pub)]
	if !ok {
		return keychain.KeyLocator{}, fmt.Errorf("%w: %x", ErrMissingSigningKey, pub.SerializeCompressed())
	}
	return loc, nil
}

func (p *Protocol) musigSessionFor(pub *btcec.PublicKey) (*keymgr.MuSig2Session, error) {
	session, ok := p.musigKeys[idFor(pub)]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrMissingSigningKey, pub.SerializeCompressed())
	}
	return session, nil
}

// State reports the protocol's current lifecycle state.
func (p *Protocol) State() protocolState {
	return p.state
}

// demote drops the cached topological order and falls back to Mutable if
// the protocol had progressed past it. Every builder mutation calls this
// first. Sighashes and signatures already stored on the graph's inputs are
// not cleared here; they stay until the next Build or Sign overwrites them.
func (p *Protocol) demote() {
	if p.state == StateMutable {
		return
	}
	bvmxLog.Debugf("protocol %q demoted from %s to Mutable on mutation",
		p.Name, p.state)
	p.state = StateMutable
	p.order = nil
}

// Build runs the dependency resolver, amount resolver, and identifier
// propagator, then computes every sighash. On success the protocol
// transitions to Built.
func (p *Protocol) Build() error {
	order, err := p.Graph.TopoSort()
	if err != nil {
		return wrapErr(KindStructural, p.Name, err)
	}

	if err := fee.ResolveAmounts(p.Graph, order, p.Estimator); err != nil {
		return wrapErr(KindAmount, p.Name, err)
	}

	if err := p.propagateIdentifiers(order); err != nil {
		return err
	}

	if err := p.computeSighashes(order); err != nil {
		return err
	}

	p.order = order
	p.state = StateBuilt
	bvmxLog.Infof("protocol %q built: %d transactions", p.Name, len(order))
	return nil
}

// Sign requests a signature for every stored sighash from the key manager
// and files it in the signature store. Requires the protocol to already be
// Built.
func (p *Protocol) Sign(ctx context.Context) error {
	if p.state != StateBuilt {
		return wrapErr(KindState, p.Name, ErrNotBuilt)
	}

	if err := p.computeSignatures(ctx, p.order); err != nil {
		return err
	}

	p.state = StateSigned
	signLog.Infof("protocol %q signed", p.Name)
	return nil
}

// BuildAndSign composes Build and Sign.
func (p *Protocol) BuildAndSign(ctx context.Context) error {
	if err := p.Build(); err != nil {
		return err
	}
	return p.Sign(ctx)
}
