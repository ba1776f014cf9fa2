package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitvmx-labs/protocol-builder"
	"github.com/bitvmx-labs/protocol-builder/keymgr"
	"github.com/bitvmx-labs/protocol-builder/txtypes"
)

// LeafSpec is the JSON shape of one taproot script-path leaf, carrying just
// enough to rebuild a txtypes.ProtocolScript: the raw script and the
// verification requirement the signing dispatcher must satisfy for it.
type LeafSpec struct {
	Script       string `json:"script"`
	SignMode     string `json:"sign_mode"`
	VerifyingKey string `json:"verifying_key,omitempty"`
}

func (l LeafSpec) build() (*txtypes.ProtocolScript, error) {
	script, err := hex.DecodeString(l.Script)
	if err != nil {
		return nil, fmt.Errorf("leaf script: %w", err)
	}

	var verifyingKey *btcec.PublicKey
	if l.VerifyingKey != "" {
		verifyingKey, err = parsePubKey(l.VerifyingKey)
		if err != nil {
			return nil, err
		}
	}

	switch l.SignMode {
	case "", "single":
		return txtypes.NewProtocolScript(script, verifyingKey), nil
	case "aggregate":
		return txtypes.NewAggregateProtocolScript(script, verifyingKey), nil
	case "winternitz":
		return txtypes.NewWinternitzProtocolScript(script), nil
	case "skip":
		return txtypes.NewUnsignedProtocolScript(script, verifyingKey), nil
	default:
		return nil, fmt.Errorf("unknown leaf sign mode %q", l.SignMode)
	}
}

// Op is one recorded builder call. Exactly the fields relevant to Type are
// populated; everything else sits at its zero value. Kept as one flat
// struct, rather than a Go interface per op, so the session file round-trips
// through encoding/json without a custom UnmarshalJSON.
type Op struct {
	Type string `json:"type"`

	// add_transaction
	Version  int32  `json:"version,omitempty"`
	Locktime uint32 `json:"locktime,omitempty"`

	// shared by every add_*_output / add_input
	Tx string `json:"tx,omitempty"`

	// add_*_output
	Value        int64    `json:"value,omitempty"`
	ScriptPubKey string   `json:"script_pub_key,omitempty"`
	PubKey       string   `json:"pub_key,omitempty"`
	Script       string   `json:"script,omitempty"`
	SignMode     string   `json:"sign_mode,omitempty"`
	VerifyingKey string   `json:"verifying_key,omitempty"`
	InternalKey  string   `json:"internal_key,omitempty"`
	WithKeyPath  bool     `json:"with_key_path,omitempty"`
	Leaves       []LeafSpec `json:"leaves,omitempty"`
	Data         string   `json:"data,omitempty"`
	Blocks       uint16   `json:"blocks,omitempty"`
	OwnerKey     string   `json:"owner_key,omitempty"`
	RenewKey     string   `json:"renew_key,omitempty"`
	ExpiryLeaf   *LeafSpec `json:"expiry_leaf,omitempty"`
	RenewLeaf    *LeafSpec `json:"renew_leaf,omitempty"`

	// add_input
	SighashMode string `json:"sighash_mode,omitempty"` // "taproot" or "ecdsa"
	SpendKind   string `json:"spend_kind,omitempty"`   // "segwit", "keyonly", "scripts"
	KeyPathSign string `json:"key_path_sign,omitempty"`
	LeafIndices []int  `json:"leaf_indices,omitempty"`
	Sequence    uint32 `json:"sequence,omitempty"`

	// add_*_connection / connect_with_external_transaction
	Name        string `json:"name,omitempty"`
	From        string `json:"from,omitempty"`
	OutputIndex int    `json:"output_index,omitempty"`
	To          string `json:"to,omitempty"`
	InputIndex  int    `json:"input_index,omitempty"`
	Txid        string `json:"txid,omitempty"`

	// connect_with_external_transaction's external output description
	ExternalKind string `json:"external_kind,omitempty"` // "segwit_key" or "taproot"
}

// Session is the CLI's own persisted representation of one protocol under
// construction: an ordered log of builder calls, replayed in full on every
// invocation. The core library treats none of this format as its concern;
// compatibility across bitvmxcli versions is this file's problem alone.
type Session struct {
	Name string `json:"name"`
	Ops  []Op   `json:"ops"`
}

func sessionPath(graphDir, name string) string {
	return filepath.Join(graphDir, name+".json")
}

// LoadSession reads a session by protocol name, returning a fresh empty
// session if none has been persisted yet.
func LoadSession(graphDir, name string) (*Session, error) {
	data, err := os.ReadFile(sessionPath(graphDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return &Session{Name: name}, nil
		}
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", name, err)
	}
	return &s, nil
}

// Save persists the session, creating graphDir if needed.
func (s *Session) Save(graphDir string) error {
	if err := os.MkdirAll(graphDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sessionPath(graphDir, s.Name), data, 0o644)
}

// Replay rebuilds a bitvmx.Protocol by re-issuing every recorded op against
// a fresh builder, in order. Used before applying a new op (so it sees prior
// state) and before build/sign/visualize.
func Replay(ctx context.Context, s *Session, signer keymgr.Signer) (*bitvmx.Protocol, error) {
	p := bitvmx.New(s.Name, signer)

	for i, op := range s.Ops {
		if err := applyOp(ctx, p, op); err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, op.Type, err)
		}
	}
	return p, nil
}

func applyOp(ctx context.Context, p *bitvmx.Protocol, op Op) error {
	switch op.Type {
	case "add_transaction":
		return p.AddTransaction(op.Tx, op.Version, op.Locktime)

	case "add_segwit_key_output":
		pub, err := parsePubKey(op.PubKey)
		if err != nil {
			return err
		}
		spk, err := hex.DecodeString(op.ScriptPubKey)
		if err != nil {
			return err
		}
		_, err = p.AddOutput(op.Tx, txtypes.NewSegwitKeyOutput(
			txtypes.Amount(op.Value), spk, pub))
		return err

	case "add_segwit_script_output":
		leaf, err := LeafSpec{Script: op.Script, SignMode: op.SignMode, VerifyingKey: op.VerifyingKey}.build()
		if err != nil {
			return err
		}
		spk, err := hex.DecodeString(op.ScriptPubKey)
		if err != nil {
			return err
		}
		_, err = p.AddOutput(op.Tx, txtypes.NewSegwitScriptOutput(
			txtypes.Amount(op.Value), spk, leaf))
		return err

	case "add_taproot_output":
		internalKey, err := parsePubKey(op.InternalKey)
		if err != nil {
			return err
		}
		spk, err := hex.DecodeString(op.ScriptPubKey)
		if err != nil {
			return err
		}
		leaves := make([]*txtypes.ProtocolScript, len(op.Leaves))
		for i, l := range op.Leaves {
			leaves[i], err = l.build()
			if err != nil {
				return err
			}
		}
		_, err = p.AddOutput(op.Tx, txtypes.NewTaprootOutput(
			txtypes.Amount(op.Value), spk, internalKey, nil, leaves, op.WithKeyPath, nil))
		return err

	case "add_opreturn_output":
		spk, err := hex.DecodeString(op.ScriptPubKey)
		if err != nil {
			return err
		}
		data, err := hex.DecodeString(op.Data)
		if err != nil {
			return err
		}
		_, err = p.AddOutput(op.Tx, txtypes.NewOpReturnOutput(spk, data))
		return err

	case "add_timelock_output":
		internalKey, err := parsePubKey(op.InternalKey)
		if err != nil {
			return err
		}
		ownerKey, err := parsePubKey(op.OwnerKey)
		if err != nil {
			return err
		}
		renewKey, err := parsePubKey(op.RenewKey)
		if err != nil {
			return err
		}
		spk, err := hex.DecodeString(op.ScriptPubKey)
		if err != nil {
			return err
		}
		if op.ExpiryLeaf == nil || op.RenewLeaf == nil {
			return fmt.Errorf("add_timelock_output requires expiry_leaf and renew_leaf")
		}
		expiry, err := op.ExpiryLeaf.build()
		if err != nil {
			return err
		}
		renew, err := op.RenewLeaf.build()
		if err != nil {
			return err
		}
		_, err = p.AddOutput(op.Tx, txtypes.NewTimelockOutput(
			txtypes.Amount(op.Value), spk, internalKey, expiry, renew, op.Blocks, ownerKey, renewKey))
		return err

	case "add_speedup_output":
		pub, err := parsePubKey(op.PubKey)
		if err != nil {
			return err
		}
		spk, err := hex.DecodeString(op.ScriptPubKey)
		if err != nil {
			return err
		}
		_, err = p.AddOutput(op.Tx, txtypes.NewSpeedupOutput(
			txtypes.Amount(op.Value), spk, pub))
		return err

	case "add_input":
		sighash, err := sighashSpecFor(op.SighashMode)
		if err != nil {
			return err
		}
		spend, err := spendModeFor(op.SpendKind, op.KeyPathSign, op.LeafIndices)
		if err != nil {
			return err
		}
		_, err = p.AddInput(op.Tx, sighash, spend, op.Sequence)
		return err

	case "connect":
		return p.Connect(op.Name, op.From, txtypes.OutputIndex(op.OutputIndex),
			op.To, txtypes.InputIndex(op.InputIndex))

	case "connect_with_external_transaction":
		txid, err := chainhash.NewHashFromStr(op.Txid)
		if err != nil {
			return err
		}
		outputType, err := externalOutputFor(op)
		if err != nil {
			return err
		}
		return p.ConnectExternal(op.Name, *txid, op.OutputIndex, outputType,
			op.To, txtypes.InputIndex(op.InputIndex))

	default:
		return fmt.Errorf("unknown op type %q", op.Type)
	}
}

func sighashSpecFor(mode string) (txtypes.SighashSpec, error) {
	switch mode {
	case "taproot":
		return txtypes.TaprootAll(), nil
	case "ecdsa":
		return txtypes.EcdsaAll(), nil
	default:
		return txtypes.SighashSpec{}, fmt.Errorf("unknown sighash mode %q", mode)
	}
}

func signModeFor(mode string) (txtypes.SignMode, error) {
	switch mode {
	case "", "single":
		return txtypes.SignSingle, nil
	case "aggregate":
		return txtypes.SignAggregate, nil
	case "winternitz":
		return txtypes.SignWinternitz, nil
	case "skip":
		return txtypes.SignSkip, nil
	default:
		return 0, fmt.Errorf("unknown sign mode %q", mode)
	}
}

func spendModeFor(kind, keyPathSign string, leaves []int) (txtypes.SpendMode, error) {
	switch kind {
	case "segwit":
		return txtypes.NewSegwitSpend(), nil
	case "keyonly":
		mode, err := signModeFor(keyPathSign)
		if err != nil {
			return txtypes.SpendMode{}, err
		}
		return txtypes.NewKeyOnlySpend(mode), nil
	case "scripts":
		return txtypes.NewScriptsSpend(leaves...), nil
	default:
		return txtypes.SpendMode{}, fmt.Errorf("unknown spend kind %q", kind)
	}
}

func externalOutputFor(op Op) (*txtypes.OutputType, error) {
	spk, err := hex.DecodeString(op.ScriptPubKey)
	if err != nil {
		return nil, err
	}

	switch op.ExternalKind {
	case "", "segwit_key":
		pub, err := parsePubKey(op.PubKey)
		if err != nil {
			return nil, err
		}
		return txtypes.NewSegwitKeyOutput(txtypes.Amount(op.Value), spk, pub), nil
	case "taproot":
		internalKey, err := parsePubKey(op.InternalKey)
		if err != nil {
			return nil, err
		}
		return txtypes.NewTaprootOutput(txtypes.Amount(op.Value), spk, internalKey,
			nil, nil, op.WithKeyPath, nil), nil
	default:
		return nil, fmt.Errorf("unknown external output kind %q", op.ExternalKind)
	}
}

func parsePubKey(s string) (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("pubkey hex: %w", err)
	}
	return btcec.ParsePubKey(raw)
}
