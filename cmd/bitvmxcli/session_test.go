package main

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/lightningnetwork/lnd/keychain"
	"github.com/stretchr/testify/require"

	"github.com/bitvmx-labs/protocol-builder/keymgr"
)

func testSignerAndPubKeyHex(t *testing.T) (keymgr.Signer, string) {
	signer := keymgr.NewLocalSigner([]byte("session-test-seed"))
	pub, err := signer.DeriveKeyPair(context.Background(), keychain.KeyLocator{Family: 0, Index: 0})
	require.NoError(t, err)
	return signer, hex.EncodeToString(pub.SerializeCompressed())
}

func TestSessionSaveAndLoadRoundTrips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := &Session{Name: "roundtrip", Ops: []Op{
		{Type: "add_transaction", Tx: "start", Version: 2},
	}}
	require.NoError(t, s.Save(dir))

	loaded, err := LoadSession(dir, "roundtrip")
	require.NoError(t, err)
	require.Equal(t, s.Name, loaded.Name)
	require.Len(t, loaded.Ops, 1)
	require.Equal(t, "add_transaction", loaded.Ops[0].Type)
}

func TestLoadSessionReturnsEmptyForMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := LoadSession(dir, "does-not-exist")
	require.NoError(t, err)
	require.Equal(t, "does-not-exist", s.Name)
	require.Empty(t, s.Ops)
}

func TestReplayRebuildsFundingToRecoverChain(t *testing.T) {
	t.Parallel()

	signer, pubHex := testSignerAndPubKeyHex(t)

	s := &Session{
		Name: "funding-chain",
		Ops: []Op{
			{Type: "add_transaction", Tx: "start", Version: 2},
			{Type: "add_input", Tx: "start", SighashMode: "ecdsa", SpendKind: "segwit", Sequence: 0xffffffff},
			{
				Type: "connect_with_external_transaction", Name: "fund",
				Txid:         "1111111111111111111111111111111111111111111111111111111111111111",
				ExternalKind: "segwit_key", PubKey: pubHex, Value: 100000,
				To: "start", InputIndex: 0,
			},
			{Type: "add_segwit_key_output", Tx: "start", PubKey: pubHex, Value: -1},
			{Type: "add_transaction", Tx: "next", Version: 2},
			{Type: "add_input", Tx: "next", SighashMode: "ecdsa", SpendKind: "segwit", Sequence: 0xffffffff},
			{Type: "connect", Name: "spend", From: "start", OutputIndex: 0, To: "next", InputIndex: 0},
			{Type: "add_segwit_key_output", Tx: "next", PubKey: pubHex, Value: -2},
		},
	}

	p, err := Replay(context.Background(), s, signer)
	require.NoError(t, err)

	require.NoError(t, p.Build())
	require.NoError(t, p.Sign(context.Background()))

	startTx, err := p.TransactionToSend("start", nil)
	require.NoError(t, err)
	require.Len(t, startTx.TxIn[0].Witness, 2)
}

func TestReplayRejectsUnknownOpType(t *testing.T) {
	t.Parallel()

	signer, _ := testSignerAndPubKeyHex(t)
	s := &Session{Name: "bad", Ops: []Op{{Type: "not_a_real_op"}}}

	_, err := Replay(context.Background(), s, signer)
	require.Error(t, err)
}

func TestSighashSpecForRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	_, err := sighashSpecFor("not-a-mode")
	require.Error(t, err)
}

func TestSpendModeForDispatchesOnKind(t *testing.T) {
	t.Parallel()

	segwit, err := spendModeFor("segwit", "", nil)
	require.NoError(t, err)
	require.Equal(t, "Segwit", segwit.Kind.String())

	scripts, err := spendModeFor("scripts", "", []int{0, 1})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, scripts.Leaves)

	_, err = spendModeFor("bogus", "", nil)
	require.Error(t, err)
}
