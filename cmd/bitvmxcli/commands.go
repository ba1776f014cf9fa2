package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/bitvmx-labs/protocol-builder/graph"
	"github.com/bitvmx-labs/protocol-builder/keymgr"
)

// The seed and graph-directory flags are global app flags, as tapcli
// defines them, rather than repeated on every subcommand; nameFlag is the
// per-subcommand protocol name flag.
const (
	nameFlag = "name"
)

func protocolNameFlag() cli.StringFlag {
	return cli.StringFlag{
		Name:  nameFlag,
		Usage: "name of the protocol session to operate on",
	}
}

func newApp(version string, cfg *Config) *cli.App {
	app := cli.NewApp()
	app.Name = "bitvmxcli"
	app.Version = version
	app.Usage = "build, sign and inspect BitVMX transaction graphs"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "seed",
			Usage:  "hex-encoded root seed for the local key manager",
			EnvVar: "BITVMX_SEED",
			Value:  cfg.Seed,
		},
		cli.StringFlag{
			Name:  "graphdir",
			Usage: "directory holding persisted protocol graph files",
			Value: cfg.GraphDir,
		},
	}
	app.Commands = []cli.Command{
		addTransactionCommand,
		addSegwitKeyOutputCommand,
		addSegwitScriptOutputCommand,
		addTaprootOutputCommand,
		addOpReturnOutputCommand,
		addSpeedupOutputCommand,
		addInputCommand,
		connectCommand,
		connectExternalCommand,
		buildCommand,
		buildAndSignCommand,
		visualizeCommand,
		deriveKeyCommand,
	}
	return app
}

func signerFromCtx(ctx *cli.Context) keymgr.Signer {
	seedHex := ctx.GlobalString("seed")
	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) == 0 {
		seed = []byte("bitvmxcli-default-seed")
	}
	return keymgr.NewLocalSigner(seed)
}

func graphDirFromCtx(ctx *cli.Context) string {
	return ctx.GlobalString("graphdir")
}

// loadAndAppend loads the named session, appends op, replays it to check
// the builder accepts it, then persists the updated log.
func loadAndAppend(ctx *cli.Context, op Op) error {
	name := ctx.String(nameFlag)
	if name == "" {
		return fmt.Errorf("--%s is required", nameFlag)
	}
	graphDir := graphDirFromCtx(ctx)

	session, err := LoadSession(graphDir, name)
	if err != nil {
		return err
	}
	session.Ops = append(session.Ops, op)

	signer := signerFromCtx(ctx)
	if _, err := Replay(context.Background(), session, signer); err != nil {
		return fmt.Errorf("op rejected: %w", err)
	}

	return session.Save(graphDir)
}

var addTransactionCommand = cli.Command{
	Name:  "add-transaction",
	Usage: "register a new, empty transaction in a protocol graph",
	Flags: []cli.Flag{
		protocolNameFlag(),
		cli.StringFlag{Name: "tx", Usage: "name of the transaction"},
		cli.IntFlag{Name: "version", Value: 2},
		cli.IntFlag{Name: "locktime", Value: 0},
	},
	Action: func(c *cli.Context) error {
		return loadAndAppend(c, Op{
			Type:     "add_transaction",
			Tx:       c.String("tx"),
			Version:  int32(c.Int("version")),
			Locktime: uint32(c.Int("locktime")),
		})
	},
}

var addSegwitKeyOutputCommand = cli.Command{
	Name:  "add-segwit-key-output",
	Usage: "append a P2WPKH output",
	Flags: []cli.Flag{
		protocolNameFlag(),
		cli.StringFlag{Name: "tx"},
		cli.Int64Flag{Name: "value", Usage: "satoshis, or -1 for auto, -2 for recover"},
		cli.StringFlag{Name: "script-pub-key", Usage: "hex-encoded scriptPubKey"},
		cli.StringFlag{Name: "pubkey", Usage: "hex-encoded compressed public key"},
	},
	Action: func(c *cli.Context) error {
		return loadAndAppend(c, Op{
			Type:         "add_segwit_key_output",
			Tx:           c.String("tx"),
			Value:        c.Int64("value"),
			ScriptPubKey: c.String("script-pub-key"),
			PubKey:       c.String("pubkey"),
		})
	},
}

var addSegwitScriptOutputCommand = cli.Command{
	Name:  "add-segwit-script-output",
	Usage: "append a P2WSH output backed by a single leaf script",
	Flags: []cli.Flag{
		protocolNameFlag(),
		cli.StringFlag{Name: "tx"},
		cli.Int64Flag{Name: "value"},
		cli.StringFlag{Name: "script-pub-key"},
		cli.StringFlag{Name: "script", Usage: "hex-encoded leaf script"},
		cli.StringFlag{Name: "sign-mode", Value: "single", Usage: "single, aggregate, winternitz or skip"},
		cli.StringFlag{Name: "verifying-key"},
	},
	Action: func(c *cli.Context) error {
		return loadAndAppend(c, Op{
			Type:         "add_segwit_script_output",
			Tx:           c.String("tx"),
			Value:        c.Int64("value"),
			ScriptPubKey: c.String("script-pub-key"),
			Script:       c.String("script"),
			SignMode:     c.String("sign-mode"),
			VerifyingKey: c.String("verifying-key"),
		})
	},
}

var addTaprootOutputCommand = cli.Command{
	Name:  "add-taproot-output",
	Usage: "append a P2TR output, optionally with a key-spend path and/or script leaves",
	Flags: []cli.Flag{
		protocolNameFlag(),
		cli.StringFlag{Name: "tx"},
		cli.Int64Flag{Name: "value"},
		cli.StringFlag{Name: "script-pub-key"},
		cli.StringFlag{Name: "internal-key"},
		cli.BoolFlag{Name: "with-key-path"},
		cli.StringSliceFlag{Name: "leaf", Usage: "script:sign-mode:verifying-key, repeatable"},
	},
	Action: func(c *cli.Context) error {
		leaves, err := parseLeafFlags(c.StringSlice("leaf"))
		if err != nil {
			return err
		}
		return loadAndAppend(c, Op{
			Type:         "add_taproot_output",
			Tx:           c.String("tx"),
			Value:        c.Int64("value"),
			ScriptPubKey: c.String("script-pub-key"),
			InternalKey:  c.String("internal-key"),
			WithKeyPath:  c.Bool("with-key-path"),
			Leaves:       leaves,
		})
	},
}

var addOpReturnOutputCommand = cli.Command{
	Name:  "add-opreturn-output",
	Usage: "append a provably unspendable OP_RETURN output",
	Flags: []cli.Flag{
		protocolNameFlag(),
		cli.StringFlag{Name: "tx"},
		cli.StringFlag{Name: "script-pub-key"},
		cli.StringFlag{Name: "data", Usage: "hex-encoded payload"},
	},
	Action: func(c *cli.Context) error {
		return loadAndAppend(c, Op{
			Type:         "add_opreturn_output",
			Tx:           c.String("tx"),
			ScriptPubKey: c.String("script-pub-key"),
			Data:         c.String("data"),
		})
	},
}

var addSpeedupOutputCommand = cli.Command{
	Name:  "add-speedup-output",
	Usage: "append a CPFP anchor output",
	Flags: []cli.Flag{
		protocolNameFlag(),
		cli.StringFlag{Name: "tx"},
		cli.Int64Flag{Name: "value"},
		cli.StringFlag{Name: "script-pub-key"},
		cli.StringFlag{Name: "pubkey"},
	},
	Action: func(c *cli.Context) error {
		return loadAndAppend(c, Op{
			Type:         "add_speedup_output",
			Tx:           c.String("tx"),
			Value:        c.Int64("value"),
			ScriptPubKey: c.String("script-pub-key"),
			PubKey:       c.String("pubkey"),
		})
	},
}

var addInputCommand = cli.Command{
	Name:  "add-input",
	Usage: "append an input and its spend requirements to a transaction",
	Flags: []cli.Flag{
		protocolNameFlag(),
		cli.StringFlag{Name: "tx"},
		cli.StringFlag{Name: "sighash-mode", Usage: "taproot or ecdsa"},
		cli.StringFlag{Name: "spend-kind", Usage: "segwit, keyonly or scripts"},
		cli.StringFlag{Name: "key-path-sign", Usage: "single, aggregate or skip; for spend-kind=keyonly"},
		cli.IntSliceFlag{Name: "leaf-index", Usage: "leaf indices willing to satisfy; for spend-kind=scripts"},
		cli.IntFlag{Name: "sequence", Value: int(^uint32(0) >> 1)},
	},
	Action: func(c *cli.Context) error {
		leafIndices := make([]int, 0)
		for _, v := range c.IntSlice("leaf-index") {
			leafIndices = append(leafIndices, v)
		}
		return loadAndAppend(c, Op{
			Type:        "add_input",
			Tx:          c.String("tx"),
			SighashMode: c.String("sighash-mode"),
			SpendKind:   c.String("spend-kind"),
			KeyPathSign: c.String("key-path-sign"),
			LeafIndices: leafIndices,
			Sequence:    uint32(c.Int("sequence")),
		})
	},
}

var connectCommand = cli.Command{
	Name:  "add-connection",
	Usage: "wire an existing output of one transaction to an existing input of another",
	Flags: []cli.Flag{
		protocolNameFlag(),
		cli.StringFlag{Name: "connection"},
		cli.StringFlag{Name: "from"},
		cli.IntFlag{Name: "output-index"},
		cli.StringFlag{Name: "to"},
		cli.IntFlag{Name: "input-index"},
	},
	Action: func(c *cli.Context) error {
		return loadAndAppend(c, Op{
			Type:        "connect",
			Name:        c.String("connection"),
			From:        c.String("from"),
			OutputIndex: c.Int("output-index"),
			To:          c.String("to"),
			InputIndex:  c.Int("input-index"),
		})
	},
}

var connectExternalCommand = cli.Command{
	Name:  "connect-with-external-transaction",
	Usage: "wire an input to an output of an already broadcast transaction outside this graph",
	Flags: []cli.Flag{
		protocolNameFlag(),
		cli.StringFlag{Name: "connection"},
		cli.StringFlag{Name: "txid"},
		cli.IntFlag{Name: "output-index"},
		cli.StringFlag{Name: "to"},
		cli.IntFlag{Name: "input-index"},
		cli.StringFlag{Name: "external-kind", Value: "segwit_key", Usage: "segwit_key or taproot"},
		cli.Int64Flag{Name: "value"},
		cli.StringFlag{Name: "script-pub-key"},
		cli.StringFlag{Name: "pubkey"},
		cli.StringFlag{Name: "internal-key"},
	},
	Action: func(c *cli.Context) error {
		return loadAndAppend(c, Op{
			Type:         "connect_with_external_transaction",
			Name:         c.String("connection"),
			Txid:         c.String("txid"),
			OutputIndex:  c.Int("output-index"),
			To:           c.String("to"),
			InputIndex:   c.Int("input-index"),
			ExternalKind: c.String("external-kind"),
			Value:        c.Int64("value"),
			ScriptPubKey: c.String("script-pub-key"),
			PubKey:       c.String("pubkey"),
			InternalKey:  c.String("internal-key"),
		})
	},
}

var buildCommand = cli.Command{
	Name:  "build",
	Usage: "run the dependency resolver, amount resolver, identifier propagator and sighash engine",
	Flags: []cli.Flag{protocolNameFlag()},
	Action: func(c *cli.Context) error {
		session, err := LoadSession(graphDirFromCtx(c), c.String(nameFlag))
		if err != nil {
			return err
		}
		p, err := Replay(context.Background(), session, signerFromCtx(c))
		if err != nil {
			return err
		}
		if err := p.Build(); err != nil {
			return err
		}
		return printJSON(txSummaries(p))
	},
}

var buildAndSignCommand = cli.Command{
	Name:  "build-and-sign",
	Usage: "build, then drive the signing dispatcher for every input",
	Flags: []cli.Flag{protocolNameFlag()},
	Action: func(c *cli.Context) error {
		session, err := LoadSession(graphDirFromCtx(c), c.String(nameFlag))
		if err != nil {
			return err
		}
		p, err := Replay(context.Background(), session, signerFromCtx(c))
		if err != nil {
			return err
		}
		if err := p.BuildAndSign(context.Background()); err != nil {
			return err
		}
		return printJSON(txSummaries(p))
	},
}

var visualizeCommand = cli.Command{
	Name:  "visualize",
	Usage: "render the transaction graph as Graphviz DOT",
	Flags: []cli.Flag{
		protocolNameFlag(),
		cli.StringFlag{Name: "mode", Value: "default", Usage: "default or detailed"},
	},
	Action: func(c *cli.Context) error {
		session, err := LoadSession(graphDirFromCtx(c), c.String(nameFlag))
		if err != nil {
			return err
		}
		p, err := Replay(context.Background(), session, signerFromCtx(c))
		if err != nil {
			return err
		}
		mode := graph.Default
		if c.String("mode") == "detailed" {
			mode = graph.EdgeArrows
		}
		fmt.Println(p.Visualize(mode))
		return nil
	},
}

var deriveKeyCommand = cli.Command{
	Name:  "derive-key",
	Usage: "ask the local key manager for the public key at a given family/index and print it",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "family"},
		cli.IntFlag{Name: "index"},
	},
	Action: func(c *cli.Context) error {
		signer := signerFromCtx(c)
		loc := keyLocatorFlags(c.Int("family"), c.Int("index"))
		pub, err := signer.DeriveKeyPair(context.Background(), loc)
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(pub.SerializeCompressed()))
		return nil
	},
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
