package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lightningnetwork/lnd/keychain"

	"github.com/bitvmx-labs/protocol-builder"
)

// parseLeafFlags parses repeatable --leaf script:sign-mode:verifying-key
// flags into LeafSpecs. sign-mode and verifying-key may be omitted:
// "script", "script:sign-mode", and "script:sign-mode:verifying-key" are all
// accepted.
func parseLeafFlags(raw []string) ([]LeafSpec, error) {
	leaves := make([]LeafSpec, 0, len(raw))
	for _, entry := range raw {
		parts := strings.SplitN(entry, ":", 3)
		leaf := LeafSpec{Script: parts[0]}
		if len(parts) > 1 {
			leaf.SignMode = parts[1]
		}
		if len(parts) > 2 {
			leaf.VerifyingKey = parts[2]
		}
		if leaf.Script == "" {
			return nil, fmt.Errorf("empty leaf script in %q", entry)
		}
		leaves = append(leaves, leaf)
	}
	return leaves, nil
}

// txSummary is the JSON shape build/build-and-sign print for one
// transaction: enough to inspect or relay without re-running the builder.
type txSummary struct {
	Name string `json:"name"`
	Txid string `json:"txid"`
	Raw  string `json:"raw"`
}

func txSummaries(p *bitvmx.Protocol) []txSummary {
	names := p.Graph.TransactionNames()
	out := make([]txSummary, 0, len(names))
	for _, name := range names {
		node, err := p.Graph.Node(name)
		if err != nil {
			continue
		}

		var buf bytes.Buffer
		raw := ""
		if err := node.Tx.Serialize(&buf); err == nil {
			raw = hex.EncodeToString(buf.Bytes())
		}

		out = append(out, txSummary{
			Name: name,
			Txid: node.Txid.String(),
			Raw:  raw,
		})
	}
	return out
}

func keyLocatorFlags(family, index int) keychain.KeyLocator {
	return keychain.KeyLocator{
		Family: keychain.KeyFamily(family),
		Index:  uint32(index),
	}
}
