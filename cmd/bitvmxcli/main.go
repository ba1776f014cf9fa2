// Package main implements bitvmxcli, the command-line front-end mapping
// one subcommand onto each transaction-graph builder operation. Everything
// here — configuration loading, session persistence, logging setup — sits
// outside the core builder's scope; the core library never imports this
// package.
package main

import (
	"fmt"
	"os"

	"github.com/lightningnetwork/lnd/signal"
)

func main() {
	interceptor, err := signal.Intercept()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, logger, err := LoadConfig(interceptor)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := newApp("0.1.0", cfg)
	if err := app.Run(os.Args); err != nil {
		logger.Errorf("command failed: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
