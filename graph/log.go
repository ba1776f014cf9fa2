package graph

import (
	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lnd/build"
)

// Subsystem defines the logging code for the graph subsystem.
const Subsystem = "GRPH"

// log is a logger that is initialized with the btclog.Disabled logger.
var log = build.NewSubLogger(Subsystem, nil)

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
