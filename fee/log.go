package fee

import (
	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lnd/build"
)

// Subsystem defines the logging code for the fee estimation/resolution
// subsystem.
const Subsystem = "FEE"

// log is a logger that is initialized with the btclog.Disabled logger.
var log = build.NewSubLogger(Subsystem, nil)

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
