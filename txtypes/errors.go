package txtypes

import "errors"

// Sentinel errors surfaced by the txtypes data-model constructors. Owning
// packages higher up the stack wrap these in a structured error for
// inspection; txtypes itself stays a leaf and never imports anything else in
// this module.
var (
	ErrEmptyScriptName   = errors.New("txtypes: script key name must not be empty")
	ErrNoScriptsProvided = errors.New("txtypes: at least one leaf script is required")
	ErrInvalidOutputType = errors.New("txtypes: output type does not support this operation")
	ErrInvalidTweak      = errors.New("txtypes: invalid taproot tweak")
)
