package engine

import "errors"

// Rejection and empty-evidence conditions surfaced by the engine. Invalid
// signals and unknown factors are per-signal rejections that never abort a
// batch; empty fusion/ensemble mean "insufficient data", not a 50% guess.
var (
	ErrInvalidSignal = errors.New("invalid signal")
	ErrUnknownFactor = errors.New("unknown factor")
	ErrEmptyFusion   = errors.New("no factor evidence to fuse")
	ErrEmptyEnsemble = errors.New("no ensemble estimates")
)
