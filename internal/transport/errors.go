package transport

import "errors"

// ErrInvalidRequest marks a malformed evaluation request body — the only
// case that produces a real HTTP 4xx per §7; everything else the engine
// can reach is an in-band degradation on a 200.
var ErrInvalidRequest = errors.New("transport: invalid request")
