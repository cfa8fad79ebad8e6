package weft

import "errors"

// ErrDepthExceeded is the panic value (wrapped) raised by a signal write when
// the optional notification depth limit is enabled and a propagation chain
// exceeds it. This almost always means an effect writes a signal that it, or
// something upstream of it, also reads.
//
// See SetDepthLimit.
var ErrDepthExceeded = errors.New("weft: notification depth limit exceeded")

// ErrTypeMismatch is returned by AnySignal.SetAny when the supplied value
// does not match the signal's element type.
var ErrTypeMismatch = errors.New("weft: value type does not match signal type")

// ErrAlreadyRegistered is returned by Registry.Register when the name is
// already bound to a signal.
var ErrAlreadyRegistered = errors.New("weft: signal name already registered")

// ErrNotRegistered reports a registry name with no bound signal. Lookup
// itself reports absence with a bool; callers that need an error wrap this
// sentinel.
var ErrNotRegistered = errors.New("weft: signal name not registered")
