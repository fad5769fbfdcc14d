// File: ioloop/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ioloop

import "errors"

// ErrMultiplexerUnavailable is a sentinel for a multiplexer pair that
// cannot be used at all. NewCore does not validate its Pair and returns
// no error, and no function in this package returns this value.
var ErrMultiplexerUnavailable = errors.New("ioloop: multiplexer pair unavailable")
