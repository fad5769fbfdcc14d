// File: ioloop/debug.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ioloop

import "log"

// Debug gates the block/resume trace lines below, mirroring the
// dbg_ioblock/dbg_scheduler channels of the implementation this core is
// modeled on. Off by default.
var Debug = false

func debugPrint(format string, args ...any) {
	if Debug {
		log.Printf(format, args...)
	}
}
