package health

import "sync/atomic"

// accepting gates readiness during graceful shutdown. It starts true so the
// probe turns on dependency checks alone until shutdown begins.
var accepting atomic.Bool

func init() {
	accepting.Store(true)
}

// SetReady flips the readiness gate. Call with false when shutdown starts so
// load balancers drain the instance before connections close.
func SetReady(ready bool) {
	accepting.Store(ready)
}

func isAccepting() bool {
	return accepting.Load()
}
