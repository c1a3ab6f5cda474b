// Package logging wraps gopkg.in/op/go-logging.v1, the structured logger
// carried by xendarboh-katzenpost (a pack repo), for the session state
// transitions, handshake rejections and rollback events the spec calls
// out as observable (§4.8, §7). The teacher itself never logs through a
// library — cmd/rayserver and cmd/rayman print banners with plain fmt —
// so library code gets this wrapper while cmd/ entrypoints keep using
// fmt for one-shot startup banners, matching that split.
package logging

import (
	"os"

	logging "gopkg.in/op/go-logging.v1"
)

var backendInitialized bool

// format mirrors the terse, timestamp-plus-level style go-logging ships
// with by default; we only pin it so output is stable across processes.
const format = `%{time:15:04:05.000} %{level:.4s} %{module}: %{message}`

// Init installs a single stderr backend at the given level, shared by
// every logger returned by Get. Safe to call more than once; only the
// first call takes effect, matching the teacher's process-scoped,
// initialize-once treatment of shared resources (§5, §9).
func Init(level logging.Level) {
	if backendInitialized {
		return
	}
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(format))
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)
	backendInitialized = true
}

// Get returns a module-scoped logger. Call Init once at process startup
// first; Get works without it too, falling back to go-logging's default
// backend (useful in tests that never call Init).
func Get(module string) *logging.Logger {
	return logging.MustGetLogger(module)
}
