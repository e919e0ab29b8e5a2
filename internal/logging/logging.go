// Package logging configures the process-wide logger. Packages obtain their
// logger via GetLog and never configure backends themselves.
package logging

import (
	"os"
	"sync"

	"github.com/op/go-logging"
)

const module = "rtchess"

var (
	once sync.Once
	log  *logging.Logger
)

// GetLog returns the shared logger, configuring the stderr backend on first
// use.
func GetLog() *logging.Logger {
	once.Do(setup)
	return log
}

func setup() {
	log = logging.MustGetLogger(module)
	format := logging.MustStringFormatter(
		`%{time:15:04:05.000} %{level:-8s} %{shortpkg}:%{shortfunc} %{message}`,
	)
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), format)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(logging.INFO, "")
	logging.SetBackend(leveled)
}

// SetLevel adjusts the minimum emitted level. Unknown names are ignored so a
// bad config value cannot silence the server.
func SetLevel(level string) {
	log := GetLog()
	lvl, err := logging.LogLevel(level)
	if err != nil {
		log.Warningf("unknown log level %q, keeping current", level)
		return
	}
	logging.SetLevel(lvl, module)
}
