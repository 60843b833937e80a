package db

import "github.com/btcsuite/btclog"

// log is a logger that is initialized with no output filters. This means the
// package will not perform any logging by default until the caller requests
// it.
var log = btclog.Disabled

// UseLogger sets the package-wide logger. Any calls to this function must be
// made before a store is opened.
func UseLogger(logger btclog.Logger) {
	log = logger
}
