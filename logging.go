package sio

import (
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// DefaultLogger logs to stderr. Errors that have no local `error`
// listener end up here so they are never silently lost.
func DefaultLogger() logr.Logger {
	return stdr.New(log.New(os.Stderr, "[sio] ", log.LstdFlags))
}
