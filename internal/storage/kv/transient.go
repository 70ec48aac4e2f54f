package kv

import (
	"context"
	"errors"
	"io"
	"strings"
	"syscall"

	"github.com/dgraph-io/badger/v4"
)

var transientErrnos = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.EPIPE,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
	syscall.ETIMEDOUT,
}

var transientSignatures = []string{
	"connection",
	"broken pipe",
	"host unreachable",
	"no route to host",
	"econnreset",
	"econnrefused",
	"etimedout",
	"ehostunreach",
}

// IsTransient reports whether err looks like a connectivity blip worth retrying.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	for _, target := range transientErrnos {
		if errors.Is(err, target) {
			return true
		}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, badger.ErrConflict) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
