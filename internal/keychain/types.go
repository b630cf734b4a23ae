// Package keychain keeps a copy of backup text in the operating system's
// credential store. Only macOS is supported; other platforms get ErrUnsupported.
package keychain

import (
	"errors"
	"time"
)

// Entry is what gets stored per account.
type Entry struct {
	Address string    `json:"address"`
	Secret  string    `json:"secret"`
	SavedAt time.Time `json:"savedAt"`
}

var (
	// ErrUnsupported signals that no credential store is available on this platform.
	ErrUnsupported = errors.New("keychain not supported on this platform")
	// ErrNotFound is returned by Load when no entry exists for the address.
	ErrNotFound = errors.New("no keychain entry for account")
)
