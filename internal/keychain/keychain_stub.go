//go:build !darwin

package keychain

// Save is unavailable on this platform.
func Save(address, secret string) error {
	return ErrUnsupported
}

// Load is unavailable on this platform.
func Load(address string) (Entry, error) {
	return Entry{}, ErrUnsupported
}

// Delete is unavailable on this platform.
func Delete(address string) error {
	return ErrUnsupported
}
