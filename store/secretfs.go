// Package store persists backup text on disk. Files hold the encoded secret
// exactly as a user would copy it; nothing here decrypts.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	secretExt = ".backup"
	// MaxSecretFileBytes caps what LoadSecretFile will read.
	MaxSecretFileBytes = 64 << 10
)

// ErrTooLarge is returned for files bigger than MaxSecretFileBytes.
var ErrTooLarge = errors.New("backup file too large")

// Paths locates backup files on disk.
type Paths struct {
	Dir string
}

// SecretPath resolves the file for an account address.
func (p Paths) SecretPath(address string) string {
	return filepath.Join(p.Dir, address+secretExt)
}

func (p Paths) ensureDir() error {
	if p.Dir == "" {
		return errors.New("backup directory not specified")
	}
	if err := os.MkdirAll(p.Dir, 0o700); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	return nil
}

// SaveSecret writes text for address under p.Dir and returns the path.
func SaveSecret(p Paths, address, text string) (string, error) {
	if strings.TrimSpace(address) == "" || strings.ContainsAny(address, `/\`) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	if err := p.ensureDir(); err != nil {
		return "", err
	}
	path := p.SecretPath(address)
	if err := SaveSecretFile(path, text); err != nil {
		return "", err
	}
	return path, nil
}

// SaveSecretFile persists text atomically with restrictive permissions.
func SaveSecretFile(path, text string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "backup-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp backup: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(strings.TrimSpace(text) + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp backup: %w", err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp backup: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp backup: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace backup: %w", err)
	}
	return nil
}

// LoadSecretFile reads backup text from path. os.ErrNotExist is returned
// unwrapped so callers can test for it.
func LoadSecretFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		return "", fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSecretFileBytes+1))
	if err != nil {
		return "", fmt.Errorf("read backup: %w", err)
	}
	if len(data) > MaxSecretFileBytes {
		return "", ErrTooLarge
	}
	return strings.TrimSpace(string(data)), nil
}
