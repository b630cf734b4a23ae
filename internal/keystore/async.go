package keystore

import (
	"errors"

	"github.com/Hussein-Mazeh/KeyRecovery/account"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/secret"
)

// ExportAsync runs ExportSeed off the caller's goroutine and reports through
// done. Inputs are copied first, so the caller may wipe its own copies at any
// time. done runs on the worker goroutine.
func (ks *KeyStore) ExportAsync(m account.SeedMaterial, pw []byte, done func(*secret.EncryptedSecret, error)) {
	own := account.SeedMaterial{Kind: m.Kind, Data: append([]byte(nil), m.Data...)}
	password := string(pw)

	ks.spawn(func() {
		defer own.Zero()
		done(ks.ExportSeed(own, password))
	})
}

// ImportAsync runs ImportSeed and, on success, DeriveCandidateAccounts off the
// caller's goroutine. done runs on the worker goroutine.
func (ks *KeyStore) ImportAsync(s *secret.EncryptedSecret, pw []byte, done func([]*account.KeyPair, error)) {
	if s == nil {
		ks.spawn(func() { done(nil, newError("import", ErrCorruptData, errors.New("nil secret"))) })
		return
	}
	own := s.Clone()
	password := string(pw)

	ks.spawn(func() {
		m, err := ks.ImportSeed(own, password)
		if err != nil {
			done(nil, err)
			return
		}
		defer m.Zero()
		done(ks.DeriveCandidateAccounts(m))
	})
}
