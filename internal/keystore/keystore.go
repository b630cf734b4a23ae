// Package keystore converts account keys to password-protected backups and
// back. It owns every cryptographic step of backup and restore; the flow
// controllers only sequence calls into it.
//
// A host constructs one KeyStore and hands it to each flow. It holds no
// per-flow state and is safe for concurrent use.
package keystore

import (
	"crypto/rand"
	"errors"
	"io"

	clog "github.com/charmbracelet/log"

	"github.com/Hussein-Mazeh/KeyRecovery/account"
	"github.com/Hussein-Mazeh/KeyRecovery/auth"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/logging"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/secret"
	"github.com/Hussein-Mazeh/KeyRecovery/krypto"
)

// DefaultCandidates is how many accounts are derived from a mnemonic backup.
const DefaultCandidates = 5

// KeyStore implements validation, export, import and account derivation.
type KeyStore struct {
	policy     auth.Policy
	kdf        secret.KDFParams
	bounds     secret.Bounds
	candidates int
	random     io.Reader
	spawn      func(func())
	log        *clog.Logger
}

// Option configures a KeyStore.
type Option func(*KeyStore)

// WithPolicy replaces the password policy.
func WithPolicy(p auth.Policy) Option {
	return func(ks *KeyStore) { ks.policy = p }
}

// WithKDF sets the parameters used for new exports.
func WithKDF(p secret.KDFParams) Option {
	return func(ks *KeyStore) { ks.kdf = p }
}

// WithBounds sets the KDF cost limits accepted on import and export.
func WithBounds(b secret.Bounds) Option {
	return func(ks *KeyStore) { ks.bounds = b }
}

// WithCandidates sets how many accounts a mnemonic yields.
func WithCandidates(n int) Option {
	return func(ks *KeyStore) {
		if n > 0 {
			ks.candidates = n
		}
	}
}

// WithRandom sets the randomness source for salts, nonces and generated seeds.
func WithRandom(r io.Reader) Option {
	return func(ks *KeyStore) { ks.random = r }
}

// WithExecutor sets how async operations are started. The default runs each on
// its own goroutine.
func WithExecutor(spawn func(func())) Option {
	return func(ks *KeyStore) { ks.spawn = spawn }
}

// WithLogger sets the logger.
func WithLogger(l *clog.Logger) Option {
	return func(ks *KeyStore) { ks.log = l }
}

// New returns a KeyStore with the default policy, Argon2id parameters and bounds.
func New(opts ...Option) *KeyStore {
	ks := &KeyStore{
		policy:     auth.DefaultPolicy(),
		kdf:        secret.DefaultKDFParams(),
		bounds:     secret.DefaultBounds(),
		candidates: DefaultCandidates,
		random:     rand.Reader,
		spawn:      func(f func()) { go f() },
	}
	for _, opt := range opts {
		opt(ks)
	}
	if ks.log == nil {
		ks.log = logging.With("component", "keystore")
	}
	return ks
}

// ValidatePassword reports whether pw satisfies the policy. It is pure.
func (ks *KeyStore) ValidatePassword(pw string) bool {
	return ks.policy.Check(pw)
}

// PasswordProblem returns the first policy rule pw breaks, or nil. The message
// is suitable for showing next to the password field.
func (ks *KeyStore) PasswordProblem(pw string) error {
	return ks.policy.Validate(pw)
}

// GenerateAccount creates a random keypair.
func (ks *KeyStore) GenerateAccount() (*account.KeyPair, error) {
	kp, err := account.Generate(ks.random)
	if err != nil {
		return nil, newError("generate", ErrCryptoFailure, err)
	}
	return kp, nil
}

// GenerateMnemonic creates a fresh 24-word phrase.
func (ks *KeyStore) GenerateMnemonic() (account.SeedMaterial, error) {
	m, err := account.NewMnemonic()
	if err != nil {
		return account.SeedMaterial{}, newError("generate", ErrCryptoFailure, err)
	}
	return m, nil
}

// ExportAccount encrypts kp's seed under pw.
func (ks *KeyStore) ExportAccount(kp *account.KeyPair, pw string) (*secret.EncryptedSecret, error) {
	if kp == nil || len(kp.Seed) == 0 {
		return nil, newError("export", ErrInvalidAccount, account.ErrEmptySeed)
	}
	m := kp.Material()
	defer m.Zero()
	return ks.ExportSeed(m, pw)
}

// ExportSeed encrypts seed material under pw. The policy is checked before
// any cryptographic work; each call uses a fresh salt and nonce.
func (ks *KeyStore) ExportSeed(m account.SeedMaterial, pw string) (*secret.EncryptedSecret, error) {
	if err := ks.policy.Validate(pw); err != nil {
		return nil, newError("export", ErrInvalidPassword, err)
	}

	cands, err := m.Derive(1)
	if err != nil {
		return nil, newError("export", ErrInvalidAccount, err)
	}
	address := cands[0].Address
	zeroAll(cands)

	if err := ks.bounds.Check(ks.kdf); err != nil {
		ks.log.Error("export kdf misconfigured", "err", err)
		return nil, newError("export", ErrCryptoFailure, err)
	}

	password := []byte(pw)
	defer krypto.Zeroize(password)

	s, err := secret.Seal(ks.random, m, address, password, ks.kdf)
	if err != nil {
		ks.log.Error("export failed", "kdf", ks.kdf.Name, "err", err)
		return nil, newError("export", ErrCryptoFailure, err)
	}
	ks.log.Debug("exported", "address", address, "kind", m.Kind, "kdf", ks.kdf.Name)
	return s, nil
}

// ParseSecret decodes the text form of a backup. Structural problems and
// parameters outside the accepted bounds are ErrCorruptData.
func (ks *KeyStore) ParseSecret(text string) (*secret.EncryptedSecret, error) {
	s, err := secret.Parse(text)
	if err != nil {
		return nil, newError("parse", ErrCorruptData, err)
	}
	if err := ks.bounds.Check(s.KDF); err != nil {
		return nil, newError("parse", ErrCorruptData, err)
	}
	return s, nil
}

// ImportSeed decrypts s. Any authentication failure is ErrWrongPassword, with
// no detail about why.
func (ks *KeyStore) ImportSeed(s *secret.EncryptedSecret, pw string) (account.SeedMaterial, error) {
	if s == nil {
		return account.SeedMaterial{}, newError("import", ErrCorruptData, errors.New("nil secret"))
	}

	password := []byte(pw)
	defer krypto.Zeroize(password)

	m, err := secret.Open(s, password, ks.bounds)
	switch {
	case err == nil:
	case errors.Is(err, secret.ErrParamsOutOfBounds),
		errors.Is(err, secret.ErrUnsupportedKDF),
		errors.Is(err, secret.ErrUnsupportedVersion),
		errors.Is(err, secret.ErrMalformed):
		return account.SeedMaterial{}, newError("import", ErrCorruptData, err)
	default:
		ks.log.Debug("import did not authenticate", "address", s.Address)
		return account.SeedMaterial{}, newError("import", ErrWrongPassword, nil)
	}

	// The address is authenticated, so a mismatch means the blob was produced
	// by a broken exporter rather than tampered with.
	cands, err := m.Derive(1)
	if err != nil {
		m.Zero()
		return account.SeedMaterial{}, newError("import", ErrCorruptData, err)
	}
	match := cands[0].Address == s.Address
	zeroAll(cands)
	if !match {
		m.Zero()
		return account.SeedMaterial{}, newError("import", ErrCorruptData, errors.New("address mismatch"))
	}
	return m, nil
}

// ImportAccount decrypts s and returns its first account.
func (ks *KeyStore) ImportAccount(s *secret.EncryptedSecret, pw string) (*account.KeyPair, error) {
	m, err := ks.ImportSeed(s, pw)
	if err != nil {
		return nil, err
	}
	defer m.Zero()

	cands, err := m.Derive(1)
	if err != nil {
		return nil, newError("import", ErrCorruptData, err)
	}
	return cands[0], nil
}

// DeriveCandidateAccounts lists the accounts m can yield, in index order. Raw
// material yields exactly one.
func (ks *KeyStore) DeriveCandidateAccounts(m account.SeedMaterial) ([]*account.KeyPair, error) {
	cands, err := m.Derive(ks.candidates)
	if err != nil {
		return nil, newError("derive", ErrCorruptData, err)
	}
	return cands, nil
}

func zeroAll(kps []*account.KeyPair) {
	for _, kp := range kps {
		kp.Zero()
	}
}
