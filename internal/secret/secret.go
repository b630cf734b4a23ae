// Package secret defines the EncryptedSecret backup blob and its wire format.
package secret

import (
	"errors"
	"fmt"

	"github.com/Hussein-Mazeh/KeyRecovery/account"
	"github.com/Hussein-Mazeh/KeyRecovery/krypto"
)

// Format versions. Version1 blobs only ever carried raw seeds; Version2 adds
// the material kind. Decoding must keep accepting every version listed here.
const (
	Version1       uint8 = 1
	Version2       uint8 = 2
	CurrentVersion       = Version2
)

// KDF names.
const (
	KDFArgon2id = "argon2id"
	KDFScrypt   = "scrypt"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported secret version")
	ErrUnsupportedKDF     = errors.New("unsupported kdf")
	ErrParamsOutOfBounds  = errors.New("kdf parameters out of bounds")
	ErrMalformed          = errors.New("malformed secret")
)

// KDFParams is the self-describing key-derivation configuration stored with
// every secret. Only the fields of the named KDF are meaningful.
type KDFParams struct {
	Name string

	// argon2id
	Time        uint32
	MemoryMB    uint32
	Parallelism uint8

	// scrypt
	LogN uint8
	R    uint32
	P    uint32
}

// DefaultKDFParams returns Argon2id with the package defaults.
func DefaultKDFParams() KDFParams {
	a := krypto.DefaultArgon2Params()
	return KDFParams{
		Name:        KDFArgon2id,
		Time:        a.Time,
		MemoryMB:    a.MemoryMB,
		Parallelism: a.Parallelism,
	}
}

// ScryptKDFParams returns scrypt with the package defaults.
func ScryptKDFParams() KDFParams {
	s := krypto.DefaultScryptParams()
	return KDFParams{Name: KDFScrypt, LogN: s.LogN, R: s.R, P: s.P}
}

// Bounds caps KDF cost. Import refuses anything outside it, so a modified
// header can neither request unbounded work nor a trivially weak derivation.
type Bounds struct {
	MaxTime        uint32
	MaxMemoryMB    uint32
	MaxParallelism uint8
	MinLogN        uint8
	MaxLogN        uint8
	MaxR           uint32
	MaxP           uint32
}

// DefaultBounds allows up to 256 MB / 10 passes for Argon2id and N = 2^20 for scrypt.
func DefaultBounds() Bounds {
	return Bounds{
		MaxTime:        10,
		MaxMemoryMB:    256,
		MaxParallelism: 8,
		MinLogN:        10,
		MaxLogN:        20,
		MaxR:           16,
		MaxP:           4,
	}
}

// Check validates p against b.
func (b Bounds) Check(p KDFParams) error {
	switch p.Name {
	case KDFArgon2id:
		if p.Time == 0 || p.Time > b.MaxTime ||
			p.MemoryMB == 0 || p.MemoryMB > b.MaxMemoryMB ||
			p.Parallelism == 0 || p.Parallelism > b.MaxParallelism {
			return fmt.Errorf("%w: argon2id t=%d m=%dMB p=%d", ErrParamsOutOfBounds, p.Time, p.MemoryMB, p.Parallelism)
		}
	case KDFScrypt:
		if p.LogN < b.MinLogN || p.LogN > b.MaxLogN ||
			p.R == 0 || p.R > b.MaxR ||
			p.P == 0 || p.P > b.MaxP {
			return fmt.Errorf("%w: scrypt logN=%d r=%d p=%d", ErrParamsOutOfBounds, p.LogN, p.R, p.P)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKDF, p.Name)
	}
	return nil
}

// DeriveKey runs the KDF named by p.
func (p KDFParams) DeriveKey(password, salt []byte) ([]byte, error) {
	switch p.Name {
	case KDFArgon2id:
		return krypto.DeriveKeyArgon2id(password, salt, krypto.Argon2Params{
			MemoryMB:    p.MemoryMB,
			Time:        p.Time,
			Parallelism: p.Parallelism,
			KeyLen:      krypto.KeyLengthBytes,
		})
	case KDFScrypt:
		return krypto.DeriveKeyScrypt(password, salt, krypto.ScryptParams{
			LogN:   p.LogN,
			R:      p.R,
			P:      p.P,
			KeyLen: krypto.KeyLengthBytes,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKDF, p.Name)
	}
}

// EncryptedSecret is a password-protected account backup.
type EncryptedSecret struct {
	Version    uint8
	Kind       account.Kind
	KDF        KDFParams
	Salt       []byte
	Nonce      []byte
	Address    string // address of the first derivable account, stored in clear
	Ciphertext []byte
}

// Clone returns a deep copy.
func (s *EncryptedSecret) Clone() *EncryptedSecret {
	c := *s
	c.Salt = append([]byte(nil), s.Salt...)
	c.Nonce = append([]byte(nil), s.Nonce...)
	c.Ciphertext = append([]byte(nil), s.Ciphertext...)
	return &c
}
