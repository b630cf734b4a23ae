package krypto

import (
	"errors"
	"fmt"
	"io"
	"math"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

const (
	// MinSaltBytes is the shortest salt accepted by either KDF.
	MinSaltBytes = 16
	// SaltLengthBytes is the salt length used for new derivations.
	SaltLengthBytes = 16
	// KeyLengthBytes is the derived key size (AES-256).
	KeyLengthBytes = 32
	// MaxArgon2MemoryMB is the largest memory cost whose KiB value fits in a uint32.
	MaxArgon2MemoryMB = math.MaxUint32 / 1024
)

// Argon2Params captures tunable parameters for Argon2id.
type Argon2Params struct {
	MemoryMB    uint32
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
}

// DefaultArgon2Params returns sane defaults for deriving a 256-bit key.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryMB:    64,
		Time:        3,
		Parallelism: 1,
		KeyLen:      KeyLengthBytes,
	}
}

// ScryptParams captures tunable parameters for scrypt. N is 1<<LogN.
type ScryptParams struct {
	LogN   uint8
	R      uint32
	P      uint32
	KeyLen uint32
}

// DefaultScryptParams mirrors the "standard" scrypt cost used by most wallet keystores.
func DefaultScryptParams() ScryptParams {
	return ScryptParams{
		LogN:   18,
		R:      8,
		P:      1,
		KeyLen: KeyLengthBytes,
	}
}

// DeriveKeyArgon2id derives a key using Argon2id with the provided parameters.
func DeriveKeyArgon2id(password []byte, salt []byte, p Argon2Params) ([]byte, error) {
	if err := checkInputs(password, salt); err != nil {
		return nil, err
	}
	if p.KeyLen == 0 {
		return nil, errors.New("key length must be positive")
	}
	if p.MemoryMB == 0 {
		return nil, errors.New("memory parameter must be positive")
	}
	if p.MemoryMB > MaxArgon2MemoryMB {
		return nil, fmt.Errorf("memory parameter %dMB exceeds %dMB", p.MemoryMB, MaxArgon2MemoryMB)
	}
	if p.Time == 0 {
		return nil, errors.New("time parameter must be positive")
	}
	if p.Parallelism == 0 {
		return nil, errors.New("parallelism must be positive")
	}

	memoryKB := p.MemoryMB * 1024
	key := argon2.IDKey(password, salt, p.Time, memoryKB, p.Parallelism, p.KeyLen)
	if uint32(len(key)) != p.KeyLen {
		return nil, fmt.Errorf("derived key has unexpected length %d", len(key))
	}
	return key, nil
}

// DeriveKeyScrypt derives a key using scrypt with the provided parameters.
func DeriveKeyScrypt(password []byte, salt []byte, p ScryptParams) ([]byte, error) {
	if err := checkInputs(password, salt); err != nil {
		return nil, err
	}
	if p.KeyLen == 0 {
		return nil, errors.New("key length must be positive")
	}
	if p.LogN == 0 || p.LogN > 30 {
		return nil, fmt.Errorf("scrypt logN %d out of range", p.LogN)
	}

	key, err := scrypt.Key(password, salt, 1<<p.LogN, int(p.R), int(p.P), int(p.KeyLen))
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	return key, nil
}

func checkInputs(password, salt []byte) error {
	if len(password) == 0 {
		return errors.New("password is required")
	}
	if len(salt) == 0 {
		return errors.New("salt is required")
	}
	if len(salt) < MinSaltBytes {
		return fmt.Errorf("salt must be at least %d bytes", MinSaltBytes)
	}
	return nil
}

// NewRandomSalt reads a salt of n bytes from r. n below MinSaltBytes is raised to SaltLengthBytes.
func NewRandomSalt(r io.Reader, n int) ([]byte, error) {
	if n < MinSaltBytes {
		n = SaltLengthBytes
	}
	salt := make([]byte, n)
	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}
