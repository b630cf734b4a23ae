package secret

import (
	"errors"
	"fmt"
	"io"

	"github.com/Hussein-Mazeh/KeyRecovery/account"
	"github.com/Hussein-Mazeh/KeyRecovery/krypto"
)

// Seal encrypts material under a key derived from password. Salt and nonce are
// fresh per call. address is recorded in clear and authenticated.
func Seal(random io.Reader, m account.SeedMaterial, address string, password []byte, kdf KDFParams) (*EncryptedSecret, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	salt, err := krypto.NewRandomSalt(random, krypto.SaltLengthBytes)
	if err != nil {
		return nil, err
	}
	nonce, err := krypto.NewNonce(random)
	if err != nil {
		return nil, err
	}

	s := &EncryptedSecret{
		Version: CurrentVersion,
		Kind:    m.Kind,
		KDF:     kdf,
		Salt:    salt,
		Nonce:   nonce,
		Address: address,
	}
	aad, err := s.Header()
	if err != nil {
		return nil, err
	}

	key, err := kdf.DeriveKey(password, salt)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer krypto.Zeroize(key)

	s.Ciphertext, err = krypto.SealAESGCM(key, nonce, m.Data, aad)
	if err != nil {
		return nil, fmt.Errorf("encrypt seed: %w", err)
	}
	return s, nil
}

// Open re-derives the key from the stored parameters and decrypts. KDF
// parameters outside b are refused before any derivation. A wrong password and
// a modified blob both surface as krypto.ErrAuthentication.
func Open(s *EncryptedSecret, password []byte, b Bounds) (account.SeedMaterial, error) {
	if err := b.Check(s.KDF); err != nil {
		return account.SeedMaterial{}, err
	}
	aad, err := s.Header()
	if err != nil {
		return account.SeedMaterial{}, err
	}

	key, err := s.KDF.DeriveKey(password, s.Salt)
	if err != nil {
		return account.SeedMaterial{}, fmt.Errorf("derive key: %w", err)
	}
	defer krypto.Zeroize(key)

	plain, err := krypto.OpenAESGCM(key, s.Nonce, s.Ciphertext, aad)
	if err != nil {
		if errors.Is(err, krypto.ErrAuthentication) {
			return account.SeedMaterial{}, krypto.ErrAuthentication
		}
		return account.SeedMaterial{}, fmt.Errorf("decrypt seed: %w", err)
	}
	return account.SeedMaterial{Kind: s.Kind, Data: plain}, nil
}
