// Package account holds blockchain account keypairs and the seed material they
// are derived from.
package account

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcutil/base58"

	"github.com/Hussein-Mazeh/KeyRecovery/krypto"
)

const (
	// SeedSize is the length of an account seed.
	SeedSize = ed25519.SeedSize
	// AddressVersion prefixes every encoded public key.
	AddressVersion byte = 0x30

	seedInfo = "account-seed-v1"
)

var (
	ErrEmptySeed      = errors.New("seed material is empty")
	ErrInvalidAddress = errors.New("invalid account address")
)

// KeyPair is an account's public address and private seed.
//
// The seed is plaintext while in memory. Owners call Zero once the keypair has
// been handed off.
type KeyPair struct {
	Address string
	Seed    []byte
}

// Generate creates a keypair from 32 random bytes read from r.
func Generate(r io.Reader) (*KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	kp, err := FromSeed(seed)
	krypto.Zeroize(seed)
	return kp, err
}

// FromSeed builds the keypair for arbitrary seed material. A SeedSize input is
// used as the Ed25519 seed directly; any other length is stretched with HKDF.
// The input is copied.
func FromSeed(material []byte) (*KeyPair, error) {
	if len(material) == 0 {
		return nil, ErrEmptySeed
	}

	var seed []byte
	if len(material) == SeedSize {
		seed = make([]byte, SeedSize)
		copy(seed, material)
	} else {
		expanded, err := krypto.HKDFSHA256(material, nil, []byte(seedInfo), SeedSize)
		if err != nil {
			return nil, fmt.Errorf("expand seed: %w", err)
		}
		seed = expanded
	}

	return &KeyPair{Address: addressForSeed(seed), Seed: seed}, nil
}

func addressForSeed(seed []byte) string {
	priv := ed25519.NewKeyFromSeed(seed)
	defer krypto.Zeroize(priv)
	return EncodeAddress(priv.Public().(ed25519.PublicKey))
}

// EncodeAddress renders a public key as a base58check address.
func EncodeAddress(pub ed25519.PublicKey) string {
	return base58.CheckEncode(pub, AddressVersion)
}

// DecodeAddress parses an address back into its public key.
func DecodeAddress(addr string) (ed25519.PublicKey, error) {
	raw, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if version != AddressVersion || len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidAddress
	}
	return ed25519.PublicKey(raw), nil
}

// PublicKey returns the Ed25519 public key for the address.
func (k *KeyPair) PublicKey() (ed25519.PublicKey, error) {
	return DecodeAddress(k.Address)
}

// Sign signs msg with the account key.
func (k *KeyPair) Sign(msg []byte) ([]byte, error) {
	if len(k.Seed) != SeedSize {
		return nil, ErrEmptySeed
	}
	priv := ed25519.NewKeyFromSeed(k.Seed)
	defer krypto.Zeroize(priv)
	return ed25519.Sign(priv, msg), nil
}

// Equal compares two keypairs; seeds are compared in constant time.
func (k *KeyPair) Equal(other *KeyPair) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.Address == other.Address && subtle.ConstantTimeCompare(k.Seed, other.Seed) == 1
}

// Material wraps a copy of the seed as raw seed material.
func (k *KeyPair) Material() SeedMaterial {
	data := make([]byte, len(k.Seed))
	copy(data, k.Seed)
	return SeedMaterial{Kind: KindRaw, Data: data}
}

// Zero wipes the seed. The address is public and stays.
func (k *KeyPair) Zero() {
	if k == nil {
		return
	}
	krypto.Zeroize(k.Seed)
	k.Seed = nil
}

// String never includes the seed.
func (k *KeyPair) String() string {
	if k == nil {
		return "<nil>"
	}
	return k.Address
}

// GoString keeps %#v from printing the seed.
func (k *KeyPair) GoString() string {
	return fmt.Sprintf("account.KeyPair{Address:%q, Seed:<redacted>}", k.String())
}
