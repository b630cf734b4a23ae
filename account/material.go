package account

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellar/go/exp/crypto/derivation"
	"github.com/tyler-smith/go-bip39"

	"github.com/Hussein-Mazeh/KeyRecovery/krypto"
)

// Kind tells how many accounts a piece of seed material can yield.
type Kind uint8

const (
	// KindRaw is a single account seed.
	KindRaw Kind = 1
	// KindMnemonic is a BIP-39 phrase; accounts are derived per index.
	KindMnemonic Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindMnemonic:
		return "mnemonic"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

const (
	// MnemonicEntropyBits yields a 24-word phrase.
	MnemonicEntropyBits = 256
	// CoinType is the SLIP-0044 coin type used in derivation paths.
	CoinType = 148

	accountPathFormat = derivation.StellarAccountPathFormat
)

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")
	ErrUnknownKind     = errors.New("unknown seed material kind")
)

// SeedMaterial is the plaintext a backup protects.
type SeedMaterial struct {
	Kind Kind
	Data []byte
}

// NewMnemonic generates a fresh 24-word phrase.
func NewMnemonic() (SeedMaterial, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return SeedMaterial{}, fmt.Errorf("mnemonic entropy: %w", err)
	}
	defer krypto.Zeroize(entropy)

	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return SeedMaterial{}, fmt.Errorf("mnemonic: %w", err)
	}
	return SeedMaterial{Kind: KindMnemonic, Data: []byte(phrase)}, nil
}

// ParseMnemonic normalises whitespace and validates the phrase checksum.
func ParseMnemonic(phrase string) (SeedMaterial, error) {
	phrase = strings.Join(strings.Fields(phrase), " ")
	if phrase == "" || !bip39.IsMnemonicValid(phrase) {
		return SeedMaterial{}, ErrInvalidMnemonic
	}
	return SeedMaterial{Kind: KindMnemonic, Data: []byte(phrase)}, nil
}

// Validate checks that the material is usable for its kind.
func (m SeedMaterial) Validate() error {
	switch m.Kind {
	case KindRaw:
		if len(m.Data) == 0 {
			return ErrEmptySeed
		}
		return nil
	case KindMnemonic:
		if !bip39.IsMnemonicValid(string(m.Data)) {
			return ErrInvalidMnemonic
		}
		return nil
	default:
		return ErrUnknownKind
	}
}

// Derive returns the keypairs the material yields, in index order. Raw material
// always yields exactly one; mnemonic material yields count accounts along
// m/44'/148'/i'.
func (m SeedMaterial) Derive(count int) ([]*KeyPair, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	switch m.Kind {
	case KindRaw:
		kp, err := FromSeed(m.Data)
		if err != nil {
			return nil, err
		}
		return []*KeyPair{kp}, nil
	default:
		if count < 1 {
			count = 1
		}
		seed := bip39.NewSeed(string(m.Data), "")
		defer krypto.Zeroize(seed)

		out := make([]*KeyPair, 0, count)
		for i := 0; i < count; i++ {
			key, err := derivation.DeriveForPath(fmt.Sprintf(accountPathFormat, i), seed)
			if err != nil {
				return nil, fmt.Errorf("derive account %d: %w", i, err)
			}
			kp, err := FromSeed(key.Key)
			krypto.Zeroize(key.Key)
			krypto.Zeroize(key.ChainCode)
			if err != nil {
				return nil, err
			}
			out = append(out, kp)
		}
		return out, nil
	}
}

// Zero wipes the material.
func (m *SeedMaterial) Zero() {
	krypto.Zeroize(m.Data)
	m.Data = nil
}
