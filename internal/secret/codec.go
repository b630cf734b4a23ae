package secret

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Hussein-Mazeh/KeyRecovery/account"
	"github.com/Hussein-Mazeh/KeyRecovery/krypto"
)

// KDF identifiers on the wire.
const (
	kdfIDArgon2id uint8 = 0x01
	kdfIDScrypt   uint8 = 0x02
)

const (
	maxField = 0xff
	gcmTag   = 16
)

// Header returns the encoded bytes that precede the ciphertext. They are the
// AAD of the cipher, so every header byte is authenticated.
func (s *EncryptedSecret) Header() ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, s.Version)

	switch s.Version {
	case Version1:
		if s.Kind != account.KindRaw {
			return nil, fmt.Errorf("%w: version 1 only carries raw seeds", ErrUnsupportedVersion)
		}
	case Version2:
		if s.Kind != account.KindRaw && s.Kind != account.KindMnemonic {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, s.Kind)
		}
		buf = append(buf, byte(s.Kind))
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}

	switch s.KDF.Name {
	case KDFArgon2id:
		buf = append(buf, kdfIDArgon2id)
		buf = binary.BigEndian.AppendUint32(buf, s.KDF.Time)
		buf = binary.BigEndian.AppendUint32(buf, s.KDF.MemoryMB)
		buf = append(buf, s.KDF.Parallelism)
	case KDFScrypt:
		buf = append(buf, kdfIDScrypt, s.KDF.LogN)
		buf = binary.BigEndian.AppendUint32(buf, s.KDF.R)
		buf = binary.BigEndian.AppendUint32(buf, s.KDF.P)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKDF, s.KDF.Name)
	}

	for _, field := range [][]byte{s.Salt, s.Nonce, []byte(s.Address)} {
		if len(field) == 0 || len(field) > maxField {
			return nil, fmt.Errorf("%w: field length %d", ErrMalformed, len(field))
		}
		buf = append(buf, byte(len(field)))
		buf = append(buf, field...)
	}
	return buf, nil
}

// MarshalBinary encodes header then ciphertext.
func (s *EncryptedSecret) MarshalBinary() ([]byte, error) {
	hdr, err := s.Header()
	if err != nil {
		return nil, err
	}
	return append(hdr, s.Ciphertext...), nil
}

// UnmarshalBinary decodes any supported version. It validates structure only;
// authenticity is established by Open.
func (s *EncryptedSecret) UnmarshalBinary(data []byte) error {
	r := &reader{buf: data}
	var out EncryptedSecret

	out.Version = r.u8()
	switch out.Version {
	case Version1:
		out.Kind = account.KindRaw
	case Version2:
		out.Kind = account.Kind(r.u8())
		if r.err == nil && out.Kind != account.KindRaw && out.Kind != account.KindMnemonic {
			return fmt.Errorf("%w: %s", ErrMalformed, out.Kind)
		}
	default:
		if r.err != nil {
			return r.err
		}
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, out.Version)
	}

	switch id := r.u8(); id {
	case kdfIDArgon2id:
		out.KDF.Name = KDFArgon2id
		out.KDF.Time = r.u32()
		out.KDF.MemoryMB = r.u32()
		out.KDF.Parallelism = r.u8()
	case kdfIDScrypt:
		out.KDF.Name = KDFScrypt
		out.KDF.LogN = r.u8()
		out.KDF.R = r.u32()
		out.KDF.P = r.u32()
	default:
		if r.err != nil {
			return r.err
		}
		return fmt.Errorf("%w: id %d", ErrUnsupportedKDF, id)
	}

	out.Salt = r.field()
	out.Nonce = r.field()
	addr := r.field()
	out.Ciphertext = r.rest()
	if r.err != nil {
		return r.err
	}

	if len(out.Salt) < krypto.MinSaltBytes {
		return fmt.Errorf("%w: salt length %d", ErrMalformed, len(out.Salt))
	}
	if len(out.Nonce) != krypto.NonceSize {
		return fmt.Errorf("%w: nonce length %d", ErrMalformed, len(out.Nonce))
	}
	out.Address = string(addr)
	if _, err := account.DecodeAddress(out.Address); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(out.Ciphertext) <= gcmTag {
		return fmt.Errorf("%w: ciphertext too short", ErrMalformed)
	}

	*s = out
	return nil
}

// Encode returns the transportable text form: padded standard base64.
func (s *EncryptedSecret) Encode() (string, error) {
	raw, err := s.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Parse decodes the text form produced by Encode. Surrounding whitespace and
// line breaks are ignored.
func Parse(text string) (*EncryptedSecret, error) {
	text = strings.Join(strings.Fields(text), "")
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	s := new(EncryptedSecret)
	if err := s.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return s, nil
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: truncated at offset %d", ErrMalformed, r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *reader) field() []byte {
	n := int(r.u8())
	b := r.take(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (r *reader) rest() []byte {
	if r.err != nil {
		return nil
	}
	b := append([]byte(nil), r.buf[r.off:]...)
	r.off = len(r.buf)
	return b
}
