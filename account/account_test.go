package account_test

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"testing"

	"github.com/stellar/go/strkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/KeyRecovery/account"
)

// Published BIP-39 test vector phrase.
const testPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestFromSeedDeterministic(t *testing.T) {
	a, err := account.FromSeed([]byte("seed-X"))
	require.NoError(t, err)
	b, err := account.FromSeed([]byte("seed-X"))
	require.NoError(t, err)
	c, err := account.FromSeed([]byte("seed-Y"))
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.NotEqual(t, a.Address, c.Address)
	assert.Len(t, a.Seed, account.SeedSize)
}

func TestFromSeedUsesFullSizeSeedVerbatim(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, account.SeedSize)
	kp, err := account.FromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, seed, kp.Seed)

	seed[0] = 0
	assert.Equal(t, byte(0x42), kp.Seed[0], "input must be copied")
}

func TestFromSeedEmpty(t *testing.T) {
	_, err := account.FromSeed(nil)
	assert.ErrorIs(t, err, account.ErrEmptySeed)
}

func TestAddressRoundTripAndSign(t *testing.T) {
	kp, err := account.Generate(nil)
	require.NoError(t, err)

	pub, err := kp.PublicKey()
	require.NoError(t, err)

	sig, err := kp.Sign([]byte("msg"))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, []byte("msg"), sig))

	_, err = account.DecodeAddress(kp.Address + "x")
	assert.ErrorIs(t, err, account.ErrInvalidAddress)
}

func TestZeroAndRedaction(t *testing.T) {
	kp, err := account.FromSeed([]byte("seed-X"))
	require.NoError(t, err)

	seed := kp.Seed
	assert.NotContains(t, fmt.Sprintf("%v %#v %s", kp, kp, kp), fmt.Sprintf("%x", seed))

	kp.Zero()
	assert.Nil(t, kp.Seed)
	assert.Equal(t, make([]byte, account.SeedSize), seed)
	assert.NotEmpty(t, kp.Address)
}

func TestRawMaterialDerivesOne(t *testing.T) {
	kp, err := account.FromSeed([]byte("seed-X"))
	require.NoError(t, err)

	cands, err := kp.Material().Derive(5)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.True(t, kp.Equal(cands[0]))
}

func TestMnemonicDerivesOrderedCandidates(t *testing.T) {
	m, err := account.ParseMnemonic("  " + testPhrase + "\n")
	require.NoError(t, err)
	assert.Equal(t, testPhrase, string(m.Data))

	first, err := m.Derive(3)
	require.NoError(t, err)
	require.Len(t, first, 3)

	again, err := m.Derive(2)
	require.NoError(t, err)
	assert.True(t, first[0].Equal(again[0]))
	assert.True(t, first[1].Equal(again[1]))

	seen := map[string]bool{}
	for _, kp := range first {
		assert.False(t, seen[kp.Address])
		seen[kp.Address] = true
	}
}

// SEP-0005 test 1: no passphrase, first two accounts.
func TestMnemonicMatchesPublishedVectors(t *testing.T) {
	m, err := account.ParseMnemonic("illness spike retreat truth genius clock brain pass fit cave bargain toe")
	require.NoError(t, err)

	kps, err := m.Derive(2)
	require.NoError(t, err)
	require.Len(t, kps, 2)

	for i, want := range []string{
		"SBGWSG6BTNCKCOB3DIFBGCVMUPQFYPA2G4O34RMTB343OYPXU5DJDVMN",
		"SCEPFFWGAG5P2VX5DHIYK3XEMZYLTYWIPWYEKXFHSK25RVMIUNJ7CTIS",
	} {
		seed, err := strkey.Decode(strkey.VersionByteSeed, want)
		require.NoError(t, err)
		assert.Equal(t, seed, kps[i].Seed, "account %d", i)
	}
	assert.Equal(t, "4d691bc19b44a1383b1a0a130aaca3e05c3c1a371dbe45930ef9b761f7a74691", fmt.Sprintf("%x", kps[0].Seed))
}

func TestParseMnemonicRejectsBadChecksum(t *testing.T) {
	_, err := account.ParseMnemonic("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon")
	assert.ErrorIs(t, err, account.ErrInvalidMnemonic)
}

func TestNewMnemonic(t *testing.T) {
	m, err := account.NewMnemonic()
	require.NoError(t, err)
	assert.Equal(t, account.KindMnemonic, m.Kind)
	assert.NoError(t, m.Validate())
	assert.Len(t, bytes.Fields(m.Data), 24)
}

func TestUnknownKind(t *testing.T) {
	_, err := account.SeedMaterial{Kind: 9, Data: []byte("x")}.Derive(1)
	assert.ErrorIs(t, err, account.ErrUnknownKind)
}
