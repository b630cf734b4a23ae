package flow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/KeyRecovery/account"
	"github.com/Hussein-Mazeh/KeyRecovery/auth"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/flow"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/keystore"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/secret"
)

const testPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var (
	fastKDF = secret.KDFParams{Name: secret.KDFArgon2id, Time: 1, MemoryMB: 1, Parallelism: 1}
	bounds  = secret.Bounds{MaxTime: 2, MaxMemoryMB: 4, MaxParallelism: 2, MinLogN: 10, MaxLogN: 12, MaxR: 8, MaxP: 1}
)

func newKeyStore(opts ...keystore.Option) *keystore.KeyStore {
	base := []keystore.Option{keystore.WithKDF(fastKDF), keystore.WithBounds(bounds)}
	return keystore.New(append(base, opts...)...)
}

func runOnce(t *testing.T, loop *flow.Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, loop.RunOnce(ctx))
}

func seedX(t *testing.T) *account.KeyPair {
	t.Helper()
	kp, err := account.FromSeed([]byte("seed-X"))
	require.NoError(t, err)
	return kp
}

// fakeExporter holds export callbacks until the test releases them.
type fakeExporter struct {
	policy  auth.Policy
	calls   int
	pending []func(*secret.EncryptedSecret, error)
}

func newFakeExporter() *fakeExporter {
	return &fakeExporter{policy: auth.DefaultPolicy()}
}

func (f *fakeExporter) ValidatePassword(pw string) bool { return f.policy.Check(pw) }

func (f *fakeExporter) ExportAsync(_ account.SeedMaterial, _ []byte, done func(*secret.EncryptedSecret, error)) {
	f.calls++
	f.pending = append(f.pending, done)
}

// fakeImporter parses with a real KeyStore and holds import callbacks.
type fakeImporter struct {
	ks      *keystore.KeyStore
	pending []func([]*account.KeyPair, error)
}

func (f *fakeImporter) ParseSecret(text string) (*secret.EncryptedSecret, error) {
	return f.ks.ParseSecret(text)
}

func (f *fakeImporter) ImportAsync(_ *secret.EncryptedSecret, _ []byte, done func([]*account.KeyPair, error)) {
	f.pending = append(f.pending, done)
}

func openGate(t *testing.T, b *flow.Backup) {
	t.Helper()
	require.NoError(t, b.SetPassword("Ab12345"))
	require.NoError(t, b.SetConfirmation("Ab12345"))
	require.NoError(t, b.SetAcknowledged(true))
	require.True(t, b.Snapshot().ProceedEnabled)
}

func TestBackupGateCombinations(t *testing.T) {
	for mask := 0; mask < 8; mask++ {
		valid, match, ack := mask&1 != 0, mask&2 != 0, mask&4 != 0

		b, err := flow.NewBackup(newFakeExporter(), flow.NewLoop(1), seedX(t).Material(), nil)
		require.NoError(t, err)

		pw := "short"
		if valid {
			pw = "Ab12345"
		}
		confirm := pw + "x"
		if match {
			confirm = pw
		}
		require.NoError(t, b.SetPassword(pw))
		require.NoError(t, b.SetConfirmation(confirm))
		require.NoError(t, b.SetAcknowledged(ack))

		snap := b.Snapshot()
		assert.Equal(t, valid, snap.PasswordValid, "mask %d", mask)
		assert.Equal(t, match, snap.ConfirmationMatches, "mask %d", mask)
		assert.Equal(t, valid && match && ack, snap.ProceedEnabled, "mask %d", mask)

		err = b.Proceed()
		if valid && match && ack {
			assert.NoError(t, err, "mask %d", mask)
			assert.Equal(t, flow.Exporting, b.State())
		} else {
			assert.ErrorIs(t, err, flow.ErrProceedDisabled, "mask %d", mask)
			assert.Equal(t, flow.CreatingPassword, b.State())
		}
	}
}

func TestBackupMatchRecomputedOnPasswordChange(t *testing.T) {
	b, err := flow.NewBackup(newFakeExporter(), flow.NewLoop(1), seedX(t).Material(), nil)
	require.NoError(t, err)
	openGate(t, b)

	require.NoError(t, b.SetPassword("Ab123456"))
	snap := b.Snapshot()
	assert.True(t, snap.PasswordValid)
	assert.False(t, snap.ConfirmationMatches)
	assert.False(t, snap.ProceedEnabled)

	require.NoError(t, b.SetAcknowledged(false))
	require.NoError(t, b.SetConfirmation("Ab123456"))
	assert.False(t, b.Snapshot().ProceedEnabled)
}

func TestBackupExportsOnceAndHandsOff(t *testing.T) {
	ks := newKeyStore()
	loop := flow.NewLoop(4)
	kp := seedX(t)

	var handed *secret.EncryptedSecret
	b, err := flow.NewBackup(ks, loop, kp.Material(), func(s *secret.EncryptedSecret) { handed = s })
	require.NoError(t, err)
	assert.Equal(t, kp.Address, b.Snapshot().Address)

	var states []flow.BackupState
	b.SetListener(func(s flow.BackupSnapshot) { states = append(states, s.State) })

	openGate(t, b)
	require.NoError(t, b.Proceed())
	assert.ErrorIs(t, b.Proceed(), flow.ErrInvalidTransition)
	runOnce(t, loop)

	snap := b.Snapshot()
	require.Equal(t, flow.SaveAndShare, snap.State)
	assert.NotEmpty(t, snap.Secret)
	assert.False(t, snap.ProceedEnabled)
	assert.ErrorIs(t, b.SetPassword("Ab12345"), flow.ErrInvalidTransition)
	assert.Nil(t, handed)

	require.NoError(t, b.ConfirmSaved())
	require.NotNil(t, handed)
	assert.Equal(t, flow.BackupCompleted, b.State())
	assert.ErrorIs(t, b.Cancel(), flow.ErrInvalidTransition)

	got, err := ks.ImportAccount(handed, "Ab12345")
	require.NoError(t, err)
	assert.True(t, kp.Equal(got))

	handedText, err := handed.Encode()
	require.NoError(t, err)
	assert.Equal(t, snap.Secret, handedText)

	assert.Equal(t, []flow.BackupState{flow.CreatingPassword, flow.Exporting, flow.SaveAndShare, flow.BackupCompleted}, dedupe(states))
}

func TestBackupProceedCallsExportOnce(t *testing.T) {
	fx := newFakeExporter()
	b, err := flow.NewBackup(fx, flow.NewLoop(1), seedX(t).Material(), nil)
	require.NoError(t, err)
	openGate(t, b)

	require.NoError(t, b.Proceed())
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Proceed(), flow.ErrInvalidTransition)
	}
	assert.Equal(t, 1, fx.calls)
}

func TestBackupFailureIsRetryable(t *testing.T) {
	fx := newFakeExporter()
	loop := flow.NewLoop(2)
	b, err := flow.NewBackup(fx, loop, seedX(t).Material(), nil)
	require.NoError(t, err)
	openGate(t, b)

	require.NoError(t, b.Proceed())
	require.Len(t, fx.pending, 1)
	fx.pending[0](nil, &keystore.Error{Op: "export", Kind: keystore.ErrCryptoFailure})
	runOnce(t, loop)

	snap := b.Snapshot()
	require.Equal(t, flow.BackupFailed, snap.State)
	assert.ErrorIs(t, snap.Failure, keystore.ErrCryptoFailure)
	assert.Empty(t, snap.Secret)

	assert.ErrorIs(t, b.ConfirmSaved(), flow.ErrInvalidTransition)
	require.NoError(t, b.Retry())
	snap = b.Snapshot()
	assert.Equal(t, flow.CreatingPassword, snap.State)
	assert.Nil(t, snap.Failure)
	assert.True(t, snap.ProceedEnabled, "inputs survive a retry")

	require.NoError(t, b.Proceed())
	assert.Equal(t, 2, fx.calls)
}

func TestBackupCancelDiscardsInFlightExport(t *testing.T) {
	ks := newKeyStore()
	fx := newFakeExporter()
	loop := flow.NewLoop(2)
	kp := seedX(t)

	called := false
	b, err := flow.NewBackup(fx, loop, kp.Material(), func(*secret.EncryptedSecret) { called = true })
	require.NoError(t, err)
	openGate(t, b)
	require.NoError(t, b.Proceed())

	require.NoError(t, b.Cancel())
	assert.Equal(t, flow.BackupCancelled, b.State())

	s, err := ks.ExportAccount(kp, "Ab12345")
	require.NoError(t, err)
	fx.pending[0](s, nil)
	runOnce(t, loop)

	snap := b.Snapshot()
	assert.Equal(t, flow.BackupCancelled, snap.State)
	assert.Empty(t, snap.Secret)
	assert.False(t, called)
	assert.ErrorIs(t, b.Retry(), flow.ErrInvalidTransition)
}

func TestBackupRejectsUnusableMaterial(t *testing.T) {
	_, err := flow.NewBackup(newFakeExporter(), flow.NewLoop(1), account.SeedMaterial{Kind: account.KindRaw}, nil)
	assert.ErrorIs(t, err, keystore.ErrInvalidAccount)
}

func exportText(t *testing.T, ks *keystore.KeyStore, m account.SeedMaterial, pw string) string {
	t.Helper()
	s, err := ks.ExportSeed(m, pw)
	require.NoError(t, err)
	text, err := s.Encode()
	require.NoError(t, err)
	return text
}

func TestRestoreSingleAccountCompletesWithIndexZero(t *testing.T) {
	ks := newKeyStore()
	loop := flow.NewLoop(2)
	kp := seedX(t)
	text := exportText(t, ks, kp.Material(), "Ab12345")

	var result flow.RestoreResult
	r := flow.NewRestore(ks, loop, func(res flow.RestoreResult) { result = res })
	assert.Equal(t, flow.NoAccount, r.Snapshot().Selected)

	require.NoError(t, r.SubmitSecret(text))
	assert.Equal(t, flow.AwaitingPassword, r.State())
	assert.Equal(t, kp.Address, r.Snapshot().Address)

	require.NoError(t, r.SubmitPassword("Ab12345"))
	assert.Equal(t, flow.Decrypting, r.State())
	runOnce(t, loop)

	snap := r.Snapshot()
	require.Equal(t, flow.RestoreCompleted, snap.State)
	assert.Equal(t, 0, snap.Selected)
	assert.Empty(t, snap.Candidates)
	require.NotNil(t, result.Account)
	assert.Equal(t, 0, result.Index)
	assert.True(t, kp.Equal(result.Account))
}

func TestRestoreWrongPasswordReturnsToPrompt(t *testing.T) {
	ks := newKeyStore()
	loop := flow.NewLoop(2)
	text := exportText(t, ks, seedX(t).Material(), "Ab12345")

	r := flow.NewRestore(ks, loop, nil)
	require.NoError(t, r.SubmitSecret(text))

	require.NoError(t, r.SubmitPassword("Zz99999"))
	runOnce(t, loop)
	snap := r.Snapshot()
	assert.Equal(t, flow.AwaitingPassword, snap.State)
	assert.True(t, snap.IncorrectPassword)
	assert.Equal(t, 1, snap.Attempts)
	assert.Nil(t, snap.Failure)

	require.NoError(t, r.SubmitPassword("Ab12345"))
	assert.False(t, r.Snapshot().IncorrectPassword)
	runOnce(t, loop)
	assert.Equal(t, flow.RestoreCompleted, r.State())
}

func TestRestoreMaxAttempts(t *testing.T) {
	ks := newKeyStore()
	loop := flow.NewLoop(2)
	text := exportText(t, ks, seedX(t).Material(), "Ab12345")

	r := flow.NewRestore(ks, loop, nil, flow.WithMaxAttempts(2))
	require.NoError(t, r.SubmitSecret(text))
	for i := 0; i < 2; i++ {
		require.NoError(t, r.SubmitPassword("Zz99999"))
		runOnce(t, loop)
	}
	snap := r.Snapshot()
	assert.Equal(t, flow.RestoreFailed, snap.State)
	assert.ErrorIs(t, snap.Failure, keystore.ErrWrongPassword)
	assert.ErrorIs(t, r.SubmitPassword("Ab12345"), flow.ErrInvalidTransition)
}

func TestRestoreTruncatedSecretFails(t *testing.T) {
	ks := newKeyStore()
	text := exportText(t, ks, seedX(t).Material(), "Ab12345")

	r := flow.NewRestore(ks, flow.NewLoop(1), nil)
	err := r.SubmitSecret(text[:len(text)-1])
	assert.ErrorIs(t, err, keystore.ErrCorruptData)

	snap := r.Snapshot()
	assert.Equal(t, flow.RestoreFailed, snap.State)
	assert.ErrorIs(t, snap.Failure, keystore.ErrCorruptData)
	assert.ErrorIs(t, r.SubmitSecret(text), flow.ErrInvalidTransition)
	assert.ErrorIs(t, r.Cancel(), flow.ErrInvalidTransition)
}

func TestRestoreSelectingAccount(t *testing.T) {
	ks := newKeyStore(keystore.WithCandidates(3))
	loop := flow.NewLoop(2)
	m, err := account.ParseMnemonic(testPhrase)
	require.NoError(t, err)
	want, err := ks.DeriveCandidateAccounts(m)
	require.NoError(t, err)
	text := exportText(t, ks, m, "Ab12345")

	var result flow.RestoreResult
	r := flow.NewRestore(ks, loop, func(res flow.RestoreResult) { result = res })
	require.NoError(t, r.SubmitSecret(text))
	require.NoError(t, r.SubmitPassword("Ab12345"))
	runOnce(t, loop)

	snap := r.Snapshot()
	require.Equal(t, flow.SelectingAccount, snap.State)
	require.Len(t, snap.Candidates, 3)
	for i := range want {
		assert.Equal(t, want[i].Address, snap.Candidates[i])
	}
	assert.Equal(t, flow.NoAccount, snap.Selected)

	for _, bad := range []int{flow.NoAccount, 3, 100} {
		assert.ErrorIs(t, r.SelectAccount(bad), keystore.ErrInvalidSelection, "index %d", bad)
		assert.Equal(t, flow.SelectingAccount, r.State())
	}

	require.NoError(t, r.SelectAccount(2))
	assert.Equal(t, flow.RestoreCompleted, r.State())
	assert.Equal(t, 2, r.Snapshot().Selected)
	assert.Equal(t, 2, result.Index)
	assert.True(t, want[2].Equal(result.Account))
	assert.ErrorIs(t, r.SelectAccount(1), flow.ErrInvalidTransition)
}

func TestRestoreCancelDiscardsInFlightImport(t *testing.T) {
	ks := newKeyStore()
	fi := &fakeImporter{ks: ks}
	loop := flow.NewLoop(2)
	kp := seedX(t)
	text := exportText(t, ks, kp.Material(), "Ab12345")

	called := false
	r := flow.NewRestore(fi, loop, func(flow.RestoreResult) { called = true })
	require.NoError(t, r.SubmitSecret(text))
	require.NoError(t, r.SubmitPassword("Ab12345"))
	require.NoError(t, r.Cancel())

	late, err := account.FromSeed([]byte("seed-X"))
	require.NoError(t, err)
	fi.pending[0]([]*account.KeyPair{late}, nil)
	runOnce(t, loop)

	assert.Equal(t, flow.RestoreCancelled, r.State())
	assert.False(t, called)
	assert.Empty(t, late.Seed, "discarded result is wiped")
}

func TestRestoreImportFailures(t *testing.T) {
	ks := newKeyStore()
	text := exportText(t, ks, seedX(t).Material(), "Ab12345")

	for name, deliver := range map[string]func(func([]*account.KeyPair, error)){
		"corrupt":     func(done func([]*account.KeyPair, error)) { done(nil, &keystore.Error{Op: "import", Kind: keystore.ErrCorruptData}) },
		"no accounts": func(done func([]*account.KeyPair, error)) { done(nil, nil) },
	} {
		t.Run(name, func(t *testing.T) {
			fi := &fakeImporter{ks: ks}
			loop := flow.NewLoop(2)
			called := false
			r := flow.NewRestore(fi, loop, func(flow.RestoreResult) { called = true })

			require.NoError(t, r.SubmitSecret(text))
			require.NoError(t, r.SubmitPassword("Ab12345"))
			require.Len(t, fi.pending, 1)
			deliver(fi.pending[0])
			runOnce(t, loop)

			snap := r.Snapshot()
			assert.Equal(t, flow.RestoreFailed, snap.State)
			assert.ErrorIs(t, snap.Failure, keystore.ErrCorruptData)
			assert.False(t, snap.IncorrectPassword)
			assert.Zero(t, snap.Attempts)
			assert.Equal(t, flow.NoAccount, snap.Selected)
			assert.False(t, called)
			assert.ErrorIs(t, r.SubmitPassword("Ab12345"), flow.ErrInvalidTransition)
		})
	}
}

func TestRestoreRejectsOutOfOrderEvents(t *testing.T) {
	r := flow.NewRestore(newKeyStore(), flow.NewLoop(1), nil)
	assert.ErrorIs(t, r.SubmitPassword("Ab12345"), flow.ErrInvalidTransition)
	assert.ErrorIs(t, r.SelectAccount(0), flow.ErrInvalidTransition)
	require.NoError(t, r.Cancel())
	assert.Equal(t, flow.RestoreCancelled, r.State())
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "save-and-share", flow.SaveAndShare.String())
	assert.Equal(t, "selecting-account", flow.SelectingAccount.String())
	assert.Equal(t, "backup-state(42)", flow.BackupState(42).String())
	assert.True(t, flow.RestoreFailed.Terminal())
	assert.False(t, flow.BackupFailed.Terminal())
}

func dedupe(states []flow.BackupState) []flow.BackupState {
	var out []flow.BackupState
	for _, s := range states {
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}
