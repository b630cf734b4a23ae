package flow

import (
	"crypto/subtle"
	"errors"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Hussein-Mazeh/KeyRecovery/account"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/keystore"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/logging"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/secret"
	"github.com/Hussein-Mazeh/KeyRecovery/krypto"
)

// Exporter is the part of keystore.KeyStore a Backup uses.
type Exporter interface {
	ValidatePassword(pw string) bool
	ExportAsync(m account.SeedMaterial, pw []byte, done func(*secret.EncryptedSecret, error))
}

// BackupSnapshot is what a view renders for a Backup.
type BackupSnapshot struct {
	ID                  string
	State               BackupState
	Address             string
	PasswordValid       bool
	ConfirmationMatches bool
	Acknowledged        bool
	ProceedEnabled      bool
	// Secret is the encoded backup text once the export has succeeded.
	Secret string
	// Failure is the error kind that put the flow in BackupFailed.
	Failure error
}

// Backup walks one account through password creation, export and hand-off.
type Backup struct {
	id       string
	ks       Exporter
	loop     Dispatcher
	log      *clog.Logger
	done     func(*secret.EncryptedSecret)
	listener func(BackupSnapshot)

	material account.SeedMaterial
	address  string
	password []byte
	confirm  []byte

	passwordValid bool
	matches       bool
	acknowledged  bool

	state   BackupState
	gen     uint64
	secret  *secret.EncryptedSecret
	text    string
	failure error
}

// BackupOption configures a Backup.
type BackupOption func(*Backup)

// WithBackupLogger sets the logger.
func WithBackupLogger(l *clog.Logger) BackupOption {
	return func(b *Backup) { b.log = l }
}

// NewBackup starts a flow for m. The flow keeps its own copy of m and wipes it
// when the export succeeds or the flow is cancelled. done receives the secret
// when the user confirms it was saved.
func NewBackup(ks Exporter, loop Dispatcher, m account.SeedMaterial, done func(*secret.EncryptedSecret), opts ...BackupOption) (*Backup, error) {
	cands, err := m.Derive(1)
	if err != nil {
		return nil, &keystore.Error{Op: "backup", Kind: keystore.ErrInvalidAccount}
	}
	address := cands[0].Address
	cands[0].Zero()

	b := &Backup{
		id:       uuid.NewString(),
		ks:       ks,
		loop:     loop,
		done:     done,
		material: account.SeedMaterial{Kind: m.Kind, Data: append([]byte(nil), m.Data...)},
		address:  address,
		state:    CreatingPassword,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logging.With("flow", "backup")
	}
	b.log = b.log.With("id", b.id)
	b.log.Debug("started", "address", address, "kind", m.Kind)
	return b, nil
}

// ID identifies the flow in logs and views.
func (b *Backup) ID() string { return b.id }

// State returns the current state.
func (b *Backup) State() BackupState { return b.state }

// SetListener registers fn for every state or gate change. Pass nil to detach.
func (b *Backup) SetListener(fn func(BackupSnapshot)) { b.listener = fn }

// Snapshot returns the current view state.
func (b *Backup) Snapshot() BackupSnapshot {
	return BackupSnapshot{
		ID:                  b.id,
		State:               b.state,
		Address:             b.address,
		PasswordValid:       b.passwordValid,
		ConfirmationMatches: b.matches,
		Acknowledged:        b.acknowledged,
		ProceedEnabled:      b.proceedEnabled(),
		Secret:              b.text,
		Failure:             b.failure,
	}
}

// SetPassword replaces the password field. Validity and the confirmation
// match are recomputed.
func (b *Backup) SetPassword(pw string) error {
	if b.state != CreatingPassword {
		return ErrInvalidTransition
	}
	krypto.Zeroize(b.password)
	b.password = []byte(pw)
	b.passwordValid = b.ks.ValidatePassword(pw)
	b.recomputeMatch()
	b.notify()
	return nil
}

// SetConfirmation replaces the confirmation field.
func (b *Backup) SetConfirmation(pw string) error {
	if b.state != CreatingPassword {
		return ErrInvalidTransition
	}
	krypto.Zeroize(b.confirm)
	b.confirm = []byte(pw)
	b.recomputeMatch()
	b.notify()
	return nil
}

// SetAcknowledged records whether the user accepted that a lost password
// cannot be recovered.
func (b *Backup) SetAcknowledged(ack bool) error {
	if b.state != CreatingPassword {
		return ErrInvalidTransition
	}
	b.acknowledged = ack
	b.notify()
	return nil
}

// Proceed starts the export. It is accepted only in CreatingPassword with the
// gate open, so a second call while Exporting is rejected.
func (b *Backup) Proceed() error {
	if b.state != CreatingPassword {
		return ErrInvalidTransition
	}
	if !b.proceedEnabled() {
		return ErrProceedDisabled
	}

	b.gen++
	gen := b.gen
	b.transition(Exporting)
	b.ks.ExportAsync(b.material, b.password, func(s *secret.EncryptedSecret, err error) {
		b.loop.Post(func() { b.exported(gen, s, err) })
	})
	return nil
}

func (b *Backup) exported(gen uint64, s *secret.EncryptedSecret, err error) {
	if gen != b.gen || b.state != Exporting {
		b.log.Debug("discarding stale export result")
		return
	}
	if err != nil {
		b.failure = errorKind(err, keystore.ErrCryptoFailure)
		b.log.Warn("export failed", "err", err)
		var kerr *keystore.Error
		if errors.As(err, &kerr) && kerr.Cause() != nil {
			b.log.Debug("export failure cause", "cause", kerr.Cause())
		}
		b.transition(BackupFailed)
		return
	}

	text, err := s.Encode()
	if err != nil {
		b.failure = keystore.ErrCryptoFailure
		b.log.Warn("encode failed", "err", err)
		b.transition(BackupFailed)
		return
	}
	b.secret = s
	b.text = text
	b.wipe()
	b.transition(SaveAndShare)
}

// Retry returns a failed flow to CreatingPassword. Password, confirmation and
// acknowledgment are kept, so Proceed is enabled again right away.
func (b *Backup) Retry() error {
	if b.state != BackupFailed {
		return ErrInvalidTransition
	}
	b.failure = nil
	b.transition(CreatingPassword)
	return nil
}

// ConfirmSaved hands the secret to the completion callback.
func (b *Backup) ConfirmSaved() error {
	if b.state != SaveAndShare {
		return ErrInvalidTransition
	}
	b.transition(BackupCompleted)
	if b.done != nil {
		b.done(b.secret)
	}
	return nil
}

// Cancel abandons the flow from any non-terminal state. A pending export
// result is discarded when it arrives.
func (b *Backup) Cancel() error {
	if b.state.Terminal() {
		return ErrInvalidTransition
	}
	b.gen++
	b.wipe()
	b.secret = nil
	b.text = ""
	b.transition(BackupCancelled)
	return nil
}

func (b *Backup) proceedEnabled() bool {
	return b.state == CreatingPassword && b.passwordValid && b.matches && b.acknowledged
}

func (b *Backup) recomputeMatch() {
	b.matches = len(b.password) == len(b.confirm) &&
		subtle.ConstantTimeCompare(b.password, b.confirm) == 1
}

func (b *Backup) wipe() {
	b.material.Zero()
	krypto.Zeroize(b.password)
	krypto.Zeroize(b.confirm)
	b.password, b.confirm = nil, nil
	b.passwordValid, b.matches = false, false
}

func (b *Backup) transition(to BackupState) {
	b.log.Debug("transition", "from", b.state, "to", to)
	b.state = to
	b.notify()
}

func (b *Backup) notify() {
	if b.listener != nil {
		b.listener(b.Snapshot())
	}
}

// errorKind maps err to one of the keystore error kinds, or fallback.
func errorKind(err error, fallback error) error {
	var kerr *keystore.Error
	if errors.As(err, &kerr) {
		return kerr.Kind
	}
	return fallback
}
