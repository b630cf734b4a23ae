package flow

import (
	"fmt"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Hussein-Mazeh/KeyRecovery/account"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/keystore"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/logging"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/secret"
)

// Importer is the part of keystore.KeyStore a Restore uses.
type Importer interface {
	ParseSecret(text string) (*secret.EncryptedSecret, error)
	ImportAsync(s *secret.EncryptedSecret, pw []byte, done func([]*account.KeyPair, error))
}

// RestoreSnapshot is what a view renders for a Restore.
type RestoreSnapshot struct {
	ID    string
	State RestoreState
	// Address is the primary account named in the backup header.
	Address string
	// IncorrectPassword is set after a failed attempt until the next submission.
	IncorrectPassword bool
	Attempts          int
	// Candidates lists the addresses to choose from in SelectingAccount.
	Candidates []string
	// Selected is the chosen index, or NoAccount.
	Selected int
	Failure  error
}

// RestoreResult is handed to the completion callback.
type RestoreResult struct {
	Account *account.KeyPair
	Index   int
	// Secret is the backup the account was restored from.
	Secret *secret.EncryptedSecret
}

// Restore walks a user from backup text to a recovered account.
type Restore struct {
	id       string
	ks       Importer
	loop     Dispatcher
	log      *clog.Logger
	done     func(RestoreResult)
	listener func(RestoreSnapshot)

	maxAttempts int
	attempts    int
	incorrect   bool

	state      RestoreState
	gen        uint64
	secret     *secret.EncryptedSecret
	candidates []*account.KeyPair
	selected   int
	failure    error
}

// RestoreOption configures a Restore.
type RestoreOption func(*Restore)

// WithMaxAttempts fails the flow after n wrong passwords. Zero means no limit.
func WithMaxAttempts(n int) RestoreOption {
	return func(r *Restore) {
		if n >= 0 {
			r.maxAttempts = n
		}
	}
}

// WithRestoreLogger sets the logger.
func WithRestoreLogger(l *clog.Logger) RestoreOption {
	return func(r *Restore) { r.log = l }
}

// NewRestore starts a flow in AwaitingSecret. done receives the chosen account;
// the flow keeps no reference to it afterwards.
func NewRestore(ks Importer, loop Dispatcher, done func(RestoreResult), opts ...RestoreOption) *Restore {
	r := &Restore{
		id:       uuid.NewString(),
		ks:       ks,
		loop:     loop,
		done:     done,
		state:    AwaitingSecret,
		selected: NoAccount,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.With("flow", "restore")
	}
	r.log = r.log.With("id", r.id)
	r.log.Debug("started")
	return r
}

// ID identifies the flow in logs and views.
func (r *Restore) ID() string { return r.id }

// State returns the current state.
func (r *Restore) State() RestoreState { return r.state }

// SetListener registers fn for every change. Pass nil to detach.
func (r *Restore) SetListener(fn func(RestoreSnapshot)) { r.listener = fn }

// Snapshot returns the current view state.
func (r *Restore) Snapshot() RestoreSnapshot {
	snap := RestoreSnapshot{
		ID:                r.id,
		State:             r.state,
		IncorrectPassword: r.incorrect,
		Attempts:          r.attempts,
		Selected:          r.selected,
		Failure:           r.failure,
	}
	if r.secret != nil {
		snap.Address = r.secret.Address
	}
	if len(r.candidates) > 0 {
		snap.Candidates = make([]string, len(r.candidates))
		for i, kp := range r.candidates {
			snap.Candidates[i] = kp.Address
		}
	}
	return snap
}

// SubmitSecret parses the backup text. Text that does not parse moves the
// flow to RestoreFailed and the parse error is returned.
func (r *Restore) SubmitSecret(text string) error {
	if r.state != AwaitingSecret {
		return ErrInvalidTransition
	}
	s, err := r.ks.ParseSecret(text)
	if err != nil {
		r.failure = errorKind(err, keystore.ErrCorruptData)
		r.log.Warn("backup rejected", "err", err)
		r.transition(RestoreFailed)
		return err
	}
	r.secret = s
	r.transition(AwaitingPassword)
	return nil
}

// SubmitPassword starts decryption.
func (r *Restore) SubmitPassword(pw string) error {
	if r.state != AwaitingPassword {
		return ErrInvalidTransition
	}
	r.incorrect = false
	r.gen++
	gen := r.gen
	r.transition(Decrypting)

	password := []byte(pw)
	r.ks.ImportAsync(r.secret, password, func(c []*account.KeyPair, err error) {
		r.loop.Post(func() { r.imported(gen, c, err) })
	})
	for i := range password {
		password[i] = 0
	}
	return nil
}

func (r *Restore) imported(gen uint64, cands []*account.KeyPair, err error) {
	if gen != r.gen || r.state != Decrypting {
		r.log.Debug("discarding stale import result")
		zeroAll(cands)
		return
	}

	switch {
	case err != nil && errorKind(err, nil) == keystore.ErrWrongPassword:
		r.attempts++
		r.log.Info("incorrect password", "attempts", r.attempts)
		if r.maxAttempts > 0 && r.attempts >= r.maxAttempts {
			r.failure = keystore.ErrWrongPassword
			r.transition(RestoreFailed)
			return
		}
		r.incorrect = true
		r.transition(AwaitingPassword)
	case err != nil:
		r.failure = errorKind(err, keystore.ErrCorruptData)
		r.log.Warn("restore failed", "err", err)
		r.transition(RestoreFailed)
	case len(cands) == 0:
		r.failure = keystore.ErrCorruptData
		r.log.Warn("backup yielded no accounts")
		r.transition(RestoreFailed)
	case len(cands) == 1:
		r.candidates = cands
		r.complete(0)
	default:
		r.candidates = cands
		r.transition(SelectingAccount)
	}
}

// SelectAccount picks candidate i. An index out of range returns
// keystore.ErrInvalidSelection and leaves the state unchanged.
func (r *Restore) SelectAccount(i int) error {
	if r.state != SelectingAccount {
		return ErrInvalidTransition
	}
	if i < 0 || i >= len(r.candidates) {
		return fmt.Errorf("%w: %d not in [0, %d)", keystore.ErrInvalidSelection, i, len(r.candidates))
	}
	r.complete(i)
	return nil
}

func (r *Restore) complete(i int) {
	chosen := r.candidates[i]
	for j, kp := range r.candidates {
		if j != i {
			kp.Zero()
		}
	}
	r.candidates = nil
	r.selected = i
	r.log.Info("restored", "address", chosen.Address, "index", i)
	r.transition(RestoreCompleted)
	if r.done != nil {
		r.done(RestoreResult{Account: chosen, Index: i, Secret: r.secret})
	}
}

// Cancel abandons the flow from any non-terminal state. A pending import
// result is wiped when it arrives.
func (r *Restore) Cancel() error {
	if r.state.Terminal() {
		return ErrInvalidTransition
	}
	r.gen++
	zeroAll(r.candidates)
	r.candidates = nil
	r.transition(RestoreCancelled)
	return nil
}

func (r *Restore) transition(to RestoreState) {
	r.log.Debug("transition", "from", r.state, "to", to)
	r.state = to
	r.notify()
}

func (r *Restore) notify() {
	if r.listener != nil {
		r.listener(r.Snapshot())
	}
}

func zeroAll(kps []*account.KeyPair) {
	for _, kp := range kps {
		kp.Zero()
	}
}
