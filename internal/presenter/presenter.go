// Package presenter sits between a flow controller and whatever draws it.
// It keeps the latest snapshot so a view that is torn down and recreated can
// be restored without asking the flow to repeat any work.
package presenter

import (
	"errors"

	"github.com/Hussein-Mazeh/KeyRecovery/internal/flow"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/keystore"
)

// BackupView renders backup snapshots.
type BackupView interface {
	RenderBackup(flow.BackupSnapshot)
}

// RestoreView renders restore snapshots.
type RestoreView interface {
	RenderRestore(flow.RestoreSnapshot)
}

// Backup forwards view input to a flow.Backup and flow changes to the view.
type Backup struct {
	flow *flow.Backup
	view BackupView
	last flow.BackupSnapshot
}

// NewBackup takes over b's listener.
func NewBackup(b *flow.Backup) *Backup {
	p := &Backup{flow: b, last: b.Snapshot()}
	b.SetListener(p.update)
	return p
}

// Attach binds v and immediately renders the retained snapshot.
func (p *Backup) Attach(v BackupView) {
	p.view = v
	v.RenderBackup(p.last)
}

// Detach unbinds the view. The flow keeps running.
func (p *Backup) Detach() { p.view = nil }

// Snapshot returns the retained snapshot.
func (p *Backup) Snapshot() flow.BackupSnapshot { return p.last }

// PasswordChanged forwards the password field.
func (p *Backup) PasswordChanged(pw string) error { return p.flow.SetPassword(pw) }

// ConfirmationChanged forwards the confirmation field.
func (p *Backup) ConfirmationChanged(pw string) error { return p.flow.SetConfirmation(pw) }

// AcknowledgeChanged forwards the warning checkbox.
func (p *Backup) AcknowledgeChanged(ack bool) error { return p.flow.SetAcknowledged(ack) }

// ProceedPressed starts the export once the gate is open.
func (p *Backup) ProceedPressed() error { return p.flow.Proceed() }

// RetryPressed returns a failed export to password entry.
func (p *Backup) RetryPressed() error { return p.flow.Retry() }

// SavedPressed confirms the user stored the backup text.
func (p *Backup) SavedPressed() error { return p.flow.ConfirmSaved() }

// BackPressed cancels the flow and wipes its secrets.
func (p *Backup) BackPressed() error { return p.flow.Cancel() }

func (p *Backup) update(s flow.BackupSnapshot) {
	p.last = s
	if p.view != nil {
		p.view.RenderBackup(s)
	}
}

// Restore forwards view input to a flow.Restore and flow changes to the view.
type Restore struct {
	flow *flow.Restore
	view RestoreView
	last flow.RestoreSnapshot
}

// NewRestore takes over r's listener.
func NewRestore(r *flow.Restore) *Restore {
	p := &Restore{flow: r, last: r.Snapshot()}
	r.SetListener(p.update)
	return p
}

// Attach binds v and immediately renders the retained snapshot.
func (p *Restore) Attach(v RestoreView) {
	p.view = v
	v.RenderRestore(p.last)
}

// Detach unbinds the view. The flow keeps running.
func (p *Restore) Detach() { p.view = nil }

// Snapshot returns the retained snapshot.
func (p *Restore) Snapshot() flow.RestoreSnapshot { return p.last }

// SecretEntered submits the pasted backup text.
func (p *Restore) SecretEntered(text string) error { return p.flow.SubmitSecret(text) }

// PasswordEntered starts decryption with pw.
func (p *Restore) PasswordEntered(pw string) error { return p.flow.SubmitPassword(pw) }

// AccountChosen selects candidate i.
func (p *Restore) AccountChosen(i int) error { return p.flow.SelectAccount(i) }

// BackPressed cancels the flow and wipes any decrypted candidates.
func (p *Restore) BackPressed() error { return p.flow.Cancel() }

func (p *Restore) update(s flow.RestoreSnapshot) {
	p.last = s
	if p.view != nil {
		p.view.RenderRestore(s)
	}
}

// Message turns an error kind into text for the user. It never includes
// library detail.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, keystore.ErrInvalidPassword):
		return "The password does not meet the requirements."
	case errors.Is(err, keystore.ErrInvalidAccount):
		return "This account cannot be backed up."
	case errors.Is(err, keystore.ErrCryptoFailure):
		return "The backup could not be created. Please try again."
	case errors.Is(err, keystore.ErrWrongPassword):
		return "Incorrect password."
	case errors.Is(err, keystore.ErrCorruptData):
		return "The backup is damaged or was made by an unsupported version."
	case errors.Is(err, keystore.ErrInvalidSelection):
		return "Choose one of the listed accounts."
	case errors.Is(err, flow.ErrProceedDisabled):
		return "Enter a valid password, confirm it and accept the warning first."
	default:
		return "Something went wrong."
	}
}
