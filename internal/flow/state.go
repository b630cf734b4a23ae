package flow

import "fmt"

// BackupState is the step a Backup is in.
type BackupState int

const (
	CreatingPassword BackupState = iota
	// ConfirmingPassword is part of the state vocabulary shared with views.
	// Backup tracks the confirmation field inside CreatingPassword and never
	// enters it on its own.
	ConfirmingPassword
	Exporting
	SaveAndShare
	BackupCompleted
	BackupFailed
	BackupCancelled
)

var backupStateNames = map[BackupState]string{
	CreatingPassword:   "creating-password",
	ConfirmingPassword: "confirming-password",
	Exporting:          "exporting",
	SaveAndShare:       "save-and-share",
	BackupCompleted:    "completed",
	BackupFailed:       "failed",
	BackupCancelled:    "cancelled",
}

func (s BackupState) String() string {
	if name, ok := backupStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("backup-state(%d)", int(s))
}

// Terminal reports whether no further event is accepted.
func (s BackupState) Terminal() bool {
	return s == BackupCompleted || s == BackupCancelled
}

// RestoreState is the step a Restore is in.
type RestoreState int

const (
	AwaitingSecret RestoreState = iota
	AwaitingPassword
	Decrypting
	SelectingAccount
	RestoreCompleted
	RestoreFailed
	RestoreCancelled
)

var restoreStateNames = map[RestoreState]string{
	AwaitingSecret:   "awaiting-secret",
	AwaitingPassword: "awaiting-password",
	Decrypting:       "decrypting",
	SelectingAccount: "selecting-account",
	RestoreCompleted: "completed",
	RestoreFailed:    "failed",
	RestoreCancelled: "cancelled",
}

func (s RestoreState) String() string {
	if name, ok := restoreStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("restore-state(%d)", int(s))
}

// Terminal reports whether no further event is accepted.
func (s RestoreState) Terminal() bool {
	return s == RestoreCompleted || s == RestoreFailed || s == RestoreCancelled
}

// NoAccount is the "no account selected" index. It is never a valid selection.
const NoAccount = -1
