package main

import (
	"fmt"
	"io"

	"github.com/Hussein-Mazeh/KeyRecovery/internal/flow"
)

// termView prints one status line per state change.
type termView struct {
	out          io.Writer
	backupState  flow.BackupState
	restoreState flow.RestoreState
	seen         bool
}

func (v *termView) RenderBackup(s flow.BackupSnapshot) {
	if v.seen && s.State == v.backupState {
		return
	}
	v.seen, v.backupState = true, s.State
	switch s.State {
	case flow.Exporting:
		fmt.Fprintln(v.out, "Encrypting backup...")
	case flow.BackupCancelled:
		fmt.Fprintln(v.out, "Backup cancelled.")
	}
}

func (v *termView) RenderRestore(s flow.RestoreSnapshot) {
	if v.seen && s.State == v.restoreState && !s.IncorrectPassword {
		return
	}
	v.seen, v.restoreState = true, s.State
	switch s.State {
	case flow.AwaitingPassword:
		if s.IncorrectPassword {
			fmt.Fprintf(v.out, "Incorrect password (attempt %d).\n", s.Attempts)
		} else if s.Address != "" {
			fmt.Fprintf(v.out, "Backup for %s\n", s.Address)
		}
	case flow.Decrypting:
		fmt.Fprintln(v.out, "Decrypting...")
	case flow.SelectingAccount:
		fmt.Fprintln(v.out, "This backup holds several accounts:")
		for i, addr := range s.Candidates {
			fmt.Fprintf(v.out, "  [%d] %s\n", i, addr)
		}
	case flow.RestoreCancelled:
		fmt.Fprintln(v.out, "Restore cancelled.")
	}
}
