package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/KeyRecovery/internal/flow"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/presenter"
)

const maxPasswordPrompts = 5

type restoreOptions struct {
	in        string
	keychain  string
	index     int
	printSeed bool
}

func newRestoreCmd(a *app) *cobra.Command {
	o := restoreOptions{index: flow.NoAccount}
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Recover an account from a backup",
		Long: `Recover an account from a backup.

The backup text is read from --in, from the Keychain entry named by
--keychain, or from a prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRestore(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.in, "in", "", "read the backup from this file")
	f.StringVar(&o.keychain, "keychain", "", "read the backup for this address from the macOS Keychain")
	f.IntVar(&o.index, "account", flow.NoAccount, "account index to restore when the backup holds several")
	f.BoolVar(&o.printSeed, "print-seed", false, "print the recovered seed as hex")
	cmd.MarkFlagsMutuallyExclusive("in", "keychain")
	return cmd
}

func (a *app) backupText(o restoreOptions) (string, error) {
	switch {
	case o.in != "":
		text, err := a.svc.LoadBackupFile(o.in)
		if errors.Is(err, os.ErrNotExist) {
			return "", userErrorf("backup file not found: %s", o.in)
		}
		return text, err
	case o.keychain != "":
		text, err := a.svc.LoadFromKeychain(o.keychain)
		if err != nil {
			return "", userErrorf("keychain: %v", err)
		}
		return text, nil
	default:
		return a.prompt.Line("Backup text: ")
	}
}

func (a *app) runRestore(cmd *cobra.Command, o restoreOptions) error {
	ctx := cmd.Context()
	text, err := a.backupText(o)
	if err != nil {
		return err
	}

	var result flow.RestoreResult
	loop := flow.NewLoop(4)
	p := presenter.NewRestore(a.svc.NewRestore(loop, func(res flow.RestoreResult) { result = res }))
	p.Attach(&termView{out: cmd.ErrOrStderr()})
	defer p.Detach()
	defer abandonRestore(p)

	if err := p.SecretEntered(text); err != nil {
		return userErrorf("%s", presenter.Message(err))
	}

	for prompts := 0; ; prompts++ {
		snap := p.Snapshot()
		switch snap.State {
		case flow.AwaitingPassword:
			if prompts >= maxPasswordPrompts {
				return userErrorf("too many incorrect passwords")
			}
			pw, err := a.prompt.Password("Backup password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			err = p.PasswordEntered(string(pw))
			zeroBytes(pw)
			if err != nil {
				return err
			}
			if err := loop.RunOnce(ctx); err != nil {
				return userErrorf("restore cancelled")
			}
		case flow.SelectingAccount:
			if err := a.chooseAccount(cmd.ErrOrStderr(), p, o.index); err != nil {
				return err
			}
		case flow.RestoreFailed:
			return userErrorf("%s", presenter.Message(snap.Failure))
		case flow.RestoreCompleted:
			defer result.Account.Zero()
			fmt.Fprintf(cmd.ErrOrStderr(), "Restored account [%d]\n", result.Index)
			fmt.Fprintln(cmd.OutOrStdout(), result.Account.Address)
			if o.printSeed {
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(result.Account.Seed))
			}
			return nil
		default:
			return fmt.Errorf("restore stopped in state %s", snap.State)
		}
	}
}

// abandonRestore cancels the flow unless it already finished, wiping any
// decrypted candidates.
func abandonRestore(p *presenter.Restore) {
	if !p.Snapshot().State.Terminal() {
		_ = p.BackPressed()
	}
}

func (a *app) chooseAccount(out io.Writer, p *presenter.Restore, index int) error {
	if index != flow.NoAccount {
		if err := p.AccountChosen(index); err != nil {
			return userErrorf("%s", presenter.Message(err))
		}
		return nil
	}

	for {
		line, err := a.prompt.Line("Account number: ")
		if err != nil {
			return fmt.Errorf("read account: %w", err)
		}
		i, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			i = flow.NoAccount
		}
		if err := p.AccountChosen(i); err != nil {
			fmt.Fprintln(out, presenter.Message(err))
			continue
		}
		return nil
	}
}
