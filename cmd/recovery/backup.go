package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/KeyRecovery/account"
	"github.com/Hussein-Mazeh/KeyRecovery/auth"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/flow"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/keystore"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/logging"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/presenter"
)

const ackWarning = "If you lose this password the backup cannot be recovered. Type 'yes' to continue: "

type backupOptions struct {
	seed        bool
	mnemonic    bool
	newMnemonic bool
	out         string
	keychain    bool
	checkBreach bool
	yes         bool
}

func newBackupCmd(a *app) *cobra.Command {
	var o backupOptions
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a password-protected backup of an account",
		Long: `Create a password-protected backup of an account.

Without a source flag a new account is generated and backed up. The backup
text is printed and written to --out (or the data directory).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBackup(cmd, o)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&o.seed, "seed", false, "prompt for an existing hex-encoded account seed")
	f.BoolVar(&o.mnemonic, "mnemonic", false, "prompt for an existing recovery phrase")
	f.BoolVar(&o.newMnemonic, "new-mnemonic", false, "generate a new recovery phrase and back it up")
	f.StringVar(&o.out, "out", "", "write the backup to this file")
	f.BoolVar(&o.keychain, "keychain", false, "also store the backup in the macOS Keychain")
	f.BoolVar(&o.checkBreach, "check-breach", false, "refuse passwords found in known breaches (queries haveibeenpwned.com)")
	f.BoolVarP(&o.yes, "yes", "y", false, "accept the lost-password warning without asking")
	cmd.MarkFlagsMutuallyExclusive("seed", "mnemonic", "new-mnemonic")
	return cmd
}

func (a *app) material(cmd *cobra.Command, o backupOptions) (account.SeedMaterial, error) {
	ks := a.svc.KeyStore()
	switch {
	case o.seed:
		raw, err := a.prompt.Password("Account seed (hex): ")
		if err != nil {
			return account.SeedMaterial{}, fmt.Errorf("read seed: %w", err)
		}
		defer zeroBytes(raw)
		data, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil || len(data) == 0 {
			return account.SeedMaterial{}, userErrorf("seed must be non-empty hex")
		}
		return account.SeedMaterial{Kind: account.KindRaw, Data: data}, nil
	case o.mnemonic:
		phrase, err := a.prompt.Line("Recovery phrase: ")
		if err != nil {
			return account.SeedMaterial{}, fmt.Errorf("read phrase: %w", err)
		}
		m, err := account.ParseMnemonic(phrase)
		if err != nil {
			return account.SeedMaterial{}, userErrorf("%v", err)
		}
		return m, nil
	case o.newMnemonic:
		m, err := ks.GenerateMnemonic()
		if err != nil {
			return account.SeedMaterial{}, err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "New recovery phrase (write it down):\n  %s\n", m.Data)
		return m, nil
	default:
		kp, err := ks.GenerateAccount()
		if err != nil {
			return account.SeedMaterial{}, err
		}
		defer kp.Zero()
		fmt.Fprintf(cmd.ErrOrStderr(), "Generated account %s\n", kp.Address)
		return kp.Material(), nil
	}
}

func (a *app) runBackup(cmd *cobra.Command, o backupOptions) error {
	ctx := cmd.Context()
	m, err := a.material(cmd, o)
	if err != nil {
		return err
	}
	defer m.Zero()

	loop := flow.NewLoop(4)
	b, err := a.svc.NewBackup(loop, m, nil)
	if err != nil {
		return userErrorf("%s", presenter.Message(err))
	}
	p := presenter.NewBackup(b)
	p.Attach(&termView{out: cmd.ErrOrStderr()})
	defer p.Detach()
	defer abandonBackup(p)

	if err := a.backupPassword(ctx, cmd.ErrOrStderr(), p, o.checkBreach); err != nil {
		return err
	}

	if !o.yes {
		answer, err := a.prompt.Line(ackWarning)
		if err != nil {
			return fmt.Errorf("read acknowledgment: %w", err)
		}
		if !strings.EqualFold(strings.TrimSpace(answer), "yes") {
			return userErrorf("backup cancelled")
		}
	}
	if err := p.AcknowledgeChanged(true); err != nil {
		return err
	}

	if err := p.ProceedPressed(); err != nil {
		return userErrorf("%s", presenter.Message(err))
	}
	if err := loop.RunOnce(ctx); err != nil {
		return userErrorf("backup cancelled")
	}

	snap := p.Snapshot()
	if snap.State == flow.BackupFailed {
		return userErrorf("%s", presenter.Message(snap.Failure))
	}

	path, err := a.svc.SaveBackupFile(snap.Address, snap.Secret, o.out)
	if err != nil {
		return fmt.Errorf("save backup: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Backup written to %s\n", path)

	if o.keychain || a.cfg.Keychain {
		if err := a.svc.SaveToKeychain(snap.Address, snap.Secret); err != nil {
			logging.Warnf("keychain copy skipped: %v", err)
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "Backup stored in the Keychain.")
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), snap.Secret)
	return p.SavedPressed()
}

// abandonBackup cancels the flow unless it already finished, so its copy of
// the seed is wiped on every exit path.
func abandonBackup(p *presenter.Backup) {
	if !p.Snapshot().State.Terminal() {
		_ = p.BackPressed()
	}
}

// backupPassword asks until the policy accepts the password, then for the
// confirmation.
func (a *app) backupPassword(ctx context.Context, out io.Writer, p *presenter.Backup, checkBreach bool) error {
	ks := a.svc.KeyStore()
	for attempt := 0; attempt < 3; attempt++ {
		pw, err := a.prompt.Password("Backup password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		err = p.PasswordChanged(string(pw))
		problem := ks.PasswordProblem(string(pw))
		if err == nil && problem == nil && checkBreach {
			problem = breached(ctx, string(pw))
		}
		zeroBytes(pw)
		if err != nil {
			return err
		}
		if problem != nil {
			fmt.Fprintf(out, "Password rejected: %v\n", problem)
			continue
		}

		confirm, err := a.prompt.Password("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read confirmation: %w", err)
		}
		err = p.ConfirmationChanged(string(confirm))
		zeroBytes(confirm)
		if err != nil {
			return err
		}
		if !p.Snapshot().ConfirmationMatches {
			return userErrorf("passwords do not match")
		}
		return nil
	}
	return userErrorf("%s", presenter.Message(keystore.ErrInvalidPassword))
}

func breached(ctx context.Context, pw string) error {
	res, err := auth.NewBreachChecker().Check(ctx, pw)
	if err != nil {
		logging.Warnf("breach check unavailable: %v", err)
		return nil
	}
	if res.Found {
		return fmt.Errorf("found in %d known breaches", res.Count)
	}
	return nil
}
