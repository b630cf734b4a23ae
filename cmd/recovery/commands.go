package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/KeyRecovery/internal/presenter"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/secret"
)

func newGenerateCmd(a *app) *cobra.Command {
	var mnemonic bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new account or recovery phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks := a.svc.KeyStore()
			out := cmd.OutOrStdout()
			if mnemonic {
				m, err := ks.GenerateMnemonic()
				if err != nil {
					return err
				}
				defer m.Zero()
				cands, err := ks.DeriveCandidateAccounts(m)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(m.Data))
				for i, kp := range cands {
					fmt.Fprintf(out, "[%d] %s\n", i, kp.Address)
					kp.Zero()
				}
				return nil
			}

			kp, err := ks.GenerateAccount()
			if err != nil {
				return err
			}
			defer kp.Zero()
			fmt.Fprintln(out, kp.Address)
			fmt.Fprintln(out, hex.EncodeToString(kp.Seed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&mnemonic, "mnemonic", false, "generate a 24-word recovery phrase instead of a single account")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "inspect [backup-text]",
		Short: "Show the public header of a backup without decrypting it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			var err error
			switch {
			case len(args) == 1:
				text = args[0]
			case in != "":
				text, err = a.svc.LoadBackupFile(in)
			default:
				text, err = a.prompt.Line("Backup text: ")
			}
			if err != nil {
				return err
			}

			s, err := a.svc.Inspect(text)
			if err != nil {
				return userErrorf("%s", presenter.Message(err))
			}
			printHeader(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "read the backup from this file")
	return cmd
}

func printHeader(w io.Writer, s *secret.EncryptedSecret) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "version\t%d\n", s.Version)
	fmt.Fprintf(tw, "kind\t%s\n", s.Kind)
	fmt.Fprintf(tw, "address\t%s\n", s.Address)
	switch s.KDF.Name {
	case secret.KDFScrypt:
		fmt.Fprintf(tw, "kdf\tscrypt (N=2^%d, r=%d, p=%d)\n", s.KDF.LogN, s.KDF.R, s.KDF.P)
	default:
		fmt.Fprintf(tw, "kdf\t%s (t=%d, m=%dMB, p=%d)\n", s.KDF.Name, s.KDF.Time, s.KDF.MemoryMB, s.KDF.Parallelism)
	}
	tw.Flush()
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [address]",
		Short: "Show which accounts have a backup",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				row, err := a.svc.Status(args[0])
				if err != nil {
					return err
				}
				if row == nil {
					fmt.Fprintf(out, "%s: not backed up\n", args[0])
					return nil
				}
				fmt.Fprintf(out, "%s: backed up %s (v%d, %s, %s)\n", row.Address, row.UpdatedAt, row.Version, row.Kind, row.KDF)
				return nil
			}

			rows, err := a.svc.Backups()
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No backups recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ADDRESS\tKIND\tKDF\tUPDATED")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Address, r.Kind, r.KDF, r.UpdatedAt)
			}
			return tw.Flush()
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent restores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.svc.History(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No restores recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tADDRESS\tINDEX")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", r.RestoredAt, r.Address, r.AccountIndex)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show (0 for all)")
	return cmd
}

func newForgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <address>",
		Short: "Remove an account from the backup registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Forget(strings.TrimSpace(args[0])); err != nil {
				return userErrorf("%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", args[0])
			return nil
		},
	}
}
