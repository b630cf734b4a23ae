package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/KeyRecovery/internal/config"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/logging"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/service"
)

const cliVersion = "0.2.0"

type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

func userErrorf(format string, args ...any) error {
	return userError{msg: fmt.Sprintf(format, args...)}
}

// app carries what every subcommand needs.
type app struct {
	prompt     prompter
	configPath string
	logLevel   string

	cfg *config.Config
	svc *service.Service
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{prompt: newTermPrompter(os.Stdin, os.Stderr)}
	err := newRootCmd(a).ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	handleError(err)
}

func handleError(err error) {
	if err == nil {
		return
	}

	var uerr userError
	if errors.As(err, &uerr) {
		fmt.Fprintln(os.Stderr, uerr.Error())
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "unexpected error: %v\n", err)
	os.Exit(2)
}

// newRootCmd builds a fresh command tree bound to a, so tests can run it in
// isolation.
func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "recovery",
		Short:         "Back up and restore account keys with a password.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.open()
		},
	}
	cmd.Version = cliVersion

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default is <user config dir>/keyrecovery/keyrecovery.yaml or ./keyrecovery.yaml)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", `log level ("debug", "info", "warn", "error")`)

	cmd.AddCommand(
		newGenerateCmd(a),
		newBackupCmd(a),
		newRestoreCmd(a),
		newInspectCmd(a),
		newStatusCmd(a),
		newHistoryCmd(a),
		newForgetCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func (a *app) open() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return userErrorf("%v", err)
	}
	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	if err := logging.SetLevel(level); err != nil {
		return userErrorf("%v", err)
	}

	svc, err := service.New(cfg)
	if err != nil {
		return err
	}
	a.cfg, a.svc = cfg, svc
	return nil
}

func (a *app) close() error {
	if a.svc == nil {
		return nil
	}
	err := a.svc.Close()
	a.svc = nil
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), cliVersion)
		},
	}
}
