package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/SecureVault/auth"
	"github.com/Hussein-Mazeh/SecureVault/internal/config"
	"github.com/Hussein-Mazeh/SecureVault/internal/i18n"
	"github.com/Hussein-Mazeh/SecureVault/internal/logging"
	"github.com/Hussein-Mazeh/SecureVault/internal/service"
	"github.com/Hussein-Mazeh/SecureVault/internal/vault"
)

var version = "dev" // set by the linker

type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

// app carries everything a command needs. Tests build one around in-memory
// streams.
type app struct {
	stdin  io.Reader
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	configFile string
	cfg        config.Config
	log        logging.Logger
	tr         *i18n.Translator

	copy   func(string) error
	breach *auth.BreachChecker
}

func newApp(stdin io.Reader, out, errOut io.Writer) *app {
	return &app{
		stdin:  stdin,
		in:     bufio.NewReader(stdin),
		out:    out,
		errOut: errOut,
		copy:   clipboard.WriteAll,
		breach: auth.NewBreachChecker(),
	}
}

func main() {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	os.Exit(a.run(os.Args[1:]))
}

// run executes one command line and returns the process exit code:
// 0 on success, 1 for user errors and 2 for anything unexpected.
func (a *app) run(args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}

	err = a.classify(err)
	var uerr userError
	if errors.As(err, &uerr) {
		fmt.Fprintln(a.errOut, uerr.Error())
		return 1
	}

	fmt.Fprintf(a.errOut, "unexpected error: %v\n", err)
	return 2
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pm",
		Short:         "A local, single-user password vault",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default <dir>/config.yaml)")
	cmd.PersistentFlags().String("dir", "", "vault directory (default ~/.securevault)")
	cmd.PersistentFlags().String("lang", "en", `message language ("en", "es")`)
	cmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newInitCmd(a),
		newRegisterCmd(a),
		newLoginCmd(a),
		newUnlockCmd(a),
		newPasswdCmd(a),
		newResetCmd(a),
		newStatusCmd(a),
		newStrengthCmd(a),
		newGenerateCmd(a),
		newRecoveryHashCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd, a.configFile)
	if err != nil {
		return userError{msg: err.Error()}
	}
	a.cfg = cfg

	log, err := logging.New(a.errOut, cfg.LogLevel)
	if err != nil {
		return userError{msg: err.Error()}
	}
	a.log = log.With("cmd", cmd.Name())

	tr, err := i18n.New(cfg.Language)
	if err != nil {
		return err
	}
	a.tr = tr
	return nil
}

func (a *app) openService(ctx context.Context) (*service.Service, error) {
	svc, err := service.Open(ctx, a.cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	return svc, nil
}

// say prints a translated message on stdout.
func (a *app) say(id string, data ...map[string]any) {
	fmt.Fprintln(a.out, a.tr.T(id, data...))
}

func (a *app) fail(id string, data ...map[string]any) error {
	return userError{msg: a.tr.T(id, data...)}
}

// classify turns expected domain errors into translated user errors.
func (a *app) classify(err error) error {
	if a.tr == nil {
		return err
	}

	var weak *auth.WeakPasswordError
	switch {
	case errors.As(err, &weak):
		lines := []string{a.tr.T("weak_password")}
		for _, c := range weak.Strength.Feedback {
			lines = append(lines, "  - "+a.tr.T("criterion_"+string(c)))
		}
		return userError{msg: strings.Join(lines, "\n")}
	case errors.Is(err, auth.ErrUserAlreadyExists):
		return a.fail("user_exists")
	case errors.Is(err, auth.ErrNoUserRegistered):
		return a.fail("no_user")
	case errors.Is(err, auth.ErrAccountLocked):
		return a.fail("account_locked")
	case errors.Is(err, auth.ErrIncorrectPassword):
		return a.fail("incorrect_password")
	case errors.Is(err, vault.ErrNotFound):
		return a.fail("credential_not_found")
	case errors.Is(err, vault.ErrInvalidCredential):
		return a.fail("credential_invalid")
	}
	return err
}
