package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/Hussein-Mazeh/SecureVault/auth"
	"github.com/Hussein-Mazeh/SecureVault/internal/config"
	"github.com/Hussein-Mazeh/SecureVault/internal/service"
	"github.com/Hussein-Mazeh/SecureVault/store"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the vault directory, database and config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wrote, err := service.Provision(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			if wrote {
				a.say("vault_initialized", map[string]any{"Dir": a.cfg.Dir})
			} else {
				a.say("vault_exists", map[string]any{"Dir": a.cfg.Dir})
			}
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Set the master password for a new vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			st, err := svc.Auth().Status(cmd.Context())
			if err != nil {
				return err
			}
			if st.Registered {
				return auth.ErrUserAlreadyExists
			}

			pw, err := a.promptNewPassword(a.tr.T("prompt_master"), a.tr.T("prompt_confirm"))
			if err != nil {
				return err
			}
			defer zeroBytes(pw)

			if err := svc.Auth().Register(cmd.Context(), string(pw)); err != nil {
				return err
			}
			a.printStrength(auth.CheckStrength(string(pw)))
			a.say("registered")
			return nil
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and open an interactive vault session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			pw, err := a.promptPassword(a.tr.T("prompt_master"))
			if err != nil {
				return fmt.Errorf("read master password: %w", err)
			}
			res, err := svc.Auth().Login(cmd.Context(), string(pw))
			zeroBytes(pw)
			if err != nil {
				return err
			}
			if !res.OK {
				if res.Locked {
					return a.fail("account_locked")
				}
				return a.fail("login_failed", map[string]any{"Left": res.AttemptsLeft})
			}

			a.say("login_ok")
			return a.sessionLoop(cmd.Context(), svc)
		},
	}
}

func newUnlockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Clear a lockout with the master password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			pw, err := a.promptPassword(a.tr.T("prompt_master"))
			if err != nil {
				return fmt.Errorf("read master password: %w", err)
			}
			ok, err := svc.Auth().Unlock(cmd.Context(), string(pw))
			zeroBytes(pw)
			if err != nil {
				return err
			}
			if !ok {
				return a.fail("unlock_failed")
			}
			a.say("unlocked")
			return nil
		},
	}
}

func newPasswdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the master password and re-encrypt the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			return a.changePassword(cmd.Context(), svc)
		},
	}
}

func (a *app) changePassword(ctx context.Context, svc *service.Service) error {
	current, err := a.promptPassword(a.tr.T("prompt_current"))
	if err != nil {
		return fmt.Errorf("read current master password: %w", err)
	}
	defer zeroBytes(current)

	next, err := a.promptNewPassword(a.tr.T("prompt_new"), a.tr.T("prompt_confirm"))
	if err != nil {
		return err
	}
	defer zeroBytes(next)

	if err := svc.Auth().ChangeMasterPassword(ctx, string(current), string(next)); err != nil {
		return err
	}
	a.say("password_changed")
	return nil
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase every credential and set a new master password (needs the recovery code)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.RecoveryCodeHash == "" {
				return a.fail("reset_not_configured")
			}

			code, err := a.promptPassword(a.tr.T("prompt_recovery"))
			if err != nil {
				return fmt.Errorf("read recovery code: %w", err)
			}
			err = bcrypt.CompareHashAndPassword([]byte(a.cfg.RecoveryCodeHash), code)
			zeroBytes(code)
			if err != nil {
				if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
					a.log.Warn(cmd.Context(), "recovery code rejected")
					return a.fail("recovery_invalid")
				}
				return fmt.Errorf("check recovery code: %w", err)
			}

			if !yes {
				answer, err := a.promptLine(a.tr.T("prompt_confirm_reset"))
				if err != nil {
					return fmt.Errorf("read confirmation: %w", err)
				}
				if strings.TrimSpace(answer) != "RESET" {
					return a.fail("reset_aborted")
				}
			}

			next, err := a.promptNewPassword(a.tr.T("prompt_new"), a.tr.T("prompt_confirm"))
			if err != nil {
				return err
			}
			defer zeroBytes(next)

			svc, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.Auth().Reset(cmd.Context(), string(next)); err != nil {
				return err
			}
			a.say("reset_done")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the typed confirmation")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show registration, lockout and vault state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			st, err := svc.Auth().Status(cmd.Context())
			if err != nil {
				return err
			}
			count, err := svc.Vault().Count(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "dir:          %s\n", a.cfg.Dir)
			fmt.Fprintf(a.out, "registered:   %t\n", st.Registered)
			fmt.Fprintf(a.out, "locked:       %t\n", st.Locked)
			fmt.Fprintf(a.out, "attempts:     %d/%d\n", st.LoginAttempts, st.MaxAttempts)
			if st.Registered {
				fmt.Fprintf(a.out, "kdf:          %s\n", st.KDF)
			}
			fmt.Fprintf(a.out, "cipher:       %s\n", a.cfg.Suite())
			fmt.Fprintf(a.out, "credentials:  %d\n", count)
			fmt.Fprintf(a.out, "recovery:     %t\n", a.cfg.RecoveryCodeHash != "")
			return nil
		},
	}
}

func newStrengthCmd(a *app) *cobra.Command {
	var hibp bool
	cmd := &cobra.Command{
		Use:   "strength [password]",
		Short: "Score a password against the master password policy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				b, err := a.promptPassword(a.tr.T("prompt_master"))
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				pw = string(b)
				zeroBytes(b)
			}

			a.printStrength(auth.CheckStrength(pw))

			if hibp {
				res, err := a.breach.Check(cmd.Context(), pw)
				switch {
				case err != nil:
					a.say("breach_unavailable", map[string]any{"Error": err.Error()})
				case res.Found:
					a.say("breach_found", map[string]any{"Count": res.Count})
				default:
					a.say("breach_clean")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&hibp, "hibp", false, "check Have I Been Pwned (sends 5 hex chars of the SHA-1)")
	return cmd
}

func (a *app) printStrength(s auth.Strength) {
	a.say("strength_report", map[string]any{
		"Label": a.tr.T("label_" + string(s.Label)),
		"Score": s.Score,
		"Max":   auth.MaxScore,
	})
	for _, c := range s.Feedback {
		fmt.Fprintln(a.out, "  - "+a.tr.T("criterion_"+string(c)))
	}
	if s.Estimate.CrackTime != "" {
		a.say("strength_estimate", map[string]any{
			"CrackTime": s.Estimate.CrackTime,
			"Entropy":   fmt.Sprintf("%.1f", s.Estimate.Entropy),
		})
	}
}

func bindGenerateFlags(cmd interface {
	IntVar(*int, string, int, string)
	BoolVar(*bool, string, bool, string)
}, length *int, noUpper, noLower, noDigits, noSymbols *bool) {
	cmd.IntVar(length, "length", auth.DefaultGenerateLength, "password length")
	cmd.BoolVar(noUpper, "no-upper", false, "exclude uppercase letters")
	cmd.BoolVar(noLower, "no-lower", false, "exclude lowercase letters")
	cmd.BoolVar(noDigits, "no-digits", false, "exclude digits")
	cmd.BoolVar(noSymbols, "no-symbols", false, "exclude symbols")
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		length                               int
		noUpper, noLower, noDigits, noSymbol bool
		copyIt                               bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := auth.GeneratePassword(auth.GenerateOptions{
				Length:  length,
				Upper:   !noUpper,
				Lower:   !noLower,
				Digits:  !noDigits,
				Symbols: !noSymbol,
			})
			if err != nil {
				return userError{msg: err.Error()}
			}
			if copyIt {
				if err := a.copy(pw); err != nil {
					return a.fail("clipboard_unavailable", map[string]any{"Error": err.Error()})
				}
				a.say("copied")
				return nil
			}
			fmt.Fprintln(a.out, pw)
			return nil
		},
	}
	bindGenerateFlags(cmd.Flags(), &length, &noUpper, &noLower, &noDigits, &noSymbol)
	cmd.Flags().BoolVar(&copyIt, "copy", false, "copy to the clipboard instead of printing")
	return cmd
}

func newRecoveryHashCmd(a *app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "recovery-hash",
		Short: "Hash a recovery code for the reset command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := a.promptNewPassword(a.tr.T("prompt_recovery"), a.tr.T("prompt_recovery"))
			if err != nil {
				return err
			}
			defer zeroBytes(code)
			if len(code) == 0 {
				return userError{msg: "recovery code cannot be empty"}
			}

			hash, err := bcrypt.GenerateFromPassword(code, bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash recovery code: %w", err)
			}

			if !write {
				fmt.Fprintln(a.out, string(hash))
				return nil
			}

			cfg := a.cfg
			cfg.RecoveryCodeHash = string(hash)
			path := a.configFile
			if path == "" {
				path = store.Paths{Dir: cfg.Dir}.ConfigPath()
			}
			if err := config.Write(path, cfg); err != nil {
				return err
			}
			a.say("recovery_saved", map[string]any{"Path": path})
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "store the hash in the config file")
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.out, version)
			return nil
		},
	}
}
