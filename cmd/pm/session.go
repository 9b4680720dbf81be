package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Hussein-Mazeh/SecureVault/auth"
	"github.com/Hussein-Mazeh/SecureVault/internal/service"
)

// sessionLoop runs the interactive prompt of a logged-in session. It returns
// on exit, logout or end of input and always forgets the key.
func (a *app) sessionLoop(ctx context.Context, svc *service.Service) error {
	defer svc.Auth().Logout()

	for {
		fmt.Fprint(a.errOut, "pm> ")
		line, err := a.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(a.errOut)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "help":
			a.say("session_help")
		case "add":
			err = a.sessionAdd(ctx, svc, args)
		case "list", "ls":
			err = a.sessionList(ctx, svc, "")
		case "search", "find":
			err = a.sessionList(ctx, svc, strings.Join(args, " "))
		case "show":
			err = a.sessionShow(ctx, svc, args)
		case "copy":
			err = a.sessionCopy(ctx, svc, args)
		case "update":
			err = a.sessionUpdate(ctx, svc, args)
		case "delete", "rm":
			err = a.sessionDelete(ctx, svc, args)
		case "generate":
			err = a.sessionGenerate(args)
		case "passwd":
			err = a.changePassword(ctx, svc)
		case "logout", "exit", "quit":
			a.say("logged_out")
			return nil
		default:
			fmt.Fprintln(a.errOut, a.tr.T("unknown_command", map[string]any{"Command": cmd}))
		}

		if err != nil {
			a.handleSessionError(err)
		}
	}
}

// handleSessionError reports a failed REPL command without ending the session.
func (a *app) handleSessionError(err error) {
	err = a.classify(err)
	var uerr userError
	if errors.As(err, &uerr) {
		fmt.Fprintln(a.errOut, uerr.Error())
		return
	}
	fmt.Fprintf(a.errOut, "error: %v\n", err)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseID parses flags and a single id argument. The id may come first,
// as in "update 3 --user bob".
func parseID(fs *flag.FlagSet, args []string) (int64, error) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		args = append(append([]string{}, args[1:]...), args[0])
	}
	if err := fs.Parse(args); err != nil {
		return 0, userError{msg: fmt.Sprintf("invalid %s arguments", fs.Name())}
	}
	if fs.NArg() != 1 {
		return 0, userError{msg: fmt.Sprintf("%s requires one credential id", fs.Name())}
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return 0, userError{msg: fmt.Sprintf("invalid credential id %q", fs.Arg(0))}
	}
	return id, nil
}

// readSitePassword prompts for a credential password. An empty answer
// generates one.
func (a *app) readSitePassword() (string, bool, error) {
	secret, err := a.promptPassword(a.tr.T("prompt_site_password"))
	if err != nil {
		return "", false, fmt.Errorf("read secret: %w", err)
	}
	defer zeroBytes(secret)

	if len(secret) == 0 {
		pw, err := auth.GeneratePassword(auth.DefaultGenerateOptions())
		return pw, true, err
	}

	confirm, err := a.promptPassword(a.tr.T("prompt_confirm_site"))
	if err != nil {
		return "", false, fmt.Errorf("read confirmation: %w", err)
	}
	defer zeroBytes(confirm)

	if string(secret) != string(confirm) {
		return "", false, a.fail("passwords_mismatch")
	}
	return string(secret), false, nil
}

func (a *app) sessionAdd(ctx context.Context, svc *service.Service, args []string) error {
	fs := newFlagSet("add")

	var site, user string
	fs.StringVar(&site, "site", "", "website identifier")
	fs.StringVar(&user, "user", "", "username")

	if err := fs.Parse(args); err != nil {
		return userError{msg: "invalid add arguments"}
	}
	if site == "" || user == "" {
		return userError{msg: "add requires --site and --user"}
	}
	if fs.NArg() != 0 {
		return userError{msg: "unexpected positional arguments"}
	}

	pw, generated, err := a.readSitePassword()
	if err != nil {
		return err
	}

	c, err := svc.Vault().Add(ctx, site, user, pw)
	if err != nil {
		return err
	}
	if generated {
		a.say("generated", map[string]any{"Password": pw})
	}
	a.say("credential_added", map[string]any{"ID": c.ID})
	return nil
}

func (a *app) sessionList(ctx context.Context, svc *service.Service, query string) error {
	creds, err := svc.Vault().Search(ctx, query)
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		a.say("vault_empty")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWEBSITE\tUSERNAME\tUPDATED")
	for _, c := range creds {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, c.Website, c.Username, c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (a *app) sessionShow(ctx context.Context, svc *service.Service, args []string) error {
	id, err := parseID(newFlagSet("show"), args)
	if err != nil {
		return err
	}
	c, err := svc.Vault().Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s: %s\n", c.Website, c.Username, c.Password)
	return nil
}

func (a *app) sessionCopy(ctx context.Context, svc *service.Service, args []string) error {
	id, err := parseID(newFlagSet("copy"), args)
	if err != nil {
		return err
	}
	c, err := svc.Vault().Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.copy(c.Password); err != nil {
		return a.fail("clipboard_unavailable", map[string]any{"Error": err.Error()})
	}
	a.say("copied")
	return nil
}

func (a *app) sessionUpdate(ctx context.Context, svc *service.Service, args []string) error {
	fs := newFlagSet("update")

	var site, user string
	var keepPassword bool
	fs.StringVar(&site, "site", "", "new website")
	fs.StringVar(&user, "user", "", "new username")
	fs.BoolVar(&keepPassword, "keep-password", false, "leave the password unchanged")

	id, err := parseID(fs, args)
	if err != nil {
		return err
	}
	if keepPassword && site == "" && user == "" {
		a.say("credential_unchanged")
		return nil
	}

	current, err := svc.Vault().Get(ctx, id)
	if err != nil {
		return err
	}
	if site == "" {
		site = current.Website
	}
	if user == "" {
		user = current.Username
	}

	pw := current.Password
	generated := false
	if !keepPassword {
		pw, generated, err = a.readSitePassword()
		if err != nil {
			return err
		}
	}

	if err := svc.Vault().Update(ctx, id, site, user, pw); err != nil {
		return err
	}
	if generated {
		a.say("generated", map[string]any{"Password": pw})
	}
	a.say("credential_updated", map[string]any{"ID": id})
	return nil
}

func (a *app) sessionDelete(ctx context.Context, svc *service.Service, args []string) error {
	id, err := parseID(newFlagSet("delete"), args)
	if err != nil {
		return err
	}
	if err := svc.Vault().Delete(ctx, id); err != nil {
		return err
	}
	a.say("credential_deleted", map[string]any{"ID": id})
	return nil
}

func (a *app) sessionGenerate(args []string) error {
	fs := newFlagSet("generate")

	var length int
	var noUpper, noLower, noDigits, noSymbols, copyIt bool
	bindGenerateFlags(fs, &length, &noUpper, &noLower, &noDigits, &noSymbols)
	fs.BoolVar(&copyIt, "copy", false, "copy to the clipboard")

	if err := fs.Parse(args); err != nil {
		return userError{msg: "invalid generate arguments"}
	}

	pw, err := auth.GeneratePassword(auth.GenerateOptions{
		Length:  length,
		Upper:   !noUpper,
		Lower:   !noLower,
		Digits:  !noDigits,
		Symbols: !noSymbols,
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
}
