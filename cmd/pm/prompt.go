package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// terminalFd returns stdin's descriptor when it is an interactive terminal.
func (a *app) terminalFd() (int, bool) {
	f, ok := a.stdin.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// readLine returns the next input line without its line ending. io.EOF is
// returned only when nothing was read.
func (a *app) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptPassword reads a secret without echo on a terminal, or a plain line
// when input is piped.
func (a *app) promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(a.errOut, prompt)
	if fd, ok := a.terminalFd(); ok {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(a.errOut)
		if err != nil {
			return nil, err
		}
		return pw, nil
	}

	line, err := a.readLine()
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

// promptNewPassword asks twice and insists both entries match.
func (a *app) promptNewPassword(prompt, confirmPrompt string) ([]byte, error) {
	pw, err := a.promptPassword(prompt)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}

	confirm, err := a.promptPassword(confirmPrompt)
	if err != nil {
		zeroBytes(pw)
		return nil, fmt.Errorf("read confirmation password: %w", err)
	}
	defer zeroBytes(confirm)

	if !bytes.Equal(pw, confirm) {
		zeroBytes(pw)
		return nil, a.fail("passwords_mismatch")
	}
	return pw, nil
}

func (a *app) promptLine(prompt string) (string, error) {
	fmt.Fprint(a.errOut, prompt)
	return a.readLine()
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
