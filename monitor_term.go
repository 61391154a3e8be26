// monitor_term.go - Raw-mode line input for the interactive Monitor CLI.
//
// Adapted from terminal_host.go: the same golang.org/x/term raw-mode setup
// and CR->LF / DEL->BS byte translation, but driving a line editor instead
// of routing bytes into an emulated terminal MMIO device - the Monitor reads
// whole command lines (spec.md §6), not individual keystrokes forwarded to
// guest software.
//
// License: GPLv3 or later

package core

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// TermReader reads command lines from stdin in raw mode, handling backspace
// locally and echoing input itself (raw mode disables the OS's own echo).
type TermReader struct {
	fd       int
	oldState *term.State
	line     []byte
}

// NewTermReader puts stdin into raw mode and returns a TermReader. Call
// Close to restore the terminal before the process exits.
func NewTermReader() (*TermReader, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: monitor: failed to set raw mode: %v", ErrIO, err)
	}
	return &TermReader{fd: fd, oldState: oldState}, nil
}

// Close restores the terminal to its prior state.
func (t *TermReader) Close() error {
	if t.oldState == nil {
		return nil
	}
	err := term.Restore(t.fd, t.oldState)
	t.oldState = nil
	return err
}

// ReadLine blocks reading single bytes from stdin, echoing and editing
// locally, until Enter is pressed, and returns the completed line (without
// the trailing newline).
func (t *TermReader) ReadLine(prompt string) (string, error) {
	fmt.Print(prompt)
	t.line = t.line[:0]
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return "", err
		}
		if n == 0 {
			continue
		}
		b := buf[0]
		if b == '\r' {
			b = '\n'
		}
		if b == 0x7F {
			b = 0x08
		}

		switch b {
		case '\n':
			fmt.Print("\r\n")
			return string(t.line), nil
		case 0x08:
			if len(t.line) > 0 {
				t.line = t.line[:len(t.line)-1]
				fmt.Print("\b \b")
			}
		case 0x03: // Ctrl-C
			return "", fmt.Errorf("%w: interrupted", ErrIO)
		default:
			t.line = append(t.line, b)
			fmt.Printf("%c", b)
		}
	}
}
