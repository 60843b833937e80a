package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// errNotTerminal is returned when a passphrase is needed but stdin isn't a
// terminal.
var errNotTerminal = errors.New("passphrase prompt needs a terminal")

// promptPass prompts the user for a passphrase with the given prefix. With
// confirm set the passphrase must be entered twice, and the prompt repeats
// until both entries match.
func promptPass(prefix string, confirm bool) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errNotTerminal
	}

	for {
		fmt.Fprintf(os.Stderr, "%s: ", prefix)
		pass, err := term.ReadPassword(fd)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(os.Stderr)

		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 {
			continue
		}

		if !confirm {
			return pass, nil
		}

		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		again, err := term.ReadPassword(fd)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(os.Stderr)

		if !bytes.Equal(pass, bytes.TrimSpace(again)) {
			fmt.Fprintln(os.Stderr, "The entered passphrases do not "+
				"match")
			continue
		}

		return pass, nil
	}
}
