package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// DefaultEnv is the variable consulted before prompting for a keystore
// passphrase.
const DefaultEnv = "DEXTHER_KEYSTORE_PASSPHRASE"

// Source lazily resolves a keystore passphrase from an environment variable or
// by prompting on the terminal. The first result, success or failure, is
// cached.
type Source struct {
	envVar string
	prompt string
	stderr io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a source that checks envVar before prompting with the
// given label. An empty label falls back to "keystore passphrase".
func NewSource(envVar, label string) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "keystore passphrase"
	}
	return &Source{envVar: strings.TrimSpace(envVar), prompt: label, stderr: os.Stderr}
}

// Get returns the cached passphrase or resolves it on first use. Whitespace
// only values are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			if s.envVar != "" {
				s.err = fmt.Errorf("%s required; set %s or run interactively", s.prompt, s.envVar)
			} else {
				s.err = fmt.Errorf("%s required and no terminal available", s.prompt)
			}
			return
		}

		fmt.Fprintf(s.stderr, "Enter %s: ", s.prompt)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(s.stderr)
		if err != nil {
			s.err = fmt.Errorf("read passphrase: %w", err)
			return
		}
		if strings.TrimSpace(string(raw)) == "" {
			s.err = errors.New(s.prompt + " cannot be empty")
			return
		}
		s.value = string(raw)
	})

	return s.value, s.err
}
