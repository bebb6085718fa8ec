package cli

import (
	"fmt"

	"golang.org/x/term"
)

// secretPrompt reads secrets from the controlling terminal without echo. It
// returns nil when stdin is not a terminal so the missing variable surfaces
// as an error instead of blocking.
func (r *Runner) secretPrompt() func(name string) (string, error) {
	if r.in == nil {
		return nil
	}
	fd := int(r.in.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return func(name string) (string, error) {
		_, _ = fmt.Fprintf(r.errOut, "%s: ", name)
		b, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(r.errOut)
		if err != nil {
			return "", err
		}
		if len(b) == 0 {
			return "", fmt.Errorf("empty %s", name)
		}
		return string(b), nil
	}
}
