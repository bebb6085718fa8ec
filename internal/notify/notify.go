// Package notify prints dispatch notifications to the console.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

type Console struct {
	mu   sync.Mutex
	out  io.Writer
	info *color.Color
	warn *color.Color
	err  *color.Color
}

// NewConsole writes notifications to out. noColor disables ANSI styling for
// every notifier in the process.
func NewConsole(out io.Writer, noColor bool) *Console {
	if noColor {
		color.NoColor = true
	}
	return &Console{
		out:  out,
		info: color.New(color.FgCyan),
		warn: color.New(color.FgYellow, color.Bold),
		err:  color.New(color.FgRed, color.Bold),
	}
}

func (c *Console) Info(message string) {
	c.write(c.info, "info", message)
}

func (c *Console) Warning(message string) {
	c.write(c.warn, "warning", message)
}

func (c *Console) Error(message string) {
	c.write(c.err, "error", message)
}

func (c *Console) write(style *color.Color, label, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", style.Sprintf("%s ›", label), message) //nolint:errcheck
}
