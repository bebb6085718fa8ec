package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleWritesLabelledLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)

	c.Info("detect-hardware sent to Tenstorrent terminal")
	c.Warning("server not reachable")
	c.Error("E_TERMINAL_UNAVAILABLE")

	assert.Equal(t,
		"info › detect-hardware sent to Tenstorrent terminal\n"+
			"warning › server not reachable\n"+
			"error › E_TERMINAL_UNAVAILABLE\n",
		buf.String())
}
