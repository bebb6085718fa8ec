package tmuxfmt

import "strings"

// FieldSeparator delimits fields in tmux -F formats built by ttguide.
// ASCII Unit Separator never appears in session or window names.
const FieldSeparator = "\x1f"

// Join builds a tmux format string with the canonical delimiter.
func Join(fields ...string) string {
	return strings.Join(fields, FieldSeparator)
}

// SplitLine splits a formatted line. Some tmux builds print the separator as
// a literal tab or an escaped "\t", so both are accepted.
func SplitLine(line string, maxParts int) []string {
	if maxParts <= 0 {
		return nil
	}
	switch {
	case strings.Contains(line, FieldSeparator):
		return strings.SplitN(line, FieldSeparator, maxParts)
	case strings.Contains(line, "\t"):
		return strings.SplitN(line, "\t", maxParts)
	case strings.Contains(line, `\t`):
		return strings.SplitN(line, `\t`, maxParts)
	}
	return []string{line}
}
