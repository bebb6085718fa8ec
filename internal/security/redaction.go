// Package security scrubs secret-looking values from command text before it
// is logged or written to dispatch history.
package security

import (
	"regexp"
	"strings"
)

const marker = "[REDACTED]"

var (
	secretKeyExpr     = `(?:password|passwd|secret|api[_-]?key|[a-z0-9._-]*token[a-z0-9._-]*)`
	assignmentPattern = regexp.MustCompile(`(?i)(` + secretKeyExpr + `)\s*[:=]\s*(?:"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|[^\s"';&|]+)`)
	flagPattern       = regexp.MustCompile(`(?i)(--` + secretKeyExpr + `)(?:\s+|=)(?:"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|[^\s"';&|]+)`)
	jsonSecretPattern = regexp.MustCompile(`(?i)("` + secretKeyExpr + `"\s*:\s*)"(?:[^"\\]|\\.)*"`)
	authHeaderPattern = regexp.MustCompile(`(?i)(authorization\s*:\s*)[^'"\r\n]+`)
	bearerPattern     = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`)
	hfTokenPattern    = regexp.MustCompile(`\bhf_[A-Za-z0-9]{20,}\b`)
	sshUserPattern    = regexp.MustCompile(`(?i)(ssh://)[^\s/@]+@`)
)

// RedactCommand masks values that look like credentials. References to
// shell variables such as "$HF_TOKEN" are left alone since they carry no
// secret themselves.
func RedactCommand(input string) string {
	if input == "" {
		return ""
	}
	out := hfTokenPattern.ReplaceAllString(input, marker)
	out = jsonSecretPattern.ReplaceAllString(out, `${1}"`+marker+`"`)
	out = assignmentPattern.ReplaceAllStringFunc(out, func(match string) string {
		idx := strings.IndexAny(match, ":=")
		if idx < 0 || isReference(match[idx+1:]) {
			return match
		}
		return match[:idx+1] + marker
	})
	out = flagPattern.ReplaceAllStringFunc(out, func(match string) string {
		idx := strings.IndexAny(match, " \t=")
		if idx < 0 || isReference(match[idx+1:]) {
			return match
		}
		return match[:idx+1] + marker
	})
	out = authHeaderPattern.ReplaceAllString(out, `${1}`+marker)
	out = bearerPattern.ReplaceAllString(out, "Bearer "+marker)
	out = sshUserPattern.ReplaceAllString(out, `${1}`+marker+`@`)
	return out
}

func isReference(value string) bool {
	v := strings.Trim(strings.TrimSpace(value), `"`)
	return strings.HasPrefix(v, "$") || v == marker || v == "'"+marker+"'"
}
