// Package security sanitises caller-supplied identifiers before they are
// embedded in file names and response headers.
package security

import (
	"fmt"
	"strings"
)

const maxFilenameLen = 96

// SanitizeFilename keeps ASCII letters, digits, dot, underscore and dash.
// Every other run of characters becomes one underscore. Leading and
// trailing dots and underscores are trimmed, so "../x" cannot climb out of
// a directory. An empty result is "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		if allowed(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

// ContentDisposition builds a Content-Disposition header value with a
// sanitised filename. disposition is "inline" or "attachment".
func ContentDisposition(disposition, filename string) string {
	return fmt.Sprintf("%s; filename=%q", disposition, SanitizeFilename(filename))
}
