// Package sanitize cleans raw subprocess and server output before it is
// embedded in error messages or log lines.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DiagnosticMaxBytes caps how much subprocess output Diagnostic keeps.
const DiagnosticMaxBytes = 2048

// Diagnostic turns captured subprocess output into a string safe to embed
// in an error or log line: control sequences stripped, surrounding
// whitespace trimmed, length capped without splitting UTF-8 runes.
func Diagnostic(out []byte) string {
	return TruncateUTF8(strings.TrimSpace(StripControlChars(string(out))), DiagnosticMaxBytes)
}

// TruncateUTF8 truncates s to at most maxBytes bytes without splitting UTF-8 runes.
func TruncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	truncated := s[:maxBytes]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated
}

// StripControlChars removes ANSI escape sequences and non-printable control
// characters (except newline and tab) from s. openssl and slaptest both
// colorize or otherwise decorate their output on some builds.
func StripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		// Strip ANSI escape sequences: ESC [ ... final byte (0x40-0x7E).
		// Cap the scan at 64 bytes so a malformed CSI sequence that never
		// terminates cannot swallow the rest of the output.
		if i+1 < len(s) && s[i] == '\x1b' && s[i+1] == '[' {
			j := i + 2
			maxJ := j + 64
			if maxJ > len(s) {
				maxJ = len(s)
			}
			for j < maxJ && (s[j] < 0x40 || s[j] > 0x7E) {
				j++
			}
			if j < len(s) && s[j] >= 0x40 && s[j] <= 0x7E {
				j++ // skip final byte
			}
			i = j
			continue
		}
		// Strip OSC sequences: ESC ] ... ST (ESC \ or BEL).
		if i+1 < len(s) && s[i] == '\x1b' && s[i+1] == ']' {
			j := i + 2
			for j < len(s) {
				if s[j] == '\x07' { // BEL terminator
					j++
					break
				}
				if j+1 < len(s) && s[j] == '\x1b' && s[j+1] == '\\' { // ST terminator
					j += 2
					break
				}
				j++
			}
			i = j
			continue
		}
		// Strip other ESC-initiated sequences (2-byte).
		if s[i] == '\x1b' {
			i += 2
			if i > len(s) {
				i = len(s)
			}
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		// Keep newline and tab, which carry structure in multi-line
		// diagnostics; drop every other control character.
		if r == '\n' || r == '\t' || (r >= ' ' && !unicode.IsControl(r)) {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}
