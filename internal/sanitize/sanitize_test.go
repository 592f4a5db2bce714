package sanitize

import (
	"strings"
	"testing"
)

func TestTruncateUTF8(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		maxBytes int
		want     string
	}{
		{"ascii short", "hello", 10, "hello"},
		{"ascii exact", "hello", 5, "hello"},
		{"ascii truncate", "hello world", 5, "hello"},
		{"utf8 no split", "héllo", 6, "héllo"},
		{"utf8 mid-char", "héllo", 2, "h"},
		{"empty", "", 10, ""},
		{"zero max", "hello", 0, ""},
		{"negative max", "hello", -1, ""},
		{"invalid utf8 prefix", string([]byte{0xff, 'a', 'b'}), 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateUTF8(tt.input, tt.maxBytes)
			if got != tt.want {
				t.Errorf("TruncateUTF8(%q, %d) = %q, want %q", tt.input, tt.maxBytes, got, tt.want)
			}
		})
	}
}

func TestStripControlChars(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "unable to load config info", "unable to load config info"},
		{"ansi color", "\x1b[31merror\x1b[0m: bad suffix", "error: bad suffix"},
		{"osc title", "\x1b]0;slaptest\x07checking", "checking"},
		{"keeps newline and tab", "line1\n\tline2", "line1\n\tline2"},
		{"drops carriage return", "progress\rdone", "progressdone"},
		{"drops bell", "ding\x07dong", "dingdong"},
		{"unterminated csi at end", "warn\x1b[31", "warn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripControlChars(tt.input)
			if got != tt.want {
				t.Errorf("StripControlChars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDiagnostic(t *testing.T) {
	t.Parallel()

	got := Diagnostic([]byte("  \x1b[1mslaptest: bad config\x1b[0m  \n"))
	if got != "slaptest: bad config" {
		t.Errorf("Diagnostic = %q, want %q", got, "slaptest: bad config")
	}

	long := Diagnostic([]byte(strings.Repeat("x", DiagnosticMaxBytes*2)))
	if len(long) != DiagnosticMaxBytes {
		t.Errorf("Diagnostic length = %d, want cap %d", len(long), DiagnosticMaxBytes)
	}
}
