// Package logging builds the zerolog logger used across logiri and keeps
// credentials (Google refresh tokens, API keys, bearer tokens) out of log
// output.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue replaces sensitive data.
const RedactedValue = "[REDACTED]"

type pattern struct {
	re   *regexp.Regexp
	repl string
}

var sensitivePatterns = []pattern{
	// Anthropic keys.
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]+`), RedactedValue},
	// OpenAI keys.
	{regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`), RedactedValue},
	// Google API keys.
	{regexp.MustCompile(`AIza[0-9A-Za-z_-]{30,}`), RedactedValue},
	// Google OAuth refresh and access tokens.
	{regexp.MustCompile(`1//[0-9A-Za-z_-]{20,}`), RedactedValue},
	{regexp.MustCompile(`ya29\.[0-9A-Za-z_.-]+`), RedactedValue},
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`), RedactedValue},
	// key=... in query strings (SEMrush, Gemini REST). The prefix is kept.
	{regexp.MustCompile(`(?i)([?&](?:key|api_key)=)[^&\s"]+`), "${1}" + RedactedValue},
	{regexp.MustCompile(`(?i)(secret|password|refresh_token|developer[-_]token)\s*[:=]\s*["']?[^\s"',]{8,}["']?`), RedactedValue},
}

var sensitiveFieldNames = []string{
	"api_key",
	"apikey",
	"secret",
	"password",
	"token",
	"authorization",
	"credential",
}

// SensitiveDataHook flags events whose message looks like it carries secrets.
// Zerolog cannot rewrite a message from a hook; the file writer does the
// actual redaction.
type SensitiveDataHook struct{}

// NewSensitiveDataHook returns the hook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements zerolog.Hook.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// ContainsSensitiveData reports whether s matches any sensitive pattern.
func ContainsSensitiveData(s string) bool {
	for _, p := range sensitivePatterns {
		if p.re.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces every sensitive match in value.
func FilterSensitiveValue(value string) string {
	out := value
	for _, p := range sensitivePatterns {
		out = p.re.ReplaceAllString(out, p.repl)
	}
	return out
}

// SafeValue returns value, or RedactedValue when field names a secret.
//
//	log.Debug().Str("client_secret", logging.SafeValue("client_secret", v)).Msg("token request")
func SafeValue(field, value string) string {
	lower := strings.ToLower(field)
	for _, s := range sensitiveFieldNames {
		if strings.Contains(lower, s) {
			return RedactedValue
		}
	}
	return FilterSensitiveValue(value)
}

// FilteringWriter redacts sensitive data before it reaches w.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter wraps w.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer. It reports len(p) so callers never see a short write.
func (fw *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := fw.w.Write([]byte(FilterSensitiveValue(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
