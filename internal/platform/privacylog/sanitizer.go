// Package privacylog scrubs secrets out of structured log fields before they
// reach an encoder.
package privacylog

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redactedValue = "[REDACTED]"

var (
	sensitiveKeyParts = []string{"token", "secret", "password", "passphrase", "authorization", "api_key", "apikey"}
	uriKeys           = map[string]struct{}{
		"source_uri": {},
		"uri":        {},
		"url":        {},
	}
	embeddedURI = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+.-]*://[^\s"'<>‹›]*[^\s"'<>‹›:;,.)]`)
)

type SanitizingCore struct {
	zapcore.Core
}

func WrapCore(next zapcore.Core) zapcore.Core {
	if next == nil {
		return nil
	}
	return &SanitizingCore{Core: next}
}

func (c *SanitizingCore) With(fields []zapcore.Field) zapcore.Core {
	return &SanitizingCore{Core: c.Core.With(SanitizeFields(fields))}
}

func (c *SanitizingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *SanitizingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, SanitizeFields(fields))
}

func SanitizeFields(fields []zapcore.Field) []zapcore.Field {
	if len(fields) == 0 {
		return fields
	}
	out := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, SanitizeField(f))
	}
	return out
}

func SanitizeField(f zapcore.Field) zapcore.Field {
	lowerKey := strings.ToLower(strings.TrimSpace(f.Key))
	if isSensitiveKey(lowerKey) {
		return zap.String(f.Key, redactedValue)
	}
	if _, ok := uriKeys[lowerKey]; ok && f.Type == zapcore.StringType {
		return zap.String(f.Key, ScrubURI(f.String))
	}
	if f.Type == zapcore.ErrorType {
		if err, ok := f.Interface.(error); ok && err != nil {
			return zap.NamedError(f.Key, scrubbedError{err: err})
		}
	}
	return f
}

// ScrubText runs ScrubURI over every URI embedded in free text, such as an
// error message naming the file it failed to download.
func ScrubText(s string) string {
	if !strings.Contains(s, "://") {
		return s
	}
	return embeddedURI.ReplaceAllStringFunc(s, ScrubURI)
}

// scrubbedError renders both the message and the verbose form zap logs
// under errorVerbose with embedded URIs scrubbed.
type scrubbedError struct {
	err error
}

func (e scrubbedError) Error() string { return ScrubText(e.err.Error()) }

func (e scrubbedError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		_, _ = fmt.Fprint(s, ScrubText(fmt.Sprintf("%+v", e.err)))
		return
	}
	_, _ = fmt.Fprint(s, e.Error())
}

// ScrubURI drops credentials, query and fragment from a URI. Values without
// a scheme are returned unchanged; unparsable URIs lose everything after the
// scheme.
func ScrubURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if scheme, _, ok := strings.Cut(raw, "://"); ok {
			return scheme + "://" + redactedValue
		}
		return raw
	}
	if u.Scheme == "" {
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
