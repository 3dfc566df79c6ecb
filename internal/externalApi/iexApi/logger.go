package iexApi

import (
	"fmt"
	"log/slog"
	"strings"
)

const redacted = "REDACTED"

// tokenRedactingLogger routes resty's own logging into slog with the api token masked.
// Debug dumps contain the request URI, which carries the token as a query param.
type tokenRedactingLogger struct {
	token string
}

func (l tokenRedactingLogger) redact(s string) string {
	if l.token == "" {
		return s
	}
	return strings.ReplaceAll(s, l.token, redacted)
}

func (l tokenRedactingLogger) Errorf(format string, v ...interface{}) {
	slog.Error(l.redact(fmt.Sprintf(format, v...)), slog.String("op", "resty"))
}

func (l tokenRedactingLogger) Warnf(format string, v ...interface{}) {
	slog.Warn(l.redact(fmt.Sprintf(format, v...)), slog.String("op", "resty"))
}

func (l tokenRedactingLogger) Debugf(format string, v ...interface{}) {
	slog.Debug(l.redact(fmt.Sprintf(format, v...)), slog.String("op", "resty"))
}
