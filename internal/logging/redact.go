package logging

import (
	"regexp"
	"strings"
)

// Account configuration keys and field names whose values must never reach
// a log file or the terminal.
var sensitiveFields = []string{
	"mail_pw",
	"send_pw",
	"password",
	"passwd",
	"secret",
	"token",
	"oauth",
	"private_key",
	"privatekey",
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`(?i)(pw|password|token|secret)[=:]["']?([^\s"']{4,})["']?`),
	regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces secret-looking substrings.
func Redact(s string) string {
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// RedactConfigValue hides value when key names a credential.
func RedactConfigValue(key, value string) string {
	if value == "" {
		return value
	}
	if IsSensitiveField(key) {
		return RedactedValue
	}
	return Redact(value)
}

// RedactParams returns a copy of JSON-RPC positional params with credentials
// hidden. A string param that names a sensitive config key redacts the
// param that follows it, matching the set_config(account, key, value) shape.
func RedactParams(params []any) []any {
	out := make([]any, len(params))
	redactNext := false
	for i, p := range params {
		str, isStr := p.(string)
		switch {
		case redactNext && isStr && str != "":
			out[i] = RedactedValue
		case isStr:
			out[i] = Redact(str)
		default:
			out[i] = p
		}
		redactNext = isStr && IsSensitiveField(str)
	}
	return out
}

// IsSensitiveField checks if a field name is considered sensitive.
func IsSensitiveField(name string) bool {
	lowerName := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lowerName, field) {
			return true
		}
	}
	return false
}
