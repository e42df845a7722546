// Package redact provides helpers to avoid exposing secret values in logs.
package redact

import "strings"

const redactedValue = "***REDACTED***"

// ConnectionString replaces the password value in a key=value DSN
// ("host=... password=... dbname=...") so the string is safe to log at
// startup. Keys other than password pass through untouched.
func ConnectionString(dsn string) string {
	if dsn == "" {
		return dsn
	}
	fields := strings.Fields(dsn)
	for i, field := range fields {
		if strings.HasPrefix(field, "password=") {
			fields[i] = "password=" + redactedValue
		}
	}
	return strings.Join(fields, " ")
}
