// Package migrations embeds all SQL migration files so the binary is
// self-contained and can run from any working directory.
package migrations

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

// FS contains all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS

// ForDriver concatenates the migration files for one SQL dialect in
// lexical (version) order. Files are named NNN_name.<driver>.sql.
func ForDriver(driver string) (string, error) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		return "", fmt.Errorf("read migrations: %w", err)
	}

	suffix := "." + driver + ".sql"
	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), suffix) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		raw, err := FS.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("read migration %s: %w", name, err)
		}
		sb.Write(raw)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
