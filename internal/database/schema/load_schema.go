package schema

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

//go:embed *.sql
var fs embed.FS

// Apply runs every embedded SQL file in name order. Statements are written
// with IF NOT EXISTS so boot can re-run them.
func Apply(ctx context.Context, db *sql.DB) error {
	files, err := fs.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read embed dir: %w", err)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		code, err := fs.ReadFile(name)
		if err != nil {
			return err
		}
		for _, stmt := range Statements(string(code)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
		}
		zap.L().Info("schema applied", zap.String("file", name))
	}
	return nil
}

// Statements splits a file on ';' terminators.
func Statements(code string) []string {
	var out []string
	for _, part := range strings.Split(code, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
