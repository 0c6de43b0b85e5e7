// Package migrations embeds the database schema and applies it with goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var FS embed.FS

const dir = "sql"

var gooseRun = goose.Run // mockable

// Run executes a goose command ("up", "down", "status", "version", ...)
// against db using the embedded migrations.
func Run(db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := gooseRun(command, db, dir, args...); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}

// Up applies all pending migrations.
func Up(db *sql.DB) error {
	return Run(db, "up")
}
