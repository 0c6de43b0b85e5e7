package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Ignas/schooltool.lyceum/pkg/config"
)

const (
	applicationName = "lyceum"
	connectTimeout  = 5 * time.Second
)

// DSN renders cfg as a libpq keyword/value connection string. Empty values
// are left out so libpq defaults and PG* environment variables apply.
func DSN(cfg config.DatabaseConfig) string {
	pairs := [][2]string{
		{"host", cfg.Host},
		{"port", portString(cfg.Port)},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"dbname", cfg.Name},
		{"sslmode", cfg.SSLMode},
		{"application_name", applicationName},
		{"connect_timeout", fmt.Sprint(int(connectTimeout.Seconds()))},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		parts = append(parts, p[0]+"="+quote(p[1]))
	}
	return strings.Join(parts, " ")
}

func portString(port int) string {
	if port <= 0 {
		return ""
	}
	return fmt.Sprint(port)
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(v string) string {
	if strings.ContainsAny(v, ` '\`) {
		return "'" + dsnEscaper.Replace(v) + "'"
	}
	return v
}

// NewPostgres opens the calendar store and checks it answers.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s/%s: %w", cfg.Host, cfg.Name, err)
	}
	return db, nil
}
