// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package catalog is the system of record for cases and documents. It
// wraps database/sql against postgres, mysql, or sqlite and runs a
// forward-only, idempotent set of embedded migrations on open.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsTrackingTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);
`

// Catalog is the shared handle every repository reads and writes
// through. It is safe for concurrent use: all mutation goes through
// database/sql, which pools and serializes as needed per driver.
type Catalog struct {
	db      *sql.DB
	dialect string
}

// Open wraps db, runs pending migrations, and returns a ready Catalog.
// dialect is one of "postgres", "mysql", "sqlite".
func Open(ctx context.Context, db *sql.DB, dialect string) (*Catalog, error) {
	c := &Catalog{db: db, dialect: dialect}
	if err := c.migrate(ctx); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return c, nil
}

// DB exposes the underlying connection pool for components that need
// raw access (none currently do outside this package).
func (c *Catalog) DB() *sql.DB { return c.db }

func (c *Catalog) migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, migrationsTrackingTable); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := c.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scanning migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	entries, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("listing embedded migrations: %w", err)
	}
	sort.Strings(entries)

	for _, name := range entries {
		version, err := migrationVersion(name)
		if err != nil {
			return fmt.Errorf("parsing migration filename %s: %w", name, err)
		}
		if applied[version] {
			continue
		}

		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration tx for %s: %w", name, err)
		}

		for _, stmt := range splitStatements(string(body)) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("applying migration %s: %w", name, err)
			}
		}

		if _, err := tx.ExecContext(ctx, c.bind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"), version, time.Now().UTC()); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}

		slog.Info("applied migration", "version", version, "file", name)
	}

	return nil
}

func migrationVersion(name string) (int, error) {
	base := name
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	underscore := strings.Index(base, "_")
	if underscore < 0 {
		return 0, fmt.Errorf("migration file %s has no version prefix", name)
	}
	return strconv.Atoi(base[:underscore])
}

// splitStatements splits a .sql file body on statement-terminating
// semicolons. The embedded migrations never use semicolons inside
// string literals, so a naive split is sufficient.
func splitStatements(body string) []string {
	parts := strings.Split(body, ";")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// bind rewrites "?" placeholders to the dialect's native positional
// syntax. Postgres uses $1, $2, ...; mysql and sqlite use "?" directly.
func (c *Catalog) bind(query string) string {
	if c.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
