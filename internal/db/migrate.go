package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	stdfs "io/fs"
	"regexp"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

//go:embed migrations
var migrationsFS embed.FS

type migration struct {
	version  int
	name     string
	upFile   string // path inside embedded FS
	downFile string // path inside embedded FS
}

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.(up|down)\.sql$`)

// migrationDir picks the migration set matching the dialect of an open DB.
func migrationDir(bdb *bun.DB) string {
	switch bdb.Dialect().Name() {
	case dialect.PG:
		return "postgres"
	case dialect.MySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

// Migrate applies every pending migration for the DB's dialect.
func Migrate(ctx context.Context, bdb *bun.DB) error {
	if bdb == nil {
		return errors.New("nil db")
	}
	return applyMigrations(ctx, bdb, migrationDir(bdb))
}

// RollbackLast rolls back the most recently applied migration, if its down script exists.
func RollbackLast(ctx context.Context, bdb *bun.DB) error {
	if bdb == nil {
		return errors.New("nil db")
	}
	if err := ensureMigrationsTable(ctx, bdb); err != nil {
		return err
	}
	var version int
	err := bdb.QueryRowContext(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // nothing to rollback
	} else if err != nil {
		return err
	}
	dir := migrationDir(bdb)
	migs, err := loadMigrations(dir)
	if err != nil {
		return err
	}
	m, ok := migs[version]
	if !ok || m.downFile == "" {
		return fmt.Errorf("no down migration found for version %d", version)
	}
	text, err := migrationsFS.ReadFile(m.downFile)
	if err != nil {
		return err
	}
	return runScript(ctx, bdb, string(text), `DELETE FROM schema_migrations WHERE version = ?`, version)
}

// AppliedVersions returns the applied migration versions in ascending order.
func AppliedVersions(ctx context.Context, bdb *bun.DB) ([]int, error) {
	got, err := appliedVersions(ctx, bdb)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(got))
	for v := range got {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

func loadMigrations(dir string) (map[int]migration, error) {
	entries := map[int]migration{}
	root := "migrations/" + dir
	list, err := stdfs.ReadDir(migrationsFS, root)
	if err != nil {
		// if directory missing, just return empty set
		return entries, nil
	}
	for _, de := range list {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		m := migFileRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		verStr, migName, kind := m[1], m[2], m[3]
		var ver int
		if _, err := fmt.Sscanf(verStr, "%04d", &ver); err != nil {
			continue
		}
		item := entries[ver]
		item.version = ver
		item.name = migName
		p := root + "/" + name
		if kind == "up" {
			item.upFile = p
		} else {
			item.downFile = p
		}
		entries[ver] = item
	}
	return entries, nil
}

func ensureMigrationsTable(ctx context.Context, bdb *bun.DB) error {
	_, err := bdb.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	return err
}

func appliedVersions(ctx context.Context, bdb *bun.DB) (map[int]bool, error) {
	if err := ensureMigrationsTable(ctx, bdb); err != nil {
		return nil, err
	}
	rows, err := bdb.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	got := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		got[v] = true
	}
	return got, rows.Err()
}

func applyMigrations(ctx context.Context, bdb *bun.DB, dir string) error {
	migs, err := loadMigrations(dir)
	if err != nil {
		return err
	}
	if len(migs) == 0 {
		// nothing to do
		return nil
	}
	applied, err := appliedVersions(ctx, bdb)
	if err != nil {
		return err
	}
	// order versions
	versions := make([]int, 0, len(migs))
	for v := range migs {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	for _, v := range versions {
		if applied[v] {
			continue
		}
		m := migs[v]
		if strings.TrimSpace(m.upFile) == "" {
			return fmt.Errorf("missing up migration for version %04d", v)
		}
		text, err := migrationsFS.ReadFile(m.upFile)
		if err != nil {
			return err
		}
		if err := runScript(ctx, bdb, string(text), `INSERT INTO schema_migrations(version) VALUES (?)`, v); err != nil {
			return fmt.Errorf("migration %04d failed: %w", v, err)
		}
	}
	return nil
}

// runScript executes every statement of a migration script followed by the
// bookkeeping statement. Scripts starting with "-- NO_TX" run outside a transaction.
func runScript(ctx context.Context, bdb *bun.DB, text, bookkeeping string, version int) error {
	stmts := splitStatements(text)
	if strings.HasPrefix(strings.TrimSpace(text), "-- NO_TX") {
		for _, s := range stmts {
			if _, err := bdb.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		_, err := bdb.ExecContext(ctx, bookkeeping, version)
		return err
	}
	return bdb.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, bookkeeping, version)
		return err
	})
}

// splitStatements cuts a script on ';' and drops chunks holding only comments.
// Migration files must not put semicolons inside literals or comments.
func splitStatements(text string) []string {
	var out []string
	for _, chunk := range strings.Split(text, ";") {
		s := strings.TrimSpace(chunk)
		if s == "" || onlyComments(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func onlyComments(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
