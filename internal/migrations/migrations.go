package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/sqlite/*.sql sql/postgres/*.sql
var migrationFiles embed.FS

// Migration is one numbered schema step.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Runner is implemented by each store driver. ApplyMigration must execute the
// statements and record the version atomically.
type Runner interface {
	EnsureMigrationsTable(ctx context.Context) error
	AppliedVersions(ctx context.Context) (map[int]bool, error)
	ApplyMigration(ctx context.Context, m Migration) error
}

// Load returns the migrations for driver ordered by version.
func Load(driver string) ([]Migration, error) {
	return loadFrom(migrationFiles, path.Join("sql", driver))
}

func loadFrom(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("no migrations for %q: %w", path.Base(dir), err)
	}

	var out []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, name, err := parseFileName(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// parseFileName splits "001_create_messages.sql" into (1, "create_messages").
func parseFileName(file string) (int, string, error) {
	base := strings.TrimSuffix(file, ".sql")
	prefix, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("migration file %q must be named NNN_description.sql", file)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("migration file %q has invalid version prefix", file)
	}
	return version, name, nil
}

// Run applies every pending migration for driver and returns the versions
// applied by this call.
func Run(ctx context.Context, runner Runner, driver string) ([]int, error) {
	all, err := Load(driver)
	if err != nil {
		return nil, err
	}
	return apply(ctx, runner, all)
}

func apply(ctx context.Context, runner Runner, all []Migration) ([]int, error) {
	if err := runner.EnsureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := runner.AppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	var ran []int
	for _, m := range all {
		if applied[m.Version] {
			continue
		}
		if err := runner.ApplyMigration(ctx, m); err != nil {
			return ran, fmt.Errorf("migration %03d_%s failed: %w", m.Version, m.Name, err)
		}
		ran = append(ran, m.Version)
	}
	return ran, nil
}

// Pending lists migrations for driver that have not been applied yet.
func Pending(ctx context.Context, runner Runner, driver string) ([]Migration, error) {
	all, err := Load(driver)
	if err != nil {
		return nil, err
	}
	if err := runner.EnsureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := runner.AppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	var pending []Migration
	for _, m := range all {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}
