package migrations

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	applied  map[int]bool
	ran      []int
	failOn   int
	tableErr error
}

func (f *fakeRunner) EnsureMigrationsTable(ctx context.Context) error { return f.tableErr }

func (f *fakeRunner) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	out := make(map[int]bool, len(f.applied))
	for k, v := range f.applied {
		out[k] = v
	}
	return out, nil
}

func (f *fakeRunner) ApplyMigration(ctx context.Context, m Migration) error {
	if m.Version == f.failOn {
		return errors.New("syntax error")
	}
	if f.applied == nil {
		f.applied = make(map[int]bool)
	}
	f.applied[m.Version] = true
	f.ran = append(f.ran, m.Version)
	return nil
}

func TestLoad_EmbeddedDrivers(t *testing.T) {
	for _, driver := range []string{"sqlite", "postgres"} {
		t.Run(driver, func(t *testing.T) {
			all, err := Load(driver)
			require.NoError(t, err)
			require.NotEmpty(t, all)

			assert.Equal(t, 1, all[0].Version)
			assert.Equal(t, "create_messages", all[0].Name)
			assert.Contains(t, all[0].SQL, "CREATE TABLE IF NOT EXISTS messages")
			for i := 1; i < len(all); i++ {
				assert.Greater(t, all[i].Version, all[i-1].Version)
			}
		})
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	_, err := Load("oracle")
	assert.Error(t, err)
}

func TestLoadFrom_Validation(t *testing.T) {
	t.Run("bad name", func(t *testing.T) {
		fsys := fstest.MapFS{"m/initial.sql": {Data: []byte("SELECT 1")}}
		_, err := loadFrom(fsys, "m")
		assert.ErrorContains(t, err, "NNN_description")
	})

	t.Run("duplicate version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"m/001_a.sql": {Data: []byte("SELECT 1")},
			"m/1_b.sql":   {Data: []byte("SELECT 2")},
		}
		_, err := loadFrom(fsys, "m")
		assert.ErrorContains(t, err, "duplicate migration version 1")
	})

	t.Run("skips non sql and directories", func(t *testing.T) {
		fsys := fstest.MapFS{
			"m/002_second.sql":   {Data: []byte("SELECT 2")},
			"m/001_first.sql":    {Data: []byte("SELECT 1")},
			"m/README.md":        {Data: []byte("docs")},
			"m/nested/003_x.sql": {Data: []byte("SELECT 3")},
		}
		all, err := loadFrom(fsys, "m")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "first", all[0].Name)
		assert.Equal(t, "second", all[1].Name)
	})
}

func TestApply_SkipsAppliedVersions(t *testing.T) {
	all := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}
	runner := &fakeRunner{applied: map[int]bool{1: true}}

	ran, err := apply(context.Background(), runner, all)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, ran)

	ran, err = apply(context.Background(), runner, all)
	require.NoError(t, err)
	assert.Empty(t, ran)
}

func TestApply_StopsOnFailure(t *testing.T) {
	all := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}
	runner := &fakeRunner{failOn: 2}

	ran, err := apply(context.Background(), runner, all)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 002_b failed")
	assert.Equal(t, []int{1}, ran)
}

func TestRun_TableError(t *testing.T) {
	runner := &fakeRunner{tableErr: errors.New("read only")}
	_, err := Run(context.Background(), runner, "sqlite")
	assert.ErrorContains(t, err, "failed to create migrations table")
}

func TestPending(t *testing.T) {
	runner := &fakeRunner{applied: map[int]bool{1: true}}
	pending, err := Pending(context.Background(), runner, "sqlite")
	require.NoError(t, err)
	for _, m := range pending {
		assert.NotEqual(t, 1, m.Version)
	}
}
