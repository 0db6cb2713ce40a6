package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "VERIFY_TOKEN", "WHATSRELAY_APP_SECRET", "DB_DRIVER", "DB_PATH", "DATABASE_URL", "NATS_URL", "WHATSRELAY_ALLOWED_ORIGINS", "LOG_LEVEL", "WHATSRELAY_ENV"} {
		t.Setenv(key, "")
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "seed", "migrate", "version"})

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "config.json", flag.DefValue)
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "WhatsRelay "+Version)
	assert.Contains(t, out, "Build Time: "+BuildTime)
	assert.Contains(t, out, "Git Commit: "+GitCommit)
}

func TestMigrateCommand(t *testing.T) {
	clearRelayEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	dbPath := filepath.Join(dir, "relay.db")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`{"database":{"driver":"sqlite","path":%q}}`, dbPath)), 0o600))

	out, err := runCommand(t, "migrate", "--status", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Pending: 001")

	out, err = runCommand(t, "migrate", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Applied migration 001")

	out, err = runCommand(t, "migrate", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No pending migrations")

	out, err = runCommand(t, "migrate", "--status", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Database schema is up to date")
}

func TestSeedCommand(t *testing.T) {
	clearRelayEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`{"database":{"driver":"sqlite","path":%q}}`, filepath.Join(dir, "relay.db"))), 0o600))

	seedDir := filepath.Join(dir, "hooks")
	require.NoError(t, os.Mkdir(seedDir, 0o755))
	writeSeedFile(t, seedDir, "one.json", wrappedSeedFile)

	out, err := runCommand(t, "seed", "--config", configPath, "--dir", seedDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 1 files (0 skipped): 1 created")
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	clearRelayEnv(t)
	_, err := runCommand(t, "migrate", "--config", filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
