package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs root with args and captures its output.
func executeCommand(root *cobra.Command, args ...string) (string, string, error) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graphorm.yaml")
	content := "database:\n  dialect: sqlite\n  dsn: \":memory:\"\nlogging:\n  level: disabled\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDriversCommand(t *testing.T) {
	stdout, _, err := executeCommand(rootCmd, "drivers")
	require.NoError(t, err)
	assert.Equal(t, "mysql\npostgres\nsqlite\nsqlserver\n", stdout)
}

func TestPingCommand(t *testing.T) {
	stdout, _, err := executeCommand(rootCmd, "ping", "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Equal(t, "sqlite: ok\n", stdout)
}

func TestExistsCommand_ReportsMissingTables(t *testing.T) {
	stdout, _, err := executeCommand(rootCmd, "exists", "posts", "tags", "--config", writeConfig(t))
	assert.ErrorContains(t, err, "2 of 2 tables missing")
	assert.Equal(t, "posts: missing\ntags: missing\n", stdout)
}

func TestExistsCommand_Errors(t *testing.T) {
	_, stderr, err := executeCommand(rootCmd, "exists", "--config", writeConfig(t))
	assert.Error(t, err)
	assert.Contains(t, stderr, "requires at least 1 arg(s), only received 0")

	_, _, err = executeCommand(rootCmd, "ping", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
