package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(16)
	require.NoError(t, err)
	b, err := generatePassword(16)
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = parseLevel("loud")
	assert.Error(t, err)
}

func TestUseJSON(t *testing.T) {
	assert.True(t, useJSON("json", 0))
	assert.False(t, useJSON("text", 0))
}

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "inventory.db")

	out, err := run(t, "--db", path, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 2")
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")

	out, err := run(t, "--db", path, "init", "--guild", "77", "--user", "boss")
	require.NoError(t, err)
	assert.Contains(t, out, "Guild 77 initialized.")
	assert.Contains(t, out, "Username: boss")

	var password string
	for _, line := range strings.Split(out, "\n") {
		if p, ok := strings.CutPrefix(strings.TrimSpace(line), "Password: "); ok {
			password = p
		}
	}
	assert.Len(t, password, 16)

	_, err = run(t, "--db", path, "init", "--guild", "77", "--user", "boss")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "--db", path, "init")
	assert.ErrorContains(t, err, "--guild is required")
}

func TestReportRequiresChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	_, err := run(t, "--db", path, "init", "--guild", "5")
	require.NoError(t, err)

	_, err = run(t, "--db", path, "report", "daily", "--guild", "5")
	assert.ErrorContains(t, err, "no report or alert channel")

	_, err = run(t, "--db", path, "report", "weekly", "--guild", "5")
	assert.Error(t, err)
}
