package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runExtract(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"extract"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestExtract_PrintsUTCMinute(t *testing.T) {
	out, err := runExtract(t, "--locale", "en", "call mom in 2 hours")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}\n$`, out)
}

func TestExtract_NotRecognizedShowsHint(t *testing.T) {
	_, err := runExtract(t, "--locale", "en", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tomorrow at 15:00")
}

func TestExtract_UnknownLocale(t *testing.T) {
	_, err := runExtract(t, "--locale", "de", "tomorrow at 15:00")
	require.Error(t, err)
}

func TestExtract_RequiresOneArg(t *testing.T) {
	_, err := runExtract(t)
	require.Error(t, err)
}

func TestPurge_RunsWithoutBotToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	require.NoError(t, os.Unsetenv("BOT_TOKEN"))
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "reminders.db"))
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"purge"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "purged 0 reminder(s)\n", out.String())
}
