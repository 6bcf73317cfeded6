package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Test Harness ───────────────────────────────────────────────────────────

type cliEnv struct {
	home  string
	units string
	done  string
}

func setupCLI(t *testing.T, units ...string) *cliEnv {
	t.Helper()
	for _, k := range []string{"STUDYTRACK_PORT", "STUDYTRACK_HOST", "STUDYTRACK_BASE_DIR", "STUDYTRACK_LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	home := t.TempDir()
	unitsDir := filepath.Join(home, "units")
	require.NoError(t, os.MkdirAll(unitsDir, 0o755))
	cfg := fmt.Sprintf("[tracker]\nbase_dir = '%s'\ndone_dir = 'done'\n\n[log]\nlevel = 'error'\n", unitsDir)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte(cfg), 0o644))

	for _, u := range units {
		require.NoError(t, os.WriteFile(filepath.Join(unitsDir, u+".pdf"), []byte(u), 0o644))
	}
	t.Cleanup(func() { homeFlag = "" })
	return &cliEnv{home: home, units: unitsDir, done: filepath.Join(unitsDir, "done")}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--home", e.home}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

// ─── Commands ───────────────────────────────────────────────────────────────

func TestCLI_StatusEmpty(t *testing.T) {
	env := setupCLI(t)

	out, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed units (0)")
	assert.Contains(t, out, "Prizes (0)")
	assert.DirExists(t, env.done, "done directory is created on startup")
}

func TestCLI_CompleteUndo(t *testing.T) {
	env := setupCLI(t, "U1")

	out, err := env.run(t, "complete", "U1")
	require.NoError(t, err)
	assert.Contains(t, out, "U1 completed")
	assert.FileExists(t, filepath.Join(env.done, "U1.pdf"))

	out, err = env.run(t, "complete", "U1")
	require.NoError(t, err)
	assert.Contains(t, out, "already done or empty")

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed units (1)")

	out, err = env.run(t, "undo", "U1")
	require.NoError(t, err)
	assert.Contains(t, out, "U1 reopened")
	assert.FileExists(t, filepath.Join(env.units, "U1.pdf"))

	out, err = env.run(t, "undo", "U1")
	require.NoError(t, err)
	assert.Contains(t, out, "U1 is not completed")
}

func TestCLI_CompleteWithoutPDF(t *testing.T) {
	env := setupCLI(t)

	out, err := env.run(t, "complete", "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, "no PDF found to move")
}

func TestCLI_Files(t *testing.T) {
	env := setupCLI(t, "A", "B")
	_, err := env.run(t, "complete", "B")
	require.NoError(t, err)

	out, err := env.run(t, "files")
	require.NoError(t, err)
	assert.Contains(t, out, "Available in "+env.units+" (1):\n  • A")
	assert.Contains(t, out, "Done in "+env.done+" (1):\n  • B")
}

func TestCLI_Prizes(t *testing.T) {
	env := setupCLI(t)

	out, err := env.run(t, "prize", "add", "ice cream", "--cost", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "ice cream (cost 5)")

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Prizes (1)")

	out, err = env.run(t, "prize", "remove")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed ice cream")

	out, err = env.run(t, "prize", "remove")
	require.NoError(t, err)
	assert.Contains(t, out, "No prizes to remove")

	require.NoError(t, prizeAddCmd.Flags().Set("cost", ""))
}

func TestCLI_PrizeBadCost(t *testing.T) {
	env := setupCLI(t)
	t.Cleanup(func() { prizeAddCmd.Flags().Set("cost", "") })

	_, err := env.run(t, "prize", "add", "x", "--cost", "lots")
	assert.Error(t, err)
}

func TestCLI_ResetRequiresYes(t *testing.T) {
	env := setupCLI(t, "U1")
	require.NoError(t, resetCmd.Flags().Set("yes", "false"))
	t.Cleanup(func() { resetCmd.Flags().Set("yes", "false") })

	_, err := env.run(t, "complete", "U1")
	require.NoError(t, err)

	_, err = env.run(t, "reset")
	assert.True(t, errors.Is(err, errResetNotConfirmed))
	assert.FileExists(t, filepath.Join(env.done, "U1.pdf"))

	out, err := env.run(t, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Tracker reset.")
	assert.FileExists(t, filepath.Join(env.units, "U1.pdf"))
}

func TestCLI_Reconcile(t *testing.T) {
	env := setupCLI(t, "U1")

	out, err := env.run(t, "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "in sync")

	require.NoError(t, os.MkdirAll(env.done, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.done, "U7.pdf"), nil, 0o644))
	out, err = env.run(t, "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "In done folder but not completed (1)")
	assert.True(t, strings.Contains(out, "U7"))
}

func TestCLI_CorruptLedger(t *testing.T) {
	env := setupCLI(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.units, ".tracker_state.json"), []byte("[]"), 0o644))

	_, err := env.run(t, "status")
	assert.Error(t, err)
}

func TestCLI_BadConfig(t *testing.T) {
	env := setupCLI(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.home, "config.toml"), []byte("[tracker\n"), 0o644))

	_, err := env.run(t, "status")
	assert.Error(t, err)
}

func TestDescribePrize(t *testing.T) {
	assert.Equal(t, "(unnamed)", describePrize(nil))
	assert.Equal(t, "movie", describePrize(map[string]any{"name": "movie"}))
}

func TestCLI_HomeResolvesRelativeBaseDir(t *testing.T) {
	env := setupCLI(t, "U1")
	cfg := "[tracker]\nbase_dir = 'units'\ndone_dir = 'done'\n\n[log]\nlevel = 'error'\n"
	require.NoError(t, os.WriteFile(filepath.Join(env.home, "config.toml"), []byte(cfg), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out, err := env.run(t, "complete", "U1")
	require.NoError(t, err)
	assert.Contains(t, out, "U1 completed")
	assert.FileExists(t, filepath.Join(env.done, "U1.pdf"))
	assert.FileExists(t, filepath.Join(env.units, ".tracker_state.json"))
}
