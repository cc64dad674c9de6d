package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/datasync/pkg/engine"
)

// 🧪 resetFlags restores the package flag state between tests
func resetFlags() {
	configFile = ""
	debug = false
	logFile = ""
	move = false
	overwrite = false
	timeout = 0
	parallel = 0
	ignore = nil
}

// 🧪 TestRunSyncCopy tests the wired-up copy path
func TestRunSyncCopy(t *testing.T) {
	resetFlags()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	logFile = filepath.Join(root, "audit.txt")

	src := filepath.Join(root, "a.txt")
	dst := filepath.Join(root, "b.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0644))

	res, err := runSync(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeSuccess, res.Outcome)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// The audit log got exactly one line.
	audit, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(audit), "COPY")
}

// 🧪 TestRunSyncMove tests the --move path end to end
func TestRunSyncMove(t *testing.T) {
	resetFlags()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	logFile = filepath.Join(root, "audit.txt")
	move = true

	src := filepath.Join(root, "a.txt")
	dst := filepath.Join(root, "moved.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0644))

	res, err := runSync(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeSuccess, res.Outcome)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

// 🧪 TestRunSyncConfigFile tests config loading through the CLI path
func TestRunSyncConfigFile(t *testing.T) {
	resetFlags()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	logFile = filepath.Join(root, "audit.txt")

	configFile = filepath.Join(root, "cfg.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("overwrite: true\n"), 0644))

	src := filepath.Join(root, "a.txt")
	dst := filepath.Join(root, "b.txt")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0644))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0644))

	res, err := runSync(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeSuccess, res.Outcome)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}
