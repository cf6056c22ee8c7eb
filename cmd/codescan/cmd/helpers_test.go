package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/codescan/internal/store"
	"github.com/MeKo-Tech/codescan/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with a file store inside it and
// the static recognizer, so no test touches the user's home or needs tesseract.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("CODESCAN_LOG_LEVEL", "info")
	t.Setenv("CODESCAN_STORE_BACKEND", store.BackendFile)
	t.Setenv("CODESCAN_STORE_FILE_PATH", storePath(dir))
	t.Setenv("CODESCAN_RECOGNIZER_BACKEND", "static")
	t.Setenv("CODESCAN_RECOGNIZER_STATIC_TEXT", "")
	t.Setenv("CODESCAN_EXPORT_DIR", dir)
	return dir
}

func storePath(dir string) string {
	return filepath.Join(dir, "store.json")
}

// executeCommand runs the root command with args and returns what it wrote to
// stdout and stderr. Flags are reset afterwards so tests do not leak into
// each other through the shared command tree.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := GetRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	defer resetFlags(root)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func seedCodes(t *testing.T, dir string, codes ...string) {
	t.Helper()
	st, err := store.NewFileStore(storePath(dir), store.DefaultSlot)
	require.NoError(t, err)
	require.NoError(t, st.SaveCodes(context.Background(), codes))
}

func savedCodes(t *testing.T, dir string) []string {
	t.Helper()
	st, err := store.NewFileStore(storePath(dir), store.DefaultSlot)
	require.NoError(t, err)
	codes, err := st.LoadCodes(context.Background())
	require.NoError(t, err)
	return codes
}

func writeFrame(t *testing.T, dir string) string {
	t.Helper()
	return testutil.WriteFrame(t, dir, "frame.png", testutil.CameraSize)
}
