package support

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/codescan/internal/scanner"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment. Commands run inside WorkingDir, a fresh directory per
	// scenario, so a codescan.yaml or .env written there is picked up.
	WorkingDir string
	TempDir    string
	StorePath  string
	EnvVars    []string

	// In-process device bridge
	Bridge        *httptest.Server
	BridgeSession *scanner.Session

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
}

// NewTestContext creates a new test context with an isolated working
// directory, store file and recognizer.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "codescan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	workDir := filepath.Join(tempDir, "work")
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	ctx := &TestContext{
		WorkingDir: workDir,
		TempDir:    tempDir,
		StorePath:  filepath.Join(tempDir, "store.json"),
	}

	ctx.AddEnvVar("HOME", tempDir)
	ctx.AddEnvVar("XDG_CONFIG_HOME", filepath.Join(tempDir, "xdg"))
	ctx.AddEnvVar("CODESCAN_STORE_BACKEND", "file")
	ctx.AddEnvVar("CODESCAN_STORE_FILE_PATH", ctx.StorePath)
	ctx.AddEnvVar("CODESCAN_RECOGNIZER_BACKEND", "static")
	ctx.AddEnvVar("CODESCAN_EXPORT_DIR", workDir)

	return ctx, nil
}

// Cleanup stops the bridge and removes the scenario's files.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if err := testCtx.StopBridge(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop bridge: %w", err))
	}

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// AddEnvVar sets an environment variable for command execution. A later
// value for the same name wins.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// EnvValue returns the value the commands will see for name.
func (testCtx *TestContext) EnvValue(name string) string {
	prefix := name + "="
	value := os.Getenv(name)
	for _, kv := range testCtx.EnvVars {
		if strings.HasPrefix(kv, prefix) {
			value = strings.TrimPrefix(kv, prefix)
		}
	}
	return value
}

// Path resolves name inside the working directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.WorkingDir, name)
}

// substituteCommandVariables replaces placeholders in command strings.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	command = strings.ReplaceAll(command, "{workdir}", testCtx.WorkingDir)
	command = strings.ReplaceAll(command, "{today}", time.Now().Format("2006-01-02"))
	return command
}
