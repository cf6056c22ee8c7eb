package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// tesseractCLI pipes the image through the tesseract executable.
type tesseractCLI struct {
	binary string
	args   []string
}

func newTesseractCLI(cfg Config) (*tesseractCLI, error) {
	bin := cfg.BinaryPath
	if bin == "" {
		bin = DefaultBinaryPath
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: tesseract binary %q: %v", ErrBackendUnavailable, bin, err)
	}
	return &tesseractCLI{binary: path, args: tesseractArgs(cfg)}, nil
}

// tesseractArgs reads the image from stdin and writes text to stdout.
func tesseractArgs(cfg Config) []string {
	args := []string{"stdin", "stdout"}
	if langs := cfg.languageList(); len(langs) > 0 {
		args = append(args, "-l", strings.Join(langs, "+"))
	}
	args = append(args, "--psm", strconv.Itoa(cfg.PageSegMode))
	if cfg.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+cfg.Whitelist)
	}
	return args
}

func (t *tesseractCLI) Text(ctx context.Context, png []byte) (string, error) {
	cmd := exec.CommandContext(ctx, t.binary, t.args...) //nolint:gosec // G204: binary comes from configuration
	cmd.Stdin = bytes.NewReader(png)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("tesseract: %w", ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("tesseract: %w", err)
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, msg)
	}
	return stdout.String(), nil
}

func (t *tesseractCLI) Close() error { return nil }
