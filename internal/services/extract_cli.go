package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// commandBackend runs an external converter that prints plain text to stdout.
type commandBackend struct {
	name     string
	bin      string
	args     func(path string) []string
	lookPath func(string) (string, error)
}

func NewCommandBackend(name, bin string, args func(path string) []string) Backend {
	return &commandBackend{
		name:     name,
		bin:      bin,
		args:     args,
		lookPath: exec.LookPath,
	}
}

func (c *commandBackend) Name() string { return c.name }

func (c *commandBackend) Available() bool {
	_, err := c.lookPath(c.bin)
	return err == nil
}

func (c *commandBackend) Extract(ctx context.Context, src Source) (string, error) {
	path, cleanup, err := sourcePath(src)
	if err != nil {
		return "", err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, c.bin, c.args(path)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return "", fmt.Errorf("%s exited with %d: %s", c.bin, exitErr.ExitCode(), firstLine(msg))
		}
		return "", fmt.Errorf("%s: %w", c.bin, err)
	}

	out := stdout.String()
	if !utf8.ValidString(out) {
		out = strings.ToValidUTF8(out, "\uFFFD")
	}
	return strings.TrimSpace(out), nil
}

// sourcePath returns a filesystem path for src, spilling in-memory data to a
// temp file when needed.
func sourcePath(src Source) (string, func(), error) {
	if src.Path != "" {
		return src.Path, func() {}, nil
	}

	// converters such as pandoc pick the input format from the extension
	f, err := os.CreateTemp("", "resume-*"+filepath.Ext(src.Filename))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(src.Data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func pdftotextArgs(path string) []string {
	return []string{"-layout", "-enc", "UTF-8", path, "-"}
}

func pandocArgs(path string) []string {
	return []string{"--to", "plain", "--wrap", "none", path}
}

func singlePathArgs(path string) []string {
	return []string{path}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
