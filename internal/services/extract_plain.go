package services

import (
	"bytes"
	"context"
	"strings"
)

type plainTextBackend struct{}

func NewPlainTextBackend() Backend {
	return plainTextBackend{}
}

func (plainTextBackend) Name() string    { return "plaintext" }
func (plainTextBackend) Available() bool { return true }

// Extract decodes as UTF-8, substituting U+FFFD for invalid bytes.
func (plainTextBackend) Extract(_ context.Context, src Source) (string, error) {
	data, err := src.bytes()
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}
