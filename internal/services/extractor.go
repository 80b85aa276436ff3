package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"gar-rock/resume-crunch/internal/metrics"
)

// Source is a document to extract: Data when the bytes are in memory,
// otherwise Path. Filename is set by the extractor.
type Source struct {
	Path     string
	Data     []byte
	Filename string
}

func (s Source) bytes() ([]byte, error) {
	if s.Data != nil {
		return s.Data, nil
	}
	if s.Path == "" {
		return nil, errors.New("empty source")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(s.Path), err)
	}
	return data, nil
}

const extractionFailurePrefix = "[Text extraction not available for "

// ExtractionFailure means every backend of the chain failed or was missing.
type ExtractionFailure struct {
	Filename string
	Reason   string
	Attempts []string
}

func (f *ExtractionFailure) String() string {
	return extractionFailurePrefix + f.Filename + ": " + f.Reason + "]"
}

// ExtractionResult is either extracted text or an ExtractionFailure.
type ExtractionResult struct {
	Text    string
	Backend string
	Failure *ExtractionFailure
}

func (r ExtractionResult) OK() bool {
	return r.Failure == nil
}

// String renders the text, or the failure marker for flows that only carry strings.
func (r ExtractionResult) String() string {
	if r.Failure != nil {
		return r.Failure.String()
	}
	return r.Text
}

// IsExtractionFailure recognises a rendered failure marker.
func IsExtractionFailure(s string) bool {
	return strings.HasPrefix(s, extractionFailurePrefix)
}

type TextExtractor interface {
	Extract(ctx context.Context, src Source, filename string) ExtractionResult
}

type textExtractor struct {
	registry *ExtractorRegistry
	log      *zap.Logger
}

func NewTextExtractor(registry *ExtractorRegistry, log *zap.Logger) TextExtractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &textExtractor{registry: registry, log: log}
}

// Extract tries the chain for filename's extension in order. The first backend
// that returns without error wins, even with empty text.
func (e *textExtractor) Extract(ctx context.Context, src Source, filename string) ExtractionResult {
	ext := strings.ToLower(filepath.Ext(filename))
	if src.Filename == "" {
		src.Filename = filename
	}
	var attempts []string

	for _, capability := range e.registry.Capabilities(ext) {
		if !capability.Available {
			attempts = append(attempts, capability.Backend+": unavailable")
			continue
		}
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, capability.Backend+": "+err.Error())
			break
		}

		backend, _ := e.registry.backend(capability.Backend)
		text, err := runBackend(ctx, backend, src)
		if err != nil {
			metrics.ExtractionsTotal.WithLabelValues(capability.Backend, "error").Inc()
			e.log.Debug("⚠️ Extraction backend failed",
				zap.String("file", filename),
				zap.String("backend", capability.Backend),
				zap.Error(err),
			)
			attempts = append(attempts, capability.Backend+": "+err.Error())
			continue
		}

		metrics.ExtractionsTotal.WithLabelValues(capability.Backend, "ok").Inc()
		return ExtractionResult{Text: text, Backend: capability.Backend}
	}

	reason := "no extraction backend available for " + displayExt(ext)
	if len(attempts) > 0 && len(e.registry.AvailableBackends(ext)) > 0 {
		reason = strings.Join(attempts, "; ")
	}

	e.log.Warn("⚠️ Text extraction failed", zap.String("file", filename), zap.String("reason", reason))
	return ExtractionResult{Failure: &ExtractionFailure{
		Filename: filename,
		Reason:   reason,
		Attempts: attempts,
	}}
}

// runBackend turns a backend panic into an error.
func runBackend(ctx context.Context, b Backend, src Source) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.Extract(ctx, src)
}

func displayExt(ext string) string {
	if ext == "" {
		return "files without extension"
	}
	return ext
}
