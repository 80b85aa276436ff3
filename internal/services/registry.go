package services

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Backend converts one document format to plain text.
type Backend interface {
	Name() string
	// Available is called once, when the registry is built.
	Available() bool
	Extract(ctx context.Context, src Source) (string, error)
}

// Capability is one step of an extraction chain after the startup probe.
type Capability struct {
	Backend   string `json:"backend"`
	Available bool   `json:"available"`
}

const fallbackBackend = "plaintext"

// extraction chains, highest fidelity first
var defaultChains = map[string][]string{
	".txt":  {"plaintext"},
	".md":   {"plaintext"},
	".csv":  {"plaintext"},
	".pdf":  {"pdf-text", "pdf-rows", "pdftotext"},
	".docx": {"docx-xml", "pandoc"},
	".odt":  {"pandoc", "odt-xml"},
	".doc":  {"antiword", "catdoc"},
	".rtf":  {"pandoc", "rtf-text"},
}

// ExtractorRegistry maps file extensions to ordered backend chains. It probes
// every backend once on construction and is read-only afterwards, so a single
// instance can be shared between goroutines.
type ExtractorRegistry struct {
	backends  map[string]Backend
	available map[string]bool
	chains    map[string][]string
}

// DefaultBackends returns every built-in and CLI backend.
func DefaultBackends() []Backend {
	return []Backend{
		NewPlainTextBackend(),
		NewPDFTextBackend(),
		NewPDFRowsBackend(),
		NewDocxBackend(),
		NewODTBackend(),
		NewRTFBackend(),
		NewCommandBackend("pdftotext", "pdftotext", pdftotextArgs),
		NewCommandBackend("pandoc", "pandoc", pandocArgs),
		NewCommandBackend("antiword", "antiword", singlePathArgs),
		NewCommandBackend("catdoc", "catdoc", singlePathArgs),
	}
}

// NewExtractorRegistry probes backends and builds the chains. Backends named
// in disabled are recorded as unavailable.
func NewExtractorRegistry(backends []Backend, disabled []string, log *zap.Logger) *ExtractorRegistry {
	if log == nil {
		log = zap.NewNop()
	}

	off := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		off[strings.TrimSpace(name)] = true
	}

	r := &ExtractorRegistry{
		backends:  make(map[string]Backend, len(backends)),
		available: make(map[string]bool, len(backends)),
		chains:    make(map[string][]string, len(defaultChains)),
	}

	for _, b := range backends {
		name := b.Name()
		r.backends[name] = b
		r.available[name] = !off[name] && b.Available()
		log.Debug("🔍 Probed extraction backend",
			zap.String("backend", name),
			zap.Bool("available", r.available[name]),
			zap.Bool("disabled", off[name]),
		)
	}

	for ext, chain := range defaultChains {
		r.chains[ext] = append([]string(nil), chain...)
	}

	return r
}

func (r *ExtractorRegistry) chain(ext string) []string {
	if c, ok := r.chains[normalizeExt(ext)]; ok {
		return c
	}
	return []string{fallbackBackend}
}

// AvailableBackends returns the usable backends for ext in chain order.
// Unknown extensions get the plain-text fallback chain.
func (r *ExtractorRegistry) AvailableBackends(ext string) []string {
	var out []string
	for _, name := range r.chain(ext) {
		if r.available[name] {
			out = append(out, name)
		}
	}
	return out
}

// Capabilities returns the whole chain for ext with each step's probe result.
func (r *ExtractorRegistry) Capabilities(ext string) []Capability {
	chain := r.chain(ext)
	out := make([]Capability, len(chain))
	for i, name := range chain {
		out[i] = Capability{Backend: name, Available: r.available[name]}
	}
	return out
}

func (r *ExtractorRegistry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.chains))
	for ext := range r.chains {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (r *ExtractorRegistry) backend(name string) (Backend, bool) {
	b, ok := r.backends[name]
	return b, ok && r.available[name]
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
