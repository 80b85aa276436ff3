package services

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/ledongthuc/pdf"
)

type pdfTextBackend struct{}

// NewPDFTextBackend reads the text stream of every page.
func NewPDFTextBackend() Backend {
	return pdfTextBackend{}
}

func (pdfTextBackend) Name() string    { return "pdf-text" }
func (pdfTextBackend) Available() bool { return true }

func (pdfTextBackend) Extract(ctx context.Context, src Source) (string, error) {
	return readPDF(ctx, src, func(p pdf.Page) (string, error) {
		return p.GetPlainText(nil)
	})
}

type pdfRowsBackend struct{}

// NewPDFRowsBackend rebuilds lines from glyph positions. It copes with PDFs
// whose text stream is out of reading order.
func NewPDFRowsBackend() Backend {
	return pdfRowsBackend{}
}

func (pdfRowsBackend) Name() string    { return "pdf-rows" }
func (pdfRowsBackend) Available() bool { return true }

func (pdfRowsBackend) Extract(ctx context.Context, src Source) (string, error) {
	return readPDF(ctx, src, func(p pdf.Page) (string, error) {
		rows, err := p.GetTextByRow()
		if err != nil {
			return "", err
		}

		var sb strings.Builder
		for _, row := range rows {
			for i, word := range row.Content {
				if i > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(word.S)
			}
			sb.WriteByte('\n')
		}
		return sb.String(), nil
	})
}

func readPDF(ctx context.Context, src Source, pageText func(pdf.Page) (string, error)) (string, error) {
	data, err := src.bytes()
	if err != nil {
		return "", err
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var (
		sb     strings.Builder
		failed int
	)
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := pageText(page)
		if err != nil {
			// keep the pages we can read
			failed++
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	if total > 0 && failed == total {
		return "", errors.New("no readable page")
	}
	return strings.TrimSpace(sb.String()), nil
}
