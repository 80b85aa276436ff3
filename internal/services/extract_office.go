package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

type docxBackend struct{}

// NewDocxBackend reads word/document.xml of an OOXML package.
func NewDocxBackend() Backend {
	return docxBackend{}
}

func (docxBackend) Name() string    { return "docx-xml" }
func (docxBackend) Available() bool { return true }

func (docxBackend) Extract(_ context.Context, src Source) (string, error) {
	part, err := openZipPart(src, "word/document.xml")
	if err != nil {
		return "", err
	}
	defer part.Close()

	dec := xml.NewDecoder(part)
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

type odtBackend struct{}

// NewODTBackend reads content.xml of an OpenDocument text package.
func NewODTBackend() Backend {
	return odtBackend{}
}

func (odtBackend) Name() string    { return "odt-xml" }
func (odtBackend) Available() bool { return true }

func (odtBackend) Extract(_ context.Context, src Source) (string, error) {
	part, err := openZipPart(src, "content.xml")
	if err != nil {
		return "", err
	}
	defer part.Close()

	dec := xml.NewDecoder(part)
	var (
		sb    strings.Builder
		depth int // >0 inside office:body
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to decode content.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "body" || depth > 0 {
				depth++
			}
			if depth == 0 {
				continue
			}
			switch t.Name.Local {
			case "s":
				sb.WriteByte(' ')
			case "tab":
				sb.WriteByte('\t')
			case "line-break":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			if depth == 0 {
				continue
			}
			depth--
			if t.Name.Local == "p" || t.Name.Local == "h" {
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if depth > 0 {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

func openZipPart(src Source, name string) (io.ReadCloser, error) {
	data, err := src.bytes()
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a zip package: %w", err)
	}

	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("missing %s: %w", name, err)
	}
	return f, nil
}
