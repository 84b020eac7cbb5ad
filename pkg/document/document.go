// Package document turns uploaded files into plain text and computes the
// statistics the planning stage uses to size a presentation.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// DefaultMaxSize bounds how much of a file Process will read.
const DefaultMaxSize int64 = 10 * 1024 * 1024

var (
	// ErrUnsupportedFormat is returned for extensions without an extractor.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyDocument is returned when no text could be extracted.
	ErrEmptyDocument = errors.New("document contains no text")

	// ErrTooLarge is returned when the input exceeds the read limit.
	ErrTooLarge = errors.New("document too large")
)

// Document is the extracted text of a file.
type Document struct {
	Text  string `json:"text"`
	Stats Stats  `json:"stats"`
}

// Supported reports whether Process can handle the file's extension.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".docx", ".pdf":
		return true
	}
	return false
}

// Process reads at most limit bytes from r and extracts text according to
// the extension of filename. A limit of zero or less uses DefaultMaxSize.
func Process(filename string, r io.Reader, limit int64) (*Document, error) {
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !Supported(filename) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}

	var doc *Document
	switch ext {
	case ".docx":
		doc, err = fromDOCX(data)
	case ".pdf":
		doc, err = fromPDF(data)
	default:
		doc = FromText(string(data))
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrEmptyDocument
	}
	return doc, nil
}

// FromText wraps raw text. Invalid UTF-8 sequences and a leading byte order
// mark are cleaned up.
func FromText(text string) *Document {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ToValidUTF8(text, "\uFFFD")
	return &Document{Text: text, Stats: Analyze(text)}
}

func fromPDF(data []byte) (*Document, error) {
	pages, err := pdfPages(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	var parts []string
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	text := strings.Join(parts, "\n\n")
	stats := Analyze(text)
	stats.DocumentType = "pdf"
	stats.PageCount = len(pages)
	return &Document{Text: text, Stats: stats}, nil
}

func fromDOCX(data []byte) (*Document, error) {
	body, err := readDOCX(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, len(body.paragraphs)+len(body.cells))
	for _, p := range body.paragraphs {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	for _, c := range body.cells {
		if strings.TrimSpace(c) != "" {
			parts = append(parts, c)
		}
	}

	text := strings.Join(parts, "\n\n")
	stats := Analyze(text)
	stats.DocumentType = "docx"
	stats.ParagraphCount = len(body.paragraphs)
	stats.TableCount = body.tables
	return &Document{Text: text, Stats: stats}, nil
}
