// Package document reads report files into the text and table grids the
// extractors work on.
package document

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/kpi-cli/internal/model"
)

// Reader loads one document from a file.
type Reader interface {
	Read(ctx context.Context, path string) (*model.Document, error)
}

// Options configures the file readers.
type Options struct {
	PdfToTextPath string
}

// ForPath returns the reader for path's extension.
func ForPath(path string, opts Options) (Reader, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return JSONReader{}, nil
	case ".pdf":
		return NewPDFReader(opts.PdfToTextPath), nil
	case ".xlsx":
		return XLSXReader{}, nil
	case ".txt", ".text", ".md":
		return TextReader{}, nil
	default:
		return nil, eris.Errorf("document: unsupported file type %q", ext)
	}
}

// Auto dispatches on file extension.
type Auto struct {
	Options Options
}

// Read implements Reader.
func (a Auto) Read(ctx context.Context, path string) (*model.Document, error) {
	r, err := ForPath(path, a.Options)
	if err != nil {
		return nil, err
	}
	return r.Read(ctx, path)
}

// IDFromPath derives a document ID from a file name.
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// NormalizeText composes text to NFC and collapses every whitespace run
// into a single space.
func NormalizeText(s string) string {
	if composed, _, err := transform.String(norm.NFC, s); err == nil {
		s = composed
	}
	return strings.Join(strings.Fields(s), " ")
}

// Build assembles a document from its pages. Page text keeps its layout
// apart from NFC composition; the full text is whitespace-normalized.
func Build(id string, pages []model.Page) *model.Document {
	parts := make([]string, 0, len(pages))
	for i := range pages {
		if pages[i].Number == 0 {
			pages[i].Number = i + 1
		}
		pages[i].Text = norm.NFC.String(pages[i].Text)
		if pages[i].Text != "" {
			parts = append(parts, pages[i].Text)
		}
	}
	return &model.Document{
		ID:    id,
		Text:  NormalizeText(strings.Join(parts, "\n")),
		Pages: pages,
	}
}

// splitPages splits text on form feeds, dropping a trailing empty page.
func splitPages(text string) []model.Page {
	chunks := strings.Split(text, "\f")
	if n := len(chunks); n > 1 && strings.TrimSpace(chunks[n-1]) == "" {
		chunks = chunks[:n-1]
	}
	pages := make([]model.Page, 0, len(chunks))
	for i, c := range chunks {
		pages = append(pages, model.Page{Number: i + 1, Text: c})
	}
	return pages
}
