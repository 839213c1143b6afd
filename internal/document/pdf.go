package document

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-cli/internal/model"
)

// PDFReader extracts layout text from PDFs using the pdftotext CLI tool.
type PDFReader struct {
	binPath string
}

// NewPDFReader creates a PDFReader. If binPath is empty, "pdftotext" is used.
func NewPDFReader(binPath string) *PDFReader {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PDFReader{binPath: binPath}
}

// Read runs pdftotext -layout on path. pdftotext ends each page with a
// form feed, which becomes the page boundary.
func (p *PDFReader) Read(ctx context.Context, path string) (*model.Document, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", "-enc", "UTF-8", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "document: pdftotext failed for %s: %s", path, stderr.String())
	}

	pages := splitPages(stdout.String())
	zap.L().Debug("document: pdf extracted", zap.String("path", path), zap.Int("pages", len(pages)))
	return Build(IDFromPath(path), pages), nil
}
