package document

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/kpi-cli/internal/model"
)

// TextReader reads plain text files. Plain text carries no layout or tables,
// so the document has full text only and no pages.
type TextReader struct{}

// Read implements Reader.
func (TextReader) Read(_ context.Context, path string) (*model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "document: read %s", path)
	}
	return &model.Document{
		ID:   IDFromPath(path),
		Text: NormalizeText(string(data)),
	}, nil
}
