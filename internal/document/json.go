package document

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/kpi-cli/internal/model"
)

// JSONReader reads a document already split into pages and tables, in the
// same shape the Document type serializes to.
type JSONReader struct{}

// Read implements Reader.
func (JSONReader) Read(_ context.Context, path string) (*model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "document: read %s", path)
	}
	return DecodeJSON(data, IDFromPath(path))
}

// DecodeJSON parses a JSON document. defaultID is used when the payload
// has none. Full text is rebuilt from pages when omitted.
func DecodeJSON(data []byte, defaultID string) (*model.Document, error) {
	var raw model.Document
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "document: decode json")
	}
	if raw.ID == "" {
		raw.ID = defaultID
	}
	if raw.Text == "" && len(raw.Pages) == 0 {
		return nil, eris.Errorf("document: %s has no text or pages", raw.ID)
	}

	doc := Build(raw.ID, raw.Pages)
	if raw.Text != "" {
		doc.Text = NormalizeText(raw.Text)
	}
	return doc, nil
}
