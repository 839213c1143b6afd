package document

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/kpi-cli/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createTestXLSX(t *testing.T, sheets []string, rows map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, name := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows[name] {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path string
		want Reader
	}{
		{"a.json", JSONReader{}},
		{"a.PDF", &PDFReader{binPath: "pdftotext"}},
		{"a.xlsx", XLSXReader{}},
		{"a.txt", TextReader{}},
		{"a.md", TextReader{}},
	}
	for _, tt := range tests {
		r, err := ForPath(tt.path, Options{})
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, r, tt.path)
	}

	_, err := ForPath("a.docx", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported file type ".docx"`)
}

func TestNewPDFReader_BinPath(t *testing.T) {
	assert.Equal(t, "pdftotext", NewPDFReader("").binPath)
	assert.Equal(t, "/custom/pdftotext", NewPDFReader("/custom/pdftotext").binPath)

	r, err := ForPath("x.pdf", Options{PdfToTextPath: "/opt/pdftotext"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/pdftotext", r.(*PDFReader).binPath)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "Water use 1 200 m³", NormalizeText("  Water use\n\t1 200  m³ "))
	// Decomposed e + combining acute composes to a single rune.
	assert.Equal(t, "\u00e9nergie", NormalizeText("e\u0301nergie"))
	assert.Equal(t, "", NormalizeText(" \n "))
}

func TestBuild(t *testing.T) {
	doc := Build("acme", []model.Page{
		{Text: "Energy   consumption\n12 MWh"},
		{},
		{Text: "Water", Tables: []model.Table{{{"a"}}}},
	})
	assert.Equal(t, "acme", doc.ID)
	assert.Equal(t, "Energy consumption 12 MWh Water", doc.Text)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{doc.Pages[0].Number, doc.Pages[1].Number, doc.Pages[2].Number})
	assert.Equal(t, "Energy   consumption\n12 MWh", doc.Pages[0].Text, "page layout is preserved")
	assert.Len(t, doc.Tables(), 1)
}

func TestSplitPages(t *testing.T) {
	pages := splitPages("one\ftwo\f")
	require.Len(t, pages, 2)
	assert.Equal(t, "one", pages[0].Text)
	assert.Equal(t, 2, pages[1].Number)

	assert.Len(t, splitPages("single"), 1)
}

func TestTextReader(t *testing.T) {
	path := writeFile(t, "acme-2023.txt", "Total GHG emissions (tCO2e) of 123,400\fpage two")
	doc, err := TextReader{}.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "acme-2023", doc.ID)
	assert.Equal(t, "Total GHG emissions (tCO2e) of 123,400 page two", doc.Text)
	assert.Empty(t, doc.Pages)
	assert.Empty(t, doc.Tables())

	_, err = TextReader{}.Read(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document: read")
}

func TestJSONReader(t *testing.T) {
	path := writeFile(t, "doc.json", `{
		"pages": [
			{"text": "Energy consumption 5 GWh", "tables": [[["Metric", "Unit", "2023"], ["Water withdrawal", "m3", "1,000"]]]}
		]
	}`)
	doc, err := JSONReader{}.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "doc", doc.ID)
	assert.Equal(t, "Energy consumption 5 GWh", doc.Text)
	require.Len(t, doc.Tables(), 1)
	assert.Equal(t, "1,000", doc.Tables()[0][1][2])
	assert.Equal(t, 1, doc.Pages[0].Number)
}

func TestDecodeJSON(t *testing.T) {
	doc, err := DecodeJSON([]byte(`{"id": "x", "text": "a\n\nb"}`), "fallback")
	require.NoError(t, err)
	assert.Equal(t, "x", doc.ID)
	assert.Equal(t, "a b", doc.Text)

	_, err = DecodeJSON([]byte(`{}`), "empty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no text or pages")

	_, err = DecodeJSON([]byte(`not json`), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode json")
}

func TestXLSXReader(t *testing.T) {
	path := createTestXLSX(t, []string{"Environment", "Empty"}, map[string][][]string{
		"Environment": {
			{"Metric", "Unit", "2023"},
			{"Energy consumption", "MWh", "12,000"},
			{"", "", ""},
		},
	})

	doc, err := XLSXReader{}.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "report", doc.ID)
	require.Len(t, doc.Pages, 1)
	table := doc.Pages[0].Tables[0]
	require.Len(t, table, 2)
	assert.Equal(t, []string{"Energy consumption", "MWh", "12,000"}, table[1])
	assert.Contains(t, doc.Pages[0].Text, "Energy consumption    MWh    12,000")
	assert.Contains(t, doc.Text, "Environment Metric Unit 2023")
}

func TestXLSXReader_Errors(t *testing.T) {
	_, err := XLSXReader{}.Read(context.Background(), writeFile(t, "bad.xlsx", "not a zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open workbook")

	empty := createTestXLSX(t, []string{"Sheet1"}, nil)
	_, err = XLSXReader{}.Read(context.Background(), empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no data")
}

func TestPDFReader_Stub(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "pdftotext")
	script := "#!/bin/sh\nprintf 'Energy consumption  12 MWh\\fWater withdrawal  3 m3\\f'\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	doc, err := NewPDFReader(bin).Read(context.Background(), "/tmp/acme.pdf")
	require.NoError(t, err)
	assert.Equal(t, "acme", doc.ID)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "Energy consumption  12 MWh", doc.Pages[0].Text)
	assert.Equal(t, "Energy consumption 12 MWh Water withdrawal 3 m3", doc.Text)
}

func TestPDFReader_Failure(t *testing.T) {
	_, err := NewPDFReader(filepath.Join(t.TempDir(), "no-such-binary")).Read(context.Background(), "x.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed for x.pdf")
}

func TestAuto(t *testing.T) {
	path := writeFile(t, "r.txt", "hello")
	doc, err := Auto{}.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Text)

	_, err = Auto{}.Read(context.Background(), "r.csv")
	require.Error(t, err)
}
