package model

// Table is a row-major grid of cell text. Empty cells are "".
type Table [][]string

// Page holds the layout-preserving text and the tables found on one page.
type Page struct {
	Number int     `json:"number"`
	Text   string  `json:"text,omitempty"`
	Tables []Table `json:"tables,omitempty"`
}

// Document is the reader's output: whitespace-normalized full text plus pages.
type Document struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Pages []Page `json:"pages,omitempty"`
}

// Tables returns every table in page order, then table order.
func (d *Document) Tables() []Table {
	var out []Table
	for _, p := range d.Pages {
		out = append(out, p.Tables...)
	}
	return out
}
