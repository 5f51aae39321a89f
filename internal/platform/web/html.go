// Package web renders the small diagnostic HTML pages this service
// serves to browsers. Pages are sequences of titled key/value tables,
// built in insertion order with all values escaped.
package web

import (
	"html/template"
	"strings"
)

// Row is one key/value line of a page section.
type Row struct {
	Key   string
	Value string
}

// Page accumulates HTML sections and is rendered once with Close.
type Page struct {
	b strings.Builder
}

// NewPage opens a page with the given title.
func NewPage(title string) *Page {
	p := &Page{}
	p.b.WriteString("<html><head><title>")
	p.b.WriteString(template.HTMLEscapeString(title))
	p.b.WriteString("</title><style>")
	p.b.WriteString("body{font-family:sans-serif}table{border-collapse:collapse}" +
		"td,th{border:1px solid #ccc;padding:4px 8px;text-align:left}")
	p.b.WriteString("</style></head><body>")
	return p
}

// Section appends a titled two-column key/value table.
func (p *Page) Section(title string, rows []Row) *Page {
	p.b.WriteString("<h2>")
	p.b.WriteString(template.HTMLEscapeString(title))
	p.b.WriteString("</h2><table>")
	for _, row := range rows {
		p.b.WriteString("<tr><th>")
		p.b.WriteString(template.HTMLEscapeString(row.Key))
		p.b.WriteString("</th><td>")
		p.b.WriteString(template.HTMLEscapeString(row.Value))
		p.b.WriteString("</td></tr>")
	}
	p.b.WriteString("</table>")
	return p
}

// Table appends a titled table with explicit column headers.
func (p *Page) Table(title string, headers []string, rows [][]string) *Page {
	p.b.WriteString("<h2>")
	p.b.WriteString(template.HTMLEscapeString(title))
	p.b.WriteString("</h2><table><tr>")
	for _, h := range headers {
		p.b.WriteString("<th>")
		p.b.WriteString(template.HTMLEscapeString(h))
		p.b.WriteString("</th>")
	}
	p.b.WriteString("</tr>")
	for _, row := range rows {
		p.b.WriteString("<tr>")
		for _, cell := range row {
			p.b.WriteString("<td>")
			p.b.WriteString(template.HTMLEscapeString(cell))
			p.b.WriteString("</td>")
		}
		p.b.WriteString("</tr>")
	}
	p.b.WriteString("</table>")
	return p
}

// Close finalizes the page and returns its HTML.
func (p *Page) Close() string {
	p.b.WriteString("</body></html>")
	return p.b.String()
}
