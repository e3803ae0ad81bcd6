// Package render turns popup and options state into the text returned by
// the MCP tools. Both views go through the same path: an HTML template
// converted by html-to-markdown.
package render

import (
	"bytes"
	"embed"
	"html/template"
	"slices"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leonardcser/imoney-mcp/internal/currency"
	"github.com/leonardcser/imoney-mcp/internal/i18n"
	"github.com/leonardcser/imoney-mcp/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var views = template.Must(template.New("").Funcs(template.FuncMap{
	"t": i18n.T,
}).ParseFS(templateFS, "templates/*.html"))

// Row is one line of the popup.
type Row struct {
	Code      string
	Name      string
	Amount    string
	Source    bool
	Available bool
}

type popupData struct {
	Lang   i18n.Language
	Source string
	Rows   []Row
}

// Item is one currency on the options page.
type Item struct {
	Code  string
	Name  string
	Fixed bool
}

type optionsData struct {
	Lang      i18n.Language
	Active    []Item
	Available []Item
}

// Popup renders the calculator for source with the converted rows.
func Popup(lang i18n.Language, source string, conv []session.Conversion) (string, error) {
	rows := make([]Row, 0, len(conv))
	for _, c := range conv {
		r := Row{
			Code:      c.Code,
			Name:      currency.DisplayName(c.Code, lang),
			Source:    c.Code == source,
			Available: c.Available,
		}
		if c.Available {
			r.Amount = c.Amount.StringFixed(2)
		}
		rows = append(rows, r)
	}
	return execute("popup.html", popupData{Lang: lang, Source: source, Rows: rows})
}

// Options renders the displayed list followed by the currencies that can still be added.
func Options(lang i18n.Language, active []string) (string, error) {
	data := optionsData{Lang: lang}
	for _, code := range active {
		data.Active = append(data.Active, Item{Code: code, Name: currency.DisplayName(code, lang), Fixed: code == currency.Base})
	}
	for _, code := range currency.Supported {
		if !slices.Contains(active, code) {
			data.Available = append(data.Available, Item{Code: code, Name: currency.DisplayName(code, lang)})
		}
	}
	return execute("options.html", data)
}

// Error is what a view shows instead of rates. Details stay in the log.
func Error(lang i18n.Language) string {
	return i18n.T(lang, "errorGeneric")
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := views.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(buf.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}
