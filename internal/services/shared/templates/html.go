// Package templates holds the page chrome shared by the sqlitedesk apps:
// the Bootstrap layout, flash alerts and the error page.
package templates

import (
	"io"

	"github.com/a-h/templ"
)

// Writer accumulates the first write error so components can emit markup
// without checking every call.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Raw writes trusted markup.
func (hw *Writer) Raw(markup string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, markup)
}

// Text writes s HTML-escaped.
func (hw *Writer) Text(s string) {
	hw.Raw(templ.EscapeString(s))
}

// Attr writes ` name="value"` with value escaped.
func (hw *Writer) Attr(name string, value string) {
	hw.Raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

// URLAttr writes a URL attribute, replacing unsafe schemes.
func (hw *Writer) URLAttr(name string, value string) {
	hw.Attr(name, string(templ.URL(value)))
}

// BoolAttr writes name when on is true.
func (hw *Writer) BoolAttr(name string, on bool) {
	if on {
		hw.Raw(" " + name)
	}
}

// Err returns the first write error.
func (hw *Writer) Err() error {
	return hw.err
}
