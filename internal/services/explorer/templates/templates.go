// Package templates renders the dataset explorer page inside the shared layout.
package templates

import (
	"context"
	"io"
	"net/url"

	"github.com/a-h/templ"
	shared "github.com/louisbranch/sqlitedesk/internal/services/shared/templates"
)

// State is the explorer page state for one session.
type State int

const (
	// StateEmpty shows only the upload form.
	StateEmpty State = iota
	// StateLoaded adds the table selector.
	StateLoaded
	// StateViewing adds the selected table and its download link.
	StateViewing
)

// TableView is the selected table in display form.
type TableView struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// PageView holds the data for the explorer page.
type PageView struct {
	State    State
	Filename string
	// Kind is "script" or "database".
	Kind string
	// Size is the upload size in display form.
	Size   string
	Tables []string
	Table  TableView
}

// ExplorerPage renders the upload form and, once a dataset is loaded, the
// table selector and the selected table.
func ExplorerPage(view PageView, loc shared.Localizer) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		hw := shared.NewWriter(w)
		writeUploadForm(hw, loc)
		if view.State == StateEmpty {
			hw.Raw(`<p class="text-secondary">`)
			hw.Text(shared.T(loc, "explorer.empty"))
			hw.Raw(`</p>`)
			return hw.Err()
		}

		hw.Raw(`<p id="dataset-name" class="lead">`)
		hw.Text(shared.T(loc, "explorer.loaded_from", view.Filename))
		hw.Raw(`</p>`)
		if view.Kind != "" {
			hw.Raw(`<p id="dataset-details" class="text-secondary small">`)
			hw.Text(shared.T(loc, "explorer.details", shared.T(loc, "explorer.kind."+view.Kind), view.Size))
			hw.Raw(`</p>`)
		}
		if len(view.Tables) == 0 {
			hw.Raw(`<p class="text-secondary">`)
			hw.Text(shared.T(loc, "explorer.tables.none"))
			hw.Raw(`</p>`)
			return hw.Err()
		}
		writeTableSelector(hw, view, loc)
		if view.State == StateViewing {
			writeTable(hw, view.Table, loc)
		}
		return hw.Err()
	})
}

func writeUploadForm(hw *shared.Writer, loc shared.Localizer) {
	hw.Raw(`<form id="upload-form" method="post" action="/upload" enctype="multipart/form-data" class="mb-4">`)
	hw.Raw(`<label for="upload-file" class="form-label">`)
	hw.Text(shared.T(loc, "explorer.upload.label"))
	hw.Raw(`</label><div class="input-group">`)
	hw.Raw(`<input type="file" class="form-control" id="upload-file" name="file" accept=".db,.sqlite,.sql" required>`)
	hw.Raw(`<button type="submit" class="btn btn-primary">`)
	hw.Text(shared.T(loc, "explorer.upload.submit"))
	hw.Raw(`</button></div></form>`)
}

func writeTableSelector(hw *shared.Writer, view PageView, loc shared.Localizer) {
	hw.Raw(`<form id="table-selector" method="get" action="/" class="row g-2 align-items-center mb-3">`)
	hw.Raw(`<div class="col-auto"><label for="table-select" class="col-form-label">`)
	hw.Text(shared.T(loc, "explorer.tables.label"))
	hw.Raw(`</label></div><div class="col-auto"><select id="table-select" name="table" class="form-select">`)
	for _, name := range view.Tables {
		hw.Raw(`<option`)
		hw.Attr("value", name)
		hw.BoolAttr("selected", view.State == StateViewing && name == view.Table.Name)
		hw.Raw(`>`)
		hw.Text(name)
		hw.Raw(`</option>`)
	}
	hw.Raw(`</select></div><div class="col-auto"><button type="submit" class="btn btn-secondary">`)
	hw.Text(shared.T(loc, "explorer.tables.submit"))
	hw.Raw(`</button></div></form>`)
}

func writeTable(hw *shared.Writer, table TableView, loc shared.Localizer) {
	hw.Raw(`<div class="d-flex justify-content-between align-items-center mb-2"><h2 class="h4 mb-0">`)
	hw.Text(table.Name)
	hw.Raw(`</h2><span class="text-secondary">`)
	hw.Text(shared.T(loc, "explorer.table.summary", len(table.Rows), len(table.Columns)))
	hw.Raw(`</span><a id="download-csv" class="btn btn-success"`)
	hw.URLAttr("href", "/download?table="+url.QueryEscape(table.Name))
	hw.Raw(`>`)
	hw.Text(shared.T(loc, "explorer.download"))
	hw.Raw(`</a></div>`)

	hw.Raw(`<div class="table-responsive"><table id="dataset-table" class="table table-dark table-striped table-sm"><thead><tr>`)
	for _, column := range table.Columns {
		hw.Raw(`<th scope="col">`)
		hw.Text(column)
		hw.Raw(`</th>`)
	}
	hw.Raw(`</tr></thead><tbody>`)
	for _, row := range table.Rows {
		hw.Raw(`<tr>`)
		for _, value := range row {
			hw.Raw(`<td>`)
			hw.Text(value)
			hw.Raw(`</td>`)
		}
		hw.Raw(`</tr>`)
	}
	hw.Raw(`</tbody></table></div>`)
}
