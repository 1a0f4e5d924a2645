// Package templates renders the cars pages inside the shared layout.
package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
	shared "github.com/louisbranch/sqlitedesk/internal/services/shared/templates"
)

// RowView is one table row: its identity and the display values in column
// order.
type RowView struct {
	ID     string
	Values []string
}

// ListView holds the data for the list page.
type ListView struct {
	Categories []string
	Selected   string
	Columns    []string
	Rows       []RowView
}

// FieldView is one form input.
type FieldView struct {
	Name  string
	Value string
}

// FormView holds the data for the add and update forms.
type FormView struct {
	Action string
	Fields []FieldView
}

// ListPage renders the filter bar and the cars table.
func ListPage(view ListView, loc shared.Localizer) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		hw := shared.NewWriter(w)
		allLabel := shared.T(loc, "cars.filter.all")

		hw.Raw(`<form id="cars-filter" method="post" action="/" class="row g-2 align-items-center mb-3">`)
		hw.Raw(`<div class="col-auto"><select name="category" class="form-select">`)
		writeOption(hw, "All", allLabel, view.Selected == "" || view.Selected == "All")
		for _, category := range view.Categories {
			writeOption(hw, category, category, category == view.Selected)
		}
		hw.Raw(`</select></div><div class="col-auto"><button type="submit" class="btn btn-primary">`)
		hw.Text(shared.T(loc, "cars.filter.submit"))
		hw.Raw(`</button> <a class="btn btn-success" href="/add">`)
		hw.Text(shared.T(loc, "cars.action.add"))
		hw.Raw(`</a> <a class="btn btn-secondary" href="/">`)
		hw.Text(shared.T(loc, "cars.action.refresh"))
		hw.Raw(`</a></div></form>`)

		hw.Raw(`<table id="cars-table" class="table table-dark table-striped table-bordered"><thead><tr>`)
		for _, column := range view.Columns {
			hw.Raw(`<th scope="col">`)
			hw.Text(column)
			hw.Raw(`</th>`)
		}
		hw.Raw(`<th scope="col">`)
		hw.Text(shared.T(loc, "cars.column.actions"))
		hw.Raw(`</th></tr></thead><tbody>`)
		if len(view.Rows) == 0 {
			hw.Raw(`<tr><td class="text-center text-secondary"`)
			hw.Attr("colspan", strconv.Itoa(len(view.Columns)+1))
			hw.Raw(`>`)
			hw.Text(shared.T(loc, "cars.empty"))
			hw.Raw(`</td></tr>`)
		}
		for _, row := range view.Rows {
			hw.Raw(`<tr>`)
			for _, value := range row.Values {
				hw.Raw(`<td>`)
				hw.Text(value)
				hw.Raw(`</td>`)
			}
			hw.Raw(`<td class="text-nowrap"><a class="btn btn-sm btn-warning"`)
			hw.URLAttr("href", "/update/"+row.ID)
			hw.Raw(`>`)
			hw.Text(shared.T(loc, "cars.action.edit"))
			hw.Raw(`</a> <a class="btn btn-sm btn-danger"`)
			hw.URLAttr("href", "/delete/"+row.ID)
			hw.Raw(`>`)
			hw.Text(shared.T(loc, "cars.action.delete"))
			hw.Raw(`</a></td></tr>`)
		}
		hw.Raw(`</tbody></table>`)
		return hw.Err()
	})
}

// FormPage renders one text input per writable column.
func FormPage(view FormView, loc shared.Localizer) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		hw := shared.NewWriter(w)
		hw.Raw(`<form id="car-form" method="post"`)
		hw.URLAttr("action", view.Action)
		hw.Raw(`>`)
		for _, field := range view.Fields {
			inputID := "field-" + field.Name
			hw.Raw(`<div class="mb-3"><label class="form-label"`)
			hw.Attr("for", inputID)
			hw.Raw(`>`)
			hw.Text(field.Name)
			hw.Raw(`</label><input type="text" class="form-control bg-dark text-light"`)
			hw.Attr("id", inputID)
			hw.Attr("name", field.Name)
			hw.Attr("value", field.Value)
			hw.Raw(`></div>`)
		}
		hw.Raw(`<button type="submit" class="btn btn-primary">`)
		hw.Text(shared.T(loc, "cars.form.save"))
		hw.Raw(`</button> <a class="btn btn-secondary" href="/">`)
		hw.Text(shared.T(loc, "cars.form.cancel"))
		hw.Raw(`</a></form>`)
		return hw.Err()
	})
}

func writeOption(hw *shared.Writer, value string, label string, selected bool) {
	hw.Raw(`<option`)
	hw.Attr("value", value)
	hw.BoolAttr("selected", selected)
	hw.Raw(`>`)
	hw.Text(label)
	hw.Raw(`</option>`)
}
