package templates

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/flash"
	"golang.org/x/text/message"
)

// bootstrapCSS is the stylesheet both apps render with.
const bootstrapCSS = "https://cdn.jsdelivr.net/npm/bootstrap@5.3.0/dist/css/bootstrap.min.css"

// Page holds layout metadata for one render.
type Page struct {
	Title   string
	Heading string
	Lang    string
	Alerts  []AlertView

	// Breadcrumbs renders a trail above the heading when set.
	Breadcrumbs []BreadcrumbItem
}

// AlertView is one rendered alert box.
type AlertView struct {
	Class string
	Text  string
}

// NoticeAlert maps a flash notice to an alert using the localizer.
func NoticeAlert(notice flash.Notice, loc Localizer) AlertView {
	return AlertView{Class: notice.Kind.AlertClass(), Text: T(loc, notice.Key)}
}

// ErrorAlert builds a danger alert.
func ErrorAlert(text string) AlertView {
	return AlertView{Class: "danger", Text: text}
}

// Localizer formats catalog keys.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// T formats key with args, returning key when loc is nil.
func T(loc Localizer, key string, args ...any) string {
	if loc == nil {
		return key
	}
	return loc.Sprintf(key, args...)
}

// Layout renders the dark Bootstrap shell around the children in ctx.
func Layout(page Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		lang := strings.TrimSpace(page.Lang)
		if lang == "" {
			lang = "en-US"
		}
		hw := NewWriter(w)
		hw.Raw(`<!DOCTYPE html><html`)
		hw.Attr("lang", lang)
		hw.Raw(`><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		hw.Text(page.Title)
		hw.Raw(`</title><link`)
		hw.Attr("href", bootstrapCSS)
		hw.Raw(` rel="stylesheet"></head><body class="bg-dark text-light"><main class="container mt-4">`)
		writeBreadcrumbs(hw, page.Breadcrumbs)
		if heading := strings.TrimSpace(page.Heading); heading != "" {
			hw.Raw(`<h1 class="mb-3">`)
			hw.Text(heading)
			hw.Raw(`</h1>`)
		}
		for _, alert := range page.Alerts {
			writeAlert(hw, alert)
		}
		if err := hw.Err(); err != nil {
			return err
		}
		if err := templ.GetChildren(ctx).Render(ctx, w); err != nil {
			return err
		}
		hw.Raw(`</main></body></html>`)
		return hw.Err()
	})
}

// WithBody renders layout with body as its children.
func WithBody(layout templ.Component, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return layout.Render(templ.WithChildren(ctx, body), w)
	})
}

func writeAlert(hw *Writer, alert AlertView) {
	class := strings.TrimSpace(alert.Class)
	if class == "" {
		class = "info"
	}
	hw.Raw(`<div role="alert"`)
	hw.Attr("class", "alert alert-"+class)
	hw.Raw(`>`)
	hw.Text(alert.Text)
	hw.Raw(`</div>`)
}

// ErrorState renders the body of an error page.
func ErrorState(status int, message string, backLabel string, backURL string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		hw := NewWriter(w)
		hw.Raw(`<section id="error-state" class="py-4"><p class="display-6">`)
		hw.Text(strconv.Itoa(status))
		hw.Raw(`</p><p class="lead">`)
		hw.Text(message)
		hw.Raw(`</p>`)
		if backURL != "" {
			hw.Raw(`<a class="btn btn-secondary"`)
			hw.URLAttr("href", backURL)
			hw.Raw(`>`)
			hw.Text(backLabel)
			hw.Raw(`</a>`)
		}
		hw.Raw(`</section>`)
		return hw.Err()
	})
}
