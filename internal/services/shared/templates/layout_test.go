package templates

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/flash"
	"golang.org/x/text/message"
)

type echoLocalizer struct{}

func (echoLocalizer) Sprintf(key message.Reference, args ...any) string {
	return "T(" + key.(string) + ")"
}

func TestLayoutRendersChromeAlertsAndChildren(t *testing.T) {
	t.Parallel()

	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<p id="child">child</p>`)
		return err
	})
	page := Page{
		Title:   "Cars <list>",
		Heading: "Car Management System",
		Lang:    "pt-BR",
		Alerts: []AlertView{
			NoticeAlert(flash.Notice{Kind: flash.KindError, Key: "cars.notice.deleted"}, echoLocalizer{}),
			ErrorAlert(`<script>alert(1)</script>`),
		},
		Breadcrumbs: []BreadcrumbItem{{Label: "Cars", URL: "/"}, {Label: "Add"}},
	}

	var buf bytes.Buffer
	if err := WithBody(Layout(page), body).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render layout: %v", err)
	}
	got := buf.String()
	for _, marker := range []string{
		`<html lang="pt-BR">`,
		`<title>Cars &lt;list&gt;</title>`,
		`class="bg-dark text-light"`,
		`<h1 class="mb-3">Car Management System</h1>`,
		`class="alert alert-danger"`,
		`T(cars.notice.deleted)`,
		`&lt;script&gt;`,
		`<a class="link-light" href="/">Cars</a>`,
		`aria-current="page">Add</li>`,
		`<p id="child">child</p>`,
		`</main></body></html>`,
	} {
		if !strings.Contains(got, marker) {
			t.Fatalf("layout missing marker %q: %q", marker, got)
		}
	}
	if strings.Contains(got, "<script>") {
		t.Fatalf("layout rendered unescaped script: %q", got)
	}
}

func TestLayoutWithoutChildrenDefaultsLanguage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Layout(Page{Title: "x"}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render layout: %v", err)
	}
	if !strings.Contains(buf.String(), `<html lang="en-US">`) {
		t.Fatalf("expected default language: %q", buf.String())
	}
}

func TestErrorStateRendersStatusAndBackLink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := ErrorState(404, "Car not found.", "Back", "/").Render(context.Background(), &buf); err != nil {
		t.Fatalf("render error state: %v", err)
	}
	got := buf.String()
	for _, marker := range []string{`id="error-state"`, ">404<", "Car not found.", `href="/"`, ">Back</a>"} {
		if !strings.Contains(got, marker) {
			t.Fatalf("error state missing %q: %q", marker, got)
		}
	}
}

func TestWriterURLAttrRejectsUnsafeScheme(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	hw := NewWriter(&buf)
	hw.URLAttr("href", "javascript:alert(1)")
	if strings.Contains(buf.String(), "javascript") {
		t.Fatalf("unsafe URL rendered: %q", buf.String())
	}
	if hw.Err() != nil {
		t.Fatalf("unexpected writer error: %v", hw.Err())
	}
}

func TestTFallsBackToKey(t *testing.T) {
	t.Parallel()

	if got := T(nil, "cars.title"); got != "cars.title" {
		t.Fatalf("T(nil) = %q", got)
	}
}
