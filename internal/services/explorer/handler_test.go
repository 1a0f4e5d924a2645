package explorer

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/louisbranch/sqlitedesk/internal/platform/storage/sqliteutil"
	"github.com/louisbranch/sqlitedesk/internal/services/explorer/session"
)

type testApp struct {
	handler   http.Handler
	registry  *session.Registry
	uploadDir string
}

func newTestApp(t *testing.T, maxUpload int64) testApp {
	t.Helper()

	uploadDir := t.TempDir()
	registry := session.NewRegistry(time.Hour)
	t.Cleanup(func() { _ = registry.Close() })
	handler := NewHandler(HandlerConfig{
		Registry:       registry,
		UploadDir:      uploadDir,
		MaxUploadBytes: maxUpload,
		Logger:         log.New(io.Discard, "", 0),
	})
	return testApp{handler: handler, registry: registry, uploadDir: uploadDir}
}

func (a testApp) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == session.CookieName {
			return cookie
		}
	}
	t.Fatalf("expected session cookie, got %v", rec.Header().Values("Set-Cookie"))
	return nil
}

func databaseBytes(t *testing.T) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.db")
	db, err := sql.Open(sqliteutil.DriverName, path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	_, err = db.Exec(`
CREATE TABLE A (id INTEGER PRIMARY KEY, label TEXT);
CREATE TABLE B (id INTEGER PRIMARY KEY, amount REAL);
INSERT INTO A (label) VALUES ('x'), ('y, z'), (NULL);
`)
	if closeErr := db.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		t.Fatalf("seed fixture: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	return len(entries)
}

func TestIndexWithoutDatasetShowsUploadForm(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, 0)
	rec := app.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `id="upload-form"`) || !strings.Contains(body, "Upload a file to begin.") {
		t.Fatalf("expected empty state: %q", body)
	}
	if strings.Contains(body, `id="table-selector"`) {
		t.Fatalf("empty session shows table selector: %q", body)
	}
}

func TestUploadScriptThenViewTable(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, 0)
	script := "CREATE TABLE T (a INTEGER, b TEXT); INSERT INTO T VALUES (1, 'one'), (2, 'two'), (3, NULL);"
	rec := app.do(uploadRequest(t, "seed.sql", []byte(script)))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Fatalf("upload status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
	cookie := sessionCookie(t, rec)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/", nil), cookie)
	body := rec.Body.String()
	details := "SQL script, " + humanize.Bytes(uint64(len(script)))
	for _, marker := range []string{"Dataset loaded.", "Browsing seed.sql", details, `<option value="T">T</option>`} {
		if !strings.Contains(body, marker) {
			t.Fatalf("loaded page missing %q: %q", marker, body)
		}
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/?table=T", nil), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("view status = %d", rec.Code)
	}
	body = rec.Body.String()
	for _, marker := range []string{"3 rows, 2 columns", `<td>two</td>`, `href="/download?table=T"`, `<option value="T" selected>`} {
		if !strings.Contains(body, marker) {
			t.Fatalf("viewing page missing %q: %q", marker, body)
		}
	}
	if strings.Count(body, "<tr>") != 4 {
		t.Fatalf("expected header plus three rows: %q", body)
	}
}

func TestUploadDatabaseListsTablesAndDownloadsCSV(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, 0)
	rec := app.do(uploadRequest(t, "shop.db", databaseBytes(t)))
	if rec.Code != http.StatusFound {
		t.Fatalf("upload status = %d: %q", rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(t, rec)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/", nil), cookie)
	body := rec.Body.String()
	if !strings.Contains(body, `<option value="A">A</option>`) || !strings.Contains(body, `<option value="B">B</option>`) {
		t.Fatalf("expected tables A and B: %q", body)
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/download?table=A", nil), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv; charset=utf-8" {
		t.Fatalf("content type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="A.csv"` {
		t.Fatalf("content disposition = %q", got)
	}
	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	want := [][]string{{"id", "label"}, {"1", "x"}, {"2", "y, z"}, {"3", ""}}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("csv = %v, want %v", records, want)
	}
}

func TestDownloadNotFoundCases(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, 0)
	rec := app.do(httptest.NewRequest(http.MethodGet, "/download?table=A", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no dataset status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = app.do(uploadRequest(t, "seed.sql", []byte("CREATE TABLE T (a INTEGER);")))
	cookie := sessionCookie(t, rec)
	for _, target := range []string{"/download?table=missing", "/download", "/?table=missing"} {
		rec = app.do(httptest.NewRequest(http.MethodGet, target, nil), cookie)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s status = %d, want %d", target, rec.Code, http.StatusNotFound)
		}
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		maxBytes int64
		status   int
		message  string
	}{
		{
			name:    "unsupported extension",
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "data.csv", []byte("a,b")) },
			status:  http.StatusBadRequest,
			message: "Unsupported file type. Use .db, .sqlite or .sql.",
		},
		{
			name:    "malformed script",
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "bad.sql", []byte("CREATE TABLE (")) },
			status:  http.StatusBadRequest,
			message: "The SQL script could not be executed.",
		},
		{
			name: "invalid database",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "junk.sqlite", []byte(strings.Repeat("not sqlite ", 128)))
			},
			status:  http.StatusBadRequest,
			message: "The file is not a valid SQLite database.",
		},
		{
			name: "missing file",
			req: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x=1"))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return req
			},
			status:  http.StatusBadRequest,
			message: "Choose a file to upload.",
		},
		{
			name:     "too large",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "big.sql", bytes.Repeat([]byte("-"), 64)) },
			maxBytes: 16,
			status:   http.StatusRequestEntityTooLarge,
			message:  "The upload exceeds the size limit.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t, tc.maxBytes)
			rec := app.do(tc.req(t))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if !strings.Contains(rec.Body.String(), tc.message) {
				t.Fatalf("body missing %q: %q", tc.message, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `id="upload-form"`) {
				t.Fatal("expected upload form re-rendered")
			}
			if app.registry.Len() != 0 || countFiles(t, app.uploadDir) != 0 {
				t.Fatalf("failed upload left state: sessions=%d files=%d", app.registry.Len(), countFiles(t, app.uploadDir))
			}
		})
	}
}

func TestSessionsAreIsolatedAndReuploadReplaces(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, 0)
	data := databaseBytes(t)

	first := sessionCookie(t, app.do(uploadRequest(t, "one.db", data)))
	second := sessionCookie(t, app.do(uploadRequest(t, "two.db", data)))
	if first.Value == second.Value {
		t.Fatal("sessions share an id")
	}
	if got := countFiles(t, app.uploadDir); got != 2 {
		t.Fatalf("upload files = %d, want 2", got)
	}

	rec := app.do(uploadRequest(t, "three.sql", []byte("CREATE TABLE C (x INTEGER);")), first)
	if rec.Code != http.StatusFound {
		t.Fatalf("reupload status = %d", rec.Code)
	}
	if got := countFiles(t, app.uploadDir); got != 1 {
		t.Fatalf("upload files after replace = %d, want 1", got)
	}

	body := app.do(httptest.NewRequest(http.MethodGet, "/", nil), first).Body.String()
	if !strings.Contains(body, "Browsing three.sql") || strings.Contains(body, `<option value="A">`) {
		t.Fatalf("first session not replaced: %q", body)
	}
	body = app.do(httptest.NewRequest(http.MethodGet, "/", nil), second).Body.String()
	if !strings.Contains(body, "Browsing two.db") || !strings.Contains(body, "SQLite database, ") {
		t.Fatalf("second session affected: %q", body)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, 0)
	rec := app.do(httptest.NewRequest(http.MethodGet, "/up", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
