package explorer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
	"github.com/louisbranch/sqlitedesk/internal/services/explorer/dataset"
	"github.com/louisbranch/sqlitedesk/internal/services/explorer/session"
	explorertemplates "github.com/louisbranch/sqlitedesk/internal/services/explorer/templates"
	weberrors "github.com/louisbranch/sqlitedesk/internal/services/shared/errors"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/flash"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/httpx"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/i18nhttp"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/observability"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/requestmeta"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/templates"
	"golang.org/x/text/message"
)

// DefaultMaxUploadBytes caps uploads when no limit is configured.
const DefaultMaxUploadBytes = 64 << 20

// multipartOverhead leaves room for multipart framing around the file part.
const multipartOverhead = 1 << 20

// HandlerConfig wires the explorer handler dependencies.
type HandlerConfig struct {
	Registry       *session.Registry
	UploadDir      string
	MaxUploadBytes int64
	// Logger receives access and error logs. Nil uses the standard logger.
	Logger       *log.Logger
	SchemePolicy requestmeta.SchemePolicy
}

// Handler serves the explorer pages.
type Handler struct {
	registry       *session.Registry
	uploadDir      string
	maxUploadBytes int64
	logger         *log.Logger
	flash          flash.Writer
	cookies        session.Cookies
}

// NewHandler builds the explorer HTTP handler with its middleware stack.
func NewHandler(cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	registry := cfg.Registry
	if registry == nil {
		registry = session.NewRegistry(session.DefaultTTL)
	}
	h := &Handler{
		registry:       registry,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: maxUpload,
		logger:         logger,
		flash:          flash.Writer{Policy: cfg.SchemePolicy},
		cookies:        session.Cookies{Policy: cfg.SchemePolicy},
	}
	return httpx.Chain(
		h.routes(),
		httpx.RequestID("explorer"),
		observability.RequestLogger(logger),
		httpx.RecoverPanic(logger),
		httpx.LimitBody(maxUpload+multipartOverhead),
	)
}

func (h *Handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /upload", h.handleUpload)
	mux.HandleFunc("GET /download", h.handleDownload)
	mux.HandleFunc("GET /up", httpx.Health)
	return mux
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	loc, lang := i18nhttp.Resolve(w, r)
	page := h.page(loc, lang)
	if notice, ok := h.flash.ReadAndClear(w, r); ok {
		page.Alerts = append(page.Alerts, templates.NoticeAlert(notice, loc))
	}

	ds, ok := h.currentDataset(r)
	if !ok {
		h.render(w, r, http.StatusOK, page, explorertemplates.ExplorerPage(explorertemplates.PageView{State: explorertemplates.StateEmpty}, loc))
		return
	}
	view, err := h.datasetView(r, ds, strings.TrimSpace(r.URL.Query().Get("table")))
	if err != nil {
		h.renderError(w, r, loc, lang, err)
		return
	}
	h.render(w, r, http.StatusOK, page, explorertemplates.ExplorerPage(view, loc))
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	loc, lang := i18nhttp.Resolve(w, r)
	filename, data, err := h.readUpload(r)
	var loadedDigest string
	if err == nil {
		var ds *dataset.Dataset
		ds, err = dataset.Load(r.Context(), h.uploadDir, filename, data)
		if err == nil {
			loadedDigest = ds.Digest()
			err = h.register(w, r, ds)
		}
	}
	if err != nil {
		appErr := classifyUploadError(err)
		if weberrors.HTTPStatus(appErr) >= http.StatusInternalServerError {
			h.renderError(w, r, loc, lang, appErr)
			return
		}
		h.rerenderWithAlert(w, r, loc, lang, appErr)
		return
	}
	h.logger.Printf("dataset loaded file=%q bytes=%d digest=%s", filename, len(data), loadedDigest)
	h.flash.Write(w, r, flash.NoticeSuccess("explorer.notice.loaded"))
	httpx.WriteRedirect(w, r, "/")
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	loc, lang := i18nhttp.Resolve(w, r)
	ds, ok := h.currentDataset(r)
	if !ok {
		h.renderError(w, r, loc, lang, weberrors.EK(weberrors.KindNotFound, "explorer.error.no_dataset", "no dataset for session"))
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("table"))
	table, err := ds.Table(r.Context(), name)
	if err != nil {
		h.renderError(w, r, loc, lang, classifyTableError(err))
		return
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		h.renderError(w, r, loc, lang, weberrors.Wrap(weberrors.KindUnknown, "core.error.internal", "write csv", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, dataset.CSVFilename(table.Name)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// readUpload returns the name and bytes of the multipart "file" field.
func (h *Handler) readUpload(r *http.Request) (string, []byte, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return "", nil, err
	}
	if int64(len(data)) > h.maxUploadBytes {
		return "", nil, &http.MaxBytesError{Limit: h.maxUploadBytes}
	}
	return header.Filename, data, nil
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, ds *dataset.Dataset) error {
	sessionID, err := h.cookies.Ensure(w, r)
	if err != nil {
		_ = ds.Close()
		return err
	}
	h.registry.Put(sessionID, ds)
	return nil
}

func (h *Handler) currentDataset(r *http.Request) (*dataset.Dataset, bool) {
	sessionID, ok := h.cookies.ID(r)
	if !ok {
		return nil, false
	}
	return h.registry.Get(sessionID)
}

// datasetView builds the loaded or viewing page state for ds.
func (h *Handler) datasetView(r *http.Request, ds *dataset.Dataset, selected string) (explorertemplates.PageView, error) {
	tables, err := ds.Tables(r.Context())
	if err != nil {
		return explorertemplates.PageView{}, classifyTableError(err)
	}
	view := explorertemplates.PageView{
		State:    explorertemplates.StateLoaded,
		Filename: ds.Filename(),
		Kind:     string(ds.Kind()),
		Size:     humanize.Bytes(uint64(ds.Size())),
		Tables:   tables,
	}
	if selected == "" {
		return view, nil
	}
	table, err := ds.Table(r.Context(), selected)
	if err != nil {
		return explorertemplates.PageView{}, classifyTableError(err)
	}
	view.State = explorertemplates.StateViewing
	view.Table = explorertemplates.TableView{
		Name:    table.Name,
		Columns: table.Columns,
		Rows:    make([][]string, len(table.Rows)),
	}
	for i, row := range table.Rows {
		view.Table.Rows[i] = row.Strings()
	}
	return view, nil
}

// rerenderWithAlert shows the page for the session's current state with an
// inline error, keeping any previously loaded dataset.
func (h *Handler) rerenderWithAlert(w http.ResponseWriter, r *http.Request, loc *message.Printer, lang string, err error) {
	page := h.page(loc, lang)
	page.Alerts = []templates.AlertView{templates.ErrorAlert(loc.Sprintf(weberrors.LocalizationKey(err)))}
	view := explorertemplates.PageView{State: explorertemplates.StateEmpty}
	if ds, ok := h.currentDataset(r); ok {
		if loaded, viewErr := h.datasetView(r, ds, ""); viewErr == nil {
			view = loaded
		}
	}
	h.render(w, r, weberrors.HTTPStatus(err), page, explorertemplates.ExplorerPage(view, loc))
}

func (h *Handler) page(loc *message.Printer, lang string) templates.Page {
	title := loc.Sprintf("explorer.title")
	return templates.Page{Title: title, Heading: title, Lang: lang}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, loc *message.Printer, lang string, err error) {
	status := weberrors.HTTPStatus(err)
	key := weberrors.LocalizationKey(err)
	if key == "" {
		key = weberrors.StatusKey(status)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Printf("explorer request failed method=%s path=%s status=%d err=%v", r.Method, r.URL.Path, status, err)
	}
	h.render(w, r, status, h.page(loc, lang), templates.ErrorState(status, loc.Sprintf(key), loc.Sprintf("core.error.back"), "/"))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page templates.Page, body templ.Component) {
	var buf bytes.Buffer
	if err := templates.WithBody(templates.Layout(page), body).Render(r.Context(), &buf); err != nil {
		h.logger.Printf("render %s: %v", r.URL.Path, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func classifyUploadError(err error) error {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return weberrors.Wrap(weberrors.KindTooLarge, "explorer.error.too_large", "upload too large", err)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return weberrors.Wrap(weberrors.KindInvalidInput, "explorer.error.missing_file", "missing upload", err)
	case errors.Is(err, dataset.ErrUnsupportedType):
		return weberrors.Wrap(weberrors.KindInvalidInput, "explorer.error.unsupported", "unsupported upload", err)
	case errors.Is(err, dataset.ErrMalformedScript):
		return weberrors.Wrap(weberrors.KindInvalidInput, "explorer.error.malformed_script", "malformed script", err)
	case errors.Is(err, dataset.ErrInvalidDatabase):
		return weberrors.Wrap(weberrors.KindInvalidInput, "explorer.error.invalid_database", "invalid database", err)
	default:
		return weberrors.Wrap(weberrors.KindUnknown, "core.error.internal", "load upload", err)
	}
}

func classifyTableError(err error) error {
	switch {
	case errors.Is(err, dataset.ErrUnknownTable):
		return weberrors.Wrap(weberrors.KindNotFound, "explorer.error.unknown_table", "unknown table", err)
	case errors.Is(err, dataset.ErrClosed):
		return weberrors.Wrap(weberrors.KindNotFound, "explorer.error.no_dataset", "dataset closed", err)
	default:
		return weberrors.Wrap(weberrors.KindUnknown, "core.error.internal", "read dataset", err)
	}
}
