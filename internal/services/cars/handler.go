package cars

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/louisbranch/sqlitedesk/internal/platform/storage/sqliteutil"
	"github.com/louisbranch/sqlitedesk/internal/platform/timeouts"
	"github.com/louisbranch/sqlitedesk/internal/services/cars/storage"
	carstemplates "github.com/louisbranch/sqlitedesk/internal/services/cars/templates"
	weberrors "github.com/louisbranch/sqlitedesk/internal/services/shared/errors"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/flash"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/httpx"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/i18nhttp"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/observability"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/requestmeta"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/templates"
	"golang.org/x/text/message"
)

// maxFormBytes caps add and update form bodies.
const maxFormBytes = 1 << 20

// HandlerConfig wires the cars handler dependencies.
type HandlerConfig struct {
	Store    storage.RecordStore
	IDColumn string
	// Logger receives access and error logs. Nil uses the standard logger.
	Logger *log.Logger
	// SchemePolicy decides when flash cookies are marked Secure.
	SchemePolicy requestmeta.SchemePolicy
}

// Handler serves the cars pages.
type Handler struct {
	store    storage.RecordStore
	idColumn string
	logger   *log.Logger
	flash    flash.Writer
}

// NewHandler builds the cars HTTP handler with its middleware stack.
func NewHandler(cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{
		store:    cfg.Store,
		idColumn: strings.TrimSpace(cfg.IDColumn),
		logger:   logger,
		flash:    flash.Writer{Policy: cfg.SchemePolicy},
	}
	return httpx.Chain(
		h.routes(),
		httpx.RequestID("cars"),
		observability.RequestLogger(logger),
		httpx.RecoverPanic(logger),
		httpx.LimitBody(maxFormBytes),
	)
}

func (h *Handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleList)
	mux.HandleFunc("POST /{$}", h.handleList)
	mux.HandleFunc("GET /add", h.handleAddForm)
	mux.HandleFunc("POST /add", h.handleAdd)
	mux.HandleFunc("GET /update/{id}", h.handleUpdateForm)
	mux.HandleFunc("POST /update/{id}", h.handleUpdate)
	mux.HandleFunc("GET /delete/{id}", h.handleDelete)
	mux.HandleFunc("POST /delete/{id}", h.handleDelete)
	mux.HandleFunc("GET /up", httpx.Health)
	return mux
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	loc, lang := i18nhttp.Resolve(w, r)
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, loc, lang, weberrors.Wrap(weberrors.KindInvalidInput, "cars.error.parse_form", "parse filter form", err))
		return
	}
	category := r.Form.Get("category")
	if category == "" {
		category = storage.AllCategories
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.StoreOperation)
	defer cancel()
	columns, err := h.store.Columns(ctx)
	if err != nil {
		h.renderError(w, r, loc, lang, classifyStoreError(err))
		return
	}
	categories, err := h.store.Categories(ctx)
	if err != nil {
		h.renderError(w, r, loc, lang, classifyStoreError(err))
		return
	}
	records, err := h.store.List(ctx, category)
	if err != nil {
		h.renderError(w, r, loc, lang, classifyStoreError(err))
		return
	}

	view := carstemplates.ListView{
		Categories: categories,
		Selected:   category,
		Columns:    columns,
		Rows:       make([]carstemplates.RowView, 0, len(records)),
	}
	for _, record := range records {
		row := carstemplates.RowView{ID: record.String(h.idColumn), Values: make([]string, len(columns))}
		for i, column := range columns {
			row.Values[i] = record.String(column)
		}
		view.Rows = append(view.Rows, row)
	}

	page := h.page(lang, loc.Sprintf("cars.title"))
	if notice, ok := h.flash.ReadAndClear(w, r); ok {
		page.Alerts = append(page.Alerts, templates.NoticeAlert(notice, loc))
	}
	h.render(w, r, http.StatusOK, page, carstemplates.ListPage(view, loc))
}

func (h *Handler) handleAddForm(w http.ResponseWriter, r *http.Request) {
	loc, lang := i18nhttp.Resolve(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.StoreOperation)
	defer cancel()
	columns, err := h.store.Columns(ctx)
	if err != nil {
		h.renderError(w, r, loc, lang, classifyStoreError(err))
		return
	}
	h.renderForm(w, r, loc, lang, http.StatusOK, "/add", loc.Sprintf("cars.add.title"), h.fields(columns, nil), nil)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	loc, lang := i18nhttp.Resolve(w, r)
	values, err := formValues(r)
	if err != nil {
		h.renderError(w, r, loc, lang, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.StoreOperation)
	defer cancel()
	id, err := h.store.Create(ctx, values)
	if err != nil {
		h.rerenderForm(w, r, loc, lang, "/add", loc.Sprintf("cars.add.title"), values, classifyStoreError(err))
		return
	}
	h.logger.Printf("car created id=%d", id)
	h.flash.Write(w, r, flash.NoticeSuccess("cars.notice.added"))
	httpx.WriteRedirect(w, r, "/")
}

func (h *Handler) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	loc, lang := i18nhttp.Resolve(w, r)
	id, err := pathID(r)
	if err != nil {
		h.renderError(w, r, loc, lang, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.StoreOperation)
	defer cancel()
	record, err := h.store.Get(ctx, id)
	if err != nil {
		h.renderError(w, r, loc, lang, classifyStoreError(err))
		return
	}
	current := make(storage.Values, record.Len())
	for _, column := range record.Columns() {
		current[column] = record.String(column)
	}
	idText := strconv.FormatInt(id, 10)
	h.renderForm(w, r, loc, lang, http.StatusOK, "/update/"+idText, loc.Sprintf("cars.update.title", idText), h.fields(record.Columns(), current), nil)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	loc, lang := i18nhttp.Resolve(w, r)
	id, err := pathID(r)
	if err != nil {
		h.renderError(w, r, loc, lang, err)
		return
	}
	values, err := formValues(r)
	if err != nil {
		h.renderError(w, r, loc, lang, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.StoreOperation)
	defer cancel()
	idText := strconv.FormatInt(id, 10)
	record, err := h.store.Get(ctx, id)
	if err != nil {
		h.renderError(w, r, loc, lang, classifyStoreError(err))
		return
	}
	changed := h.changedValues(record, values)
	if len(changed) > 0 || len(values) == 0 {
		if err := h.store.Update(ctx, id, changed); err != nil {
			h.rerenderForm(w, r, loc, lang, "/update/"+idText, loc.Sprintf("cars.update.title", idText), values, classifyStoreError(err))
			return
		}
	}
	h.logger.Printf("car updated id=%d columns=%d", id, len(changed))
	h.flash.Write(w, r, flash.NoticeSuccess("cars.notice.updated"))
	httpx.WriteRedirect(w, r, "/")
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	loc, lang := i18nhttp.Resolve(w, r)
	id, err := pathID(r)
	if err != nil {
		h.renderError(w, r, loc, lang, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.StoreOperation)
	defer cancel()
	if err := h.store.Delete(ctx, id); err != nil {
		h.renderError(w, r, loc, lang, classifyStoreError(err))
		return
	}
	h.logger.Printf("car deleted id=%d", id)
	h.flash.Write(w, r, flash.NoticeSuccess("cars.notice.deleted"))
	httpx.WriteRedirect(w, r, "/")
}

// changedValues drops submitted fields that still show the stored value, so
// saving an untouched form field never rewrites what the database holds.
// Keys outside the row are kept for the store to reject.
func (h *Handler) changedValues(record storage.Record, values storage.Values) storage.Values {
	changed := make(storage.Values, len(values))
	for column, value := range values {
		current, ok := record.Get(column)
		if ok && column != h.idColumn && sqliteutil.FormatValue(current) == value {
			continue
		}
		changed[column] = value
	}
	return changed
}

// rerenderForm shows a rejected submission again with its values. Errors that
// are not input problems fall through to the error page.
func (h *Handler) rerenderForm(w http.ResponseWriter, r *http.Request, loc *message.Printer, lang string, action string, title string, values storage.Values, err error) {
	if weberrors.HTTPStatus(err) != http.StatusBadRequest {
		h.renderError(w, r, loc, lang, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.StoreOperation)
	defer cancel()
	columns, colErr := h.store.Columns(ctx)
	if colErr != nil {
		h.renderError(w, r, loc, lang, classifyStoreError(colErr))
		return
	}
	alert := templates.ErrorAlert(loc.Sprintf(weberrors.LocalizationKey(err)))
	h.renderForm(w, r, loc, lang, http.StatusBadRequest, action, title, h.fields(columns, values), []templates.AlertView{alert})
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, loc *message.Printer, lang string, status int, action string, title string, fields []carstemplates.FieldView, alerts []templates.AlertView) {
	page := h.page(lang, title)
	page.Alerts = alerts
	page.Breadcrumbs = []templates.BreadcrumbItem{
		{Label: loc.Sprintf("cars.breadcrumb.list"), URL: "/"},
		{Label: title},
	}
	view := carstemplates.FormView{Action: action, Fields: fields}
	h.render(w, r, status, page, carstemplates.FormPage(view, loc))
}

// fields lists the writable columns with their current values.
func (h *Handler) fields(columns []string, values storage.Values) []carstemplates.FieldView {
	fields := make([]carstemplates.FieldView, 0, len(columns))
	for _, column := range columns {
		if column == h.idColumn {
			continue
		}
		fields = append(fields, carstemplates.FieldView{Name: column, Value: values[column]})
	}
	return fields
}

func (h *Handler) page(lang string, title string) templates.Page {
	return templates.Page{
		Title:   title,
		Heading: title,
		Lang:    lang,
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, loc *message.Printer, lang string, err error) {
	status := weberrors.HTTPStatus(err)
	key := weberrors.LocalizationKey(err)
	if key == "" {
		key = weberrors.StatusKey(status)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Printf("cars request failed method=%s path=%s status=%d err=%v", r.Method, r.URL.Path, status, err)
	}
	page := h.page(lang, loc.Sprintf("cars.title"))
	h.render(w, r, status, page, templates.ErrorState(status, loc.Sprintf(key), loc.Sprintf("core.error.back"), "/"))
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

func pathID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, weberrors.Wrap(weberrors.KindInvalidInput, "cars.error.invalid_id", "parse car id", err)
	}
	return id, nil
}

// formValues collects the first value of every submitted field.
func formValues(r *http.Request) (storage.Values, error) {
	if err := r.ParseForm(); err != nil {
		return nil, weberrors.Wrap(weberrors.KindInvalidInput, "cars.error.parse_form", "parse car form", err)
	}
	values := make(storage.Values, len(r.PostForm))
	for key, submitted := range r.PostForm {
		if len(submitted) == 0 {
			continue
		}
		values[key] = submitted[0]
	}
	return values, nil
}

func classifyStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return weberrors.Wrap(weberrors.KindNotFound, "cars.error.not_found", "car not found", err)
	case errors.Is(err, storage.ErrUnknownColumn):
		return weberrors.Wrap(weberrors.KindInvalidInput, "cars.error.unknown_column", "unknown column submitted", err)
	case errors.Is(err, storage.ErrNoValues):
		return weberrors.Wrap(weberrors.KindInvalidInput, "cars.error.no_values", "no values submitted", err)
	case errors.Is(err, storage.ErrConstraint):
		return weberrors.Wrap(weberrors.KindInvalidInput, "cars.error.constraint", "constraint violation", err)
	case errors.Is(err, sqliteutil.ErrStoreMissing):
		return weberrors.Wrap(weberrors.KindUnknown, "cars.error.store_missing", "cars database missing", err)
	case errors.Is(err, context.DeadlineExceeded):
		return weberrors.Wrap(weberrors.KindUnavailable, "core.error.unavailable", "store operation timed out", err)
	default:
		return weberrors.Wrap(weberrors.KindUnknown, "core.error.internal", "store operation failed", err)
	}
}
