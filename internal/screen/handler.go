package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/modal"
	"github.com/ecclesia/ecclesia/internal/platform/httpx"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/shared"
	"github.com/ecclesia/ecclesia/internal/view"
)

const maxPhotoBytes = 5 << 20

// ExportObserver records export outcomes. Implemented by observability.Metrics.
type ExportObserver interface {
	ObserveExport(format string, err error)
}

// Deps groups the collaborators shared by every screen.
type Deps struct {
	Logger     *slog.Logger
	Templates  *view.Engine
	CSRF       *shared.CSRFManager
	Exports    ExportObserver
	Normalizer *export.Normalizer
	Validator  *modal.Validator
	RBAC       rbac.Middleware
	PageSize   int
	// Submissions rejects replayed modal forms; nil disables the check.
	Submissions *shared.IdempotencyStore
}

// Handler serves one list screen.
type Handler[T any, F any] struct {
	def  Definition[T, F]
	deps Deps
}

// NewHandler constructs a Handler. The definition must carry at least one tab.
func NewHandler[T any, F any](def Definition[T, F], deps Deps) *Handler[T, F] {
	if len(def.Tabs) == 0 {
		panic("screen: " + def.Name + " has no tab")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Validator == nil {
		deps.Validator = modal.NewValidator()
	}
	if deps.Normalizer == nil {
		deps.Normalizer = export.NewNormalizer(export.DefaultCurrency)
	}
	if deps.PageSize < 1 {
		deps.PageSize = 10
	}
	def.BasePath = strings.TrimRight(def.BasePath, "/")
	return &Handler[T, F]{def: def, deps: deps}
}

// MountRoutes registers the screen routes on r.
func (h *Handler[T, F]) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/api", h.api)
	r.Get("/filters", h.showFilters)
	r.Post("/filters", h.applyFilters)
	r.Post("/filters/clear", h.clearFilters)
	r.With(httprate.LimitByIP(20, time.Minute)).Get("/export", h.export)
	r.Group(func(r chi.Router) {
		r.Use(h.deps.RBAC.RequirePolicy(h.def.Writers))
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}", h.update)
		r.Get("/{id}/delete", h.showDelete)
		r.Post("/{id}/delete", h.remove)
	})
}

// ListURL is the screen's landing URL.
func (h *Handler[T, F]) ListURL() string {
	return h.def.BasePath + "/"
}

// ItemURL addresses a per-row route.
func (h *Handler[T, F]) ItemURL(id, suffix string) string {
	u := h.def.BasePath + "/" + id
	if suffix != "" {
		u += "/" + suffix
	}
	return u
}

// Logger returns the screen logger.
func (h *Handler[T, F]) Logger() *slog.Logger {
	return h.deps.Logger.With(slog.String("screen", h.def.Name))
}

// Validator returns the shared form validator.
func (h *Handler[T, F]) Validator() *modal.Validator {
	return h.deps.Validator
}

// Find fetches one entity from the active tab.
func (h *Handler[T, F]) Find(r *http.Request, id string) (T, error) {
	state := h.loadState(shared.SessionFromContext(r.Context()))
	return h.def.tab(state.Tab).Source.Get(r.Context(), id)
}

// Label names an entity for headings.
func (h *Handler[T, F]) Label(item T) string {
	if h.def.Label != nil {
		return h.def.Label(item)
	}
	return h.def.ID(item)
}

// RenderModal renders the list with m open on top of it.
func (h *Handler[T, F]) RenderModal(w http.ResponseWriter, r *http.Request, status int, m *ModalView) {
	if m != nil && m.Submission == "" {
		m.Submission = shared.NewSubmissionKey()
	}
	state := h.loadState(shared.SessionFromContext(r.Context()))
	h.render(w, r, status, state, m)
}

// Claim marks the posted submission key as used for action. It reports false,
// after redirecting to the list, when the form was already sent. The returned
// release frees the key again so a failed submission can be retried.
func (h *Handler[T, F]) Claim(w http.ResponseWriter, r *http.Request, action string) (func(), bool) {
	store := h.deps.Submissions
	if store == nil {
		return func() {}, true
	}
	module := h.def.Name + ":" + action
	key := r.PostFormValue(shared.SubmissionField)
	err := store.CheckAndInsert(r.Context(), key, module)
	switch {
	case err == nil:
		return func() {
			if err := store.Delete(context.WithoutCancel(r.Context()), key, module); err != nil {
				h.Logger().Warn("release submission", slog.String("module", module), slog.Any("error", err))
			}
		}, true
	case errors.Is(err, shared.ErrIdempotencyConflict):
		h.Logger().Info("duplicate submission ignored", slog.String("module", module))
		h.Done(w, r, shared.FlashInfo, "Ce formulaire a déjà été envoyé")
		return nil, false
	case errors.Is(err, shared.ErrIdempotencyKeyMissing):
		h.Done(w, r, shared.FlashError, "Formulaire expiré, veuillez réessayer")
		return nil, false
	default:
		h.Logger().Warn("claim submission", slog.String("module", module), slog.Any("error", err))
		return func() {}, true
	}
}

// Done flashes msg and sends the browser back to the list, which refetches.
func (h *Handler[T, F]) Done(w http.ResponseWriter, r *http.Request, kind, msg string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && msg != "" {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: msg})
	}
	http.Redirect(w, r, h.ListURL(), http.StatusSeeOther)
}

// Fail logs err and reports msg to the user. An expired API token ends the
// session instead.
func (h *Handler[T, F]) Fail(w http.ResponseWriter, r *http.Request, op string, err error, msg string) {
	if h.expired(w, r, err) {
		return
	}
	h.Logger().Error(op, slog.Any("error", err))
	if detail := apiclient.ServerMessage(err); detail != "" {
		msg = msg + " : " + detail
	}
	h.Done(w, r, shared.FlashError, msg)
}

func (h *Handler[T, F]) list(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	state := h.applyParams(h.loadState(sess), r)
	h.saveState(sess, state)
	h.render(w, r, http.StatusOK, state, nil)
}

func (h *Handler[T, F]) api(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	state := h.applyParams(h.loadState(sess), r)
	h.saveState(sess, state)
	items, err := h.def.tab(state.Tab).Source.List(r.Context())
	if err != nil {
		h.Logger().Error("fetch collection", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	filtered := h.def.Spec.Apply(items, state.Query, h.def.now())
	page := listing.Paginate(filtered, state.Page, h.deps.PageSize)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"tab":         state.Tab,
		"items":       page.Items,
		"page":        page.Page,
		"total_pages": page.TotalPages,
		"total":       page.Total,
		"start":       page.StartIndex,
		"end":         page.EndIndex,
	})
}

func (h *Handler[T, F]) showFilters(w http.ResponseWriter, r *http.Request) {
	state := h.loadState(shared.SessionFromContext(r.Context()))
	fields, _ := filterViews(h.def.filtersFor(h.def.tab(state.Tab)), state.Query.Filters)
	m := &ModalView{
		Title:       "Filtrer " + strings.ToLower(h.def.Title),
		Action:      h.def.BasePath + "/filters",
		CancelURL:   h.ListURL(),
		Submit:      "Appliquer",
		ClearAction: h.def.BasePath + "/filters/clear",
		Fields:      fields,
		State:       modal.Pristine.String(),
	}
	h.render(w, r, http.StatusOK, state, m)
}

func (h *Handler[T, F]) applyFilters(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	state := h.loadState(sess)
	query := state.Query
	filters := listing.FilterState{}
	for _, f := range h.def.filtersFor(h.def.tab(state.Tab)) {
		if v := strings.TrimSpace(r.PostForm.Get(f.Name)); v != "" {
			filters[f.Name] = v
		}
	}
	query.Filters = filters
	h.saveState(sess, state.WithQuery(query))
	http.Redirect(w, r, h.ListURL(), http.StatusSeeOther)
}

func (h *Handler[T, F]) clearFilters(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	h.saveState(sess, h.loadState(sess).Clear())
	http.Redirect(w, r, h.ListURL(), http.StatusSeeOther)
}

func (h *Handler[T, F]) export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.Done(w, r, shared.FlashError, "Format d'export inconnu")
		return
	}
	state := h.loadState(shared.SessionFromContext(r.Context()))
	tab := h.def.tab(state.Tab)
	items, err := tab.Source.List(r.Context())
	if err != nil {
		h.observeExport(format, err)
		h.Fail(w, r, "fetch collection for export", err, "L'export a échoué")
		return
	}

	now := h.def.now()
	filtered := h.def.Spec.Apply(items, state.Query, now)
	meta := export.Meta{Title: h.exportTitle(tab), GeneratedAt: now, Reference: export.NewReference()}
	if principal := shared.PrincipalFromContext(r.Context()); principal != nil {
		meta.ChurchName = principal.ChurchName
	}
	data, err := h.renderExport(tab, format, filtered, meta)
	h.observeExport(format, err)
	if err != nil {
		h.Fail(w, r, "render export", err, "L'export a échoué")
		return
	}
	h.Logger().Info("export", slog.String("format", string(format)), slog.String("reference", meta.Reference))
	w.Header().Set(export.ReferenceHeader, meta.Reference)
	if err := httpx.Attachment(w, export.ContentType(format), export.Filename(tab.ExportName, format), data); err != nil {
		h.Logger().Warn("write export", slog.Any("error", err))
	}
}

func (h *Handler[T, F]) renderExport(tab Tab[T], format export.Format, items []T, meta export.Meta) ([]byte, error) {
	report, err := export.Build(h.deps.Normalizer, tab.Kind, tab.ExportName, items, meta)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.Export(&buf, format, report); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *Handler[T, F]) exportTitle(tab Tab[T]) string {
	if len(h.def.Tabs) > 1 {
		return h.def.Title + " - " + tab.Label
	}
	return "Liste des " + strings.ToLower(h.def.Title)
}

func (h *Handler[T, F]) observeExport(format export.Format, err error) {
	if h.deps.Exports != nil {
		h.deps.Exports.ObserveExport(string(format), err)
	}
}

// Dialog pairs a modal shell with the selection it acts on.
type Dialog[F any] struct {
	Shell     *modal.Shell[F]
	Selection Selection
}

// OpenDialog opens a shell seeded with initial for sel. Closing the shell
// clears the selection.
func OpenDialog[F any](v *modal.Validator, sel Selection, initial F) *Dialog[F] {
	d := &Dialog[F]{Shell: modal.NewShell[F](v), Selection: sel}
	d.Shell.OnClose(func() { d.Selection = Selection{} })
	d.Shell.Open(initial)
	return d
}

func (h *Handler[T, F]) scope(r *http.Request) Scope {
	state := h.loadState(shared.SessionFromContext(r.Context()))
	return Scope{Tab: state.Tab, Principal: shared.PrincipalFromContext(r.Context())}
}

func (h *Handler[T, F]) showCreate(w http.ResponseWriter, r *http.Request) {
	scope := h.scope(r)
	d := OpenDialog(h.deps.Validator, Selection{Action: ActionCreate}, h.def.NewForm(scope))
	h.RenderModal(w, r, http.StatusOK, h.formModal(h.def.tab(scope.Tab), d, nil))
}

func (h *Handler[T, F]) showEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.Find(r, id)
	if err != nil {
		h.Fail(w, r, "fetch entity", err, "Impossible de charger l'élément")
		return
	}
	d := OpenDialog(h.deps.Validator, Selection{Action: ActionEdit, ID: id}, h.def.ToForm(item))
	h.RenderModal(w, r, http.StatusOK, h.formModal(h.def.tab(h.scope(r).Tab), d, nil))
}

func (h *Handler[T, F]) create(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, Selection{Action: ActionCreate})
}

func (h *Handler[T, F]) update(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, Selection{Action: ActionEdit, ID: chi.URLParam(r, "id")})
}

func (h *Handler[T, F]) submit(w http.ResponseWriter, r *http.Request, sel Selection) {
	values, err := modal.Decode[F](r)
	if err != nil {
		h.Logger().Warn("decode form", slog.Any("error", err))
		h.Done(w, r, shared.FlashError, "Formulaire invalide")
		return
	}
	upload, err := h.upload(r)
	if err != nil {
		h.Logger().Warn("read upload", slog.Any("error", err))
		h.Done(w, r, shared.FlashError, "Fichier invalide")
		return
	}

	release, ok := h.Claim(w, r, sel.Action)
	if !ok {
		return
	}

	scope := h.scope(r)
	tab := h.def.tab(scope.Tab)
	if h.def.Prepare != nil {
		values = h.def.Prepare(scope, values)
	}
	d := OpenDialog(h.deps.Validator, sel, h.def.NewForm(scope))
	d.Shell.Edit(values)
	err = d.Shell.Submit(r.Context(), func(ctx context.Context, form F) error {
		return h.persist(ctx, tab, scope, sel, form, upload)
	})
	if err != nil {
		release()
	}
	switch {
	case err == nil:
		msg := h.def.Singular + " " + h.def.agree("enregistré")
		if sel.Action == ActionCreate {
			msg = h.def.Singular + " " + h.def.agree("créé")
		}
		h.Done(w, r, shared.FlashSuccess, msg)
	case errors.Is(err, modal.ErrInvalid):
		h.RenderModal(w, r, http.StatusUnprocessableEntity, h.formModal(tab, d, nil))
	default:
		if h.expired(w, r, err) {
			return
		}
		h.Logger().Error("save entity", slog.String("action", sel.Action), slog.Any("error", err))
		h.RenderModal(w, r, httpx.StatusOf(err), h.formModal(tab, d, err))
	}
}

func (h *Handler[T, F]) persist(ctx context.Context, tab Tab[T], scope Scope, sel Selection, form F, upload *apiclient.Upload) error {
	var payload any = form
	if h.def.Payload != nil {
		payload = h.def.Payload(scope, form)
	}
	if h.def.Upload != "" {
		src, ok := tab.Source.(MultipartSource[T])
		if !ok {
			return fmt.Errorf("screen %s: tab %s does not accept uploads", h.def.Name, tab.Key)
		}
		fields, ok := payload.(url.Values)
		if !ok {
			fields = FormValues(payload)
		}
		if sel.Action == ActionCreate {
			_, err := src.CreateMultipart(ctx, fields, upload)
			return err
		}
		return src.UpdateMultipart(ctx, sel.ID, fields, upload)
	}
	if sel.Action == ActionCreate {
		_, err := tab.Source.Create(ctx, payload)
		return err
	}
	return tab.Source.Update(ctx, sel.ID, payload)
}

func (h *Handler[T, F]) upload(r *http.Request) (*apiclient.Upload, error) {
	if h.def.Upload == "" || r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile(h.def.Upload)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("upload %s exceeds %d bytes", header.Filename, maxPhotoBytes)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &apiclient.Upload{
		Field:       h.def.Upload,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// formModal renders the create/edit dialog. A closed dialog (after success)
// never reaches here.
func (h *Handler[T, F]) formModal(tab Tab[T], d *Dialog[F], serverErr error) *ModalView {
	title := h.def.agree("Nouveau") + " " + strings.ToLower(h.def.Singular)
	action := h.ListURL()
	if d.Selection.Action == ActionEdit {
		title = "Modifier " + strings.ToLower(h.def.Singular)
		action = h.ItemURL(d.Selection.ID, "")
	}
	m := NewModal(title, action, h.ListURL(), h.def.formFieldsFor(tab), FormValues(d.Shell.Values()), d.Shell.Errors())
	m.State = d.Shell.State().String()
	if serverErr != nil {
		m.ServerError = FailureMessage(serverErr)
	}
	return m
}

type confirmation struct{}

func (h *Handler[T, F]) showDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.Find(r, id)
	if err != nil {
		h.Fail(w, r, "fetch entity", err, "Impossible de charger l'élément")
		return
	}
	d := OpenDialog(h.deps.Validator, Selection{Action: ActionDelete, ID: id}, confirmation{})
	h.RenderModal(w, r, http.StatusOK, h.deleteModal(d, h.Label(item), nil))
}

func (h *Handler[T, F]) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scope := h.scope(r)
	tab := h.def.tab(scope.Tab)
	release, ok := h.Claim(w, r, ActionDelete)
	if !ok {
		return
	}
	d := OpenDialog(h.deps.Validator, Selection{Action: ActionDelete, ID: id}, confirmation{})
	err := d.Shell.Submit(r.Context(), func(ctx context.Context, _ confirmation) error {
		return tab.Source.Delete(ctx, id)
	})
	if err != nil {
		release()
	}
	if err == nil {
		h.Done(w, r, shared.FlashSuccess, h.def.Singular+" "+h.def.agree("supprimé"))
		return
	}
	if h.expired(w, r, err) {
		return
	}
	h.Logger().Error("delete entity", slog.String("id", id), slog.Any("error", err))
	h.RenderModal(w, r, httpx.StatusOf(err), h.deleteModal(d, id, err))
}

func (h *Handler[T, F]) deleteModal(d *Dialog[confirmation], label string, serverErr error) *ModalView {
	m := &ModalView{
		Title:     "Supprimer " + strings.ToLower(h.def.Singular),
		Action:    h.ItemURL(d.Selection.ID, "delete"),
		CancelURL: h.ListURL(),
		Submit:    "Supprimer",
		Confirm:   fmt.Sprintf("Supprimer définitivement « %s » ?", label),
		Danger:    true,
		State:     d.Shell.State().String(),
	}
	if serverErr != nil {
		m.ServerError = FailureMessage(serverErr)
	}
	return m
}

func (h *Handler[T, F]) render(w http.ResponseWriter, r *http.Request, status int, state listing.ViewState, m *ModalView) {
	principal := shared.PrincipalFromContext(r.Context())
	tab := h.def.tab(state.Tab)
	filters, active := filterViews(h.def.filtersFor(tab), state.Query.Filters)
	lv := ListView{
		Name:         h.def.Name,
		Title:        h.def.Title,
		BasePath:     h.def.BasePath,
		State:        state,
		SearchFields: h.def.SearchFields,
		Orders:       h.def.Orders,
		Filters:      filters,
		ActiveCount:  active,
		Formats:      export.Formats,
		CanWrite:     h.def.Writers.Allows(principal),
		Singular:     h.def.Singular,
		Modal:        m,
	}
	if len(h.def.Tabs) > 1 {
		for _, t := range h.def.Tabs {
			lv.Tabs = append(lv.Tabs, TabLink{Label: t.Label, URL: h.ListURL() + "?tab=" + t.Key, Active: t.Key == tab.Key})
		}
	}
	for _, c := range h.def.Columns {
		lv.Columns = append(lv.Columns, c.Label)
	}

	items, err := tab.Source.List(r.Context())
	if err != nil {
		if h.expired(w, r, err) {
			return
		}
		h.Logger().Error("fetch collection", slog.Any("error", err))
		lv.Error = FailureMessage(err)
		lv.RetryURL = h.ListURL()
		if status == http.StatusOK {
			status = http.StatusBadGateway
		}
	} else {
		filtered := h.def.Spec.Apply(items, state.Query, h.def.now())
		page := listing.Paginate(filtered, state.Page, h.deps.PageSize)
		if page.Page != state.Page {
			state = state.WithPage(page.Page)
			h.saveState(shared.SessionFromContext(r.Context()), state)
			lv.State = state
		}
		lv.Rows = h.rows(page.Items, principal, lv.CanWrite)
		lv.Pager = PagerView{
			Total:      page.Total,
			Start:      page.StartIndex,
			End:        page.EndIndex,
			Page:       page.Page,
			TotalPages: page.TotalPages,
			Controls:   page.Controls(),
			BaseURL:    h.ListURL(),
		}
	}

	data := view.NewTemplateData(r, h.deps.CSRF, h.def.Title, lv)
	if err := h.deps.Templates.RenderStatus(w, status, "pages/list.html", data); err != nil {
		h.Logger().Error("render list", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler[T, F]) rows(items []T, principal *shared.Principal, canWrite bool) []RowView {
	rows := make([]RowView, 0, len(items))
	for _, item := range items {
		id := h.def.ID(item)
		row := RowView{ID: id}
		for _, c := range h.def.Columns {
			v := c.Value(item)
			if c.Image {
				row.Cells = append(row.Cells, Cell{Image: v, Text: h.Label(item), Avatar: true})
				continue
			}
			row.Cells = append(row.Cells, Cell{Text: v})
		}
		for _, a := range h.def.Actions {
			if !a.Policy.Allows(principal) {
				continue
			}
			row.Actions = append(row.Actions, ActionLink{Label: a.Label, URL: h.ItemURL(id, a.Path), Download: a.Download})
		}
		if canWrite {
			row.Actions = append(row.Actions,
				ActionLink{Label: "Modifier", URL: h.ItemURL(id, "edit")},
				ActionLink{Label: "Supprimer", URL: h.ItemURL(id, "delete"), Danger: true},
			)
		}
		rows = append(rows, row)
	}
	return rows
}

func (h *Handler[T, F]) stateKey() string {
	return "view:" + h.def.Name
}

func (h *Handler[T, F]) loadState(sess *shared.Session) listing.ViewState {
	defaultTab := h.def.Tabs[0].Key
	if sess == nil {
		return listing.NewViewState(defaultTab)
	}
	state := listing.DecodeViewState(sess.Get(h.stateKey()), defaultTab)
	if !h.def.hasTab(state.Tab) {
		state = h.switchTab(state, defaultTab)
	}
	return state
}

// switchTab moves to tab, dropping filters the new tab does not declare and
// select values it does not offer.
func (h *Handler[T, F]) switchTab(state listing.ViewState, tab string) listing.ViewState {
	state = state.WithTab(tab)
	fields := h.def.filtersFor(h.def.tab(tab))
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Name)
	}
	kept := state.Query.Filters.Only(keys...)
	for _, f := range fields {
		if f.Type == InputSelect && kept.Active(f.Name) && !offers(f.Options, kept.Value(f.Name)) {
			delete(kept, f.Name)
		}
	}
	state.Query.Filters = kept
	return state
}

func offers(opts []Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}

func (h *Handler[T, F]) saveState(sess *shared.Session, state listing.ViewState) {
	if sess != nil {
		sess.Set(h.stateKey(), state.Encode())
	}
}

// applyParams folds the list URL parameters into state: tab first, then the
// search bar (q, field, order), then the page.
func (h *Handler[T, F]) applyParams(state listing.ViewState, r *http.Request) listing.ViewState {
	params := r.URL.Query()
	if tab := params.Get("tab"); tab != "" && h.def.hasTab(tab) && tab != state.Tab {
		state = h.switchTab(state, tab)
	}
	if params.Has("q") || params.Has("field") || params.Has("order") {
		query := state.Query
		query.Filters = state.Query.Filters.Clone()
		if params.Has("q") {
			query.Search = strings.TrimSpace(params.Get("q"))
		}
		if params.Has("field") {
			query.SearchField = params.Get("field")
		}
		if params.Has("order") {
			query.Order = params.Get("order")
		}
		state = state.WithQuery(query)
	}
	if raw := params.Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			state = state.WithPage(n)
		}
	}
	if state.Query.SearchField == "" && len(h.def.SearchFields) > 0 {
		state.Query.SearchField = h.def.SearchFields[0].Value
	}
	return state
}

func (h *Handler[T, F]) expired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !EndExpiredSession(w, r, err) {
		return false
	}
	h.Logger().Info("api token rejected, session ended")
	return true
}

// EndExpiredSession signs the user out and redirects to the login page when
// the API rejected the bearer token. It reports whether it did so.
func EndExpiredSession(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, httpx.ErrUnauthorized) {
		return false
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetPrincipal(nil)
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashInfo, Message: "Votre session a expiré, veuillez vous reconnecter"})
	}
	http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
	return true
}

// FailureMessage is the user-facing text for a failed API call.
func FailureMessage(err error) string {
	if msg := apiclient.ServerMessage(err); msg != "" {
		return msg
	}
	switch {
	case errors.Is(err, httpx.ErrForbidden):
		return "Action non autorisée"
	case errors.Is(err, httpx.ErrNotFound):
		return "Élément introuvable"
	case errors.Is(err, context.DeadlineExceeded):
		return "Le serveur met trop de temps à répondre"
	default:
		return "Le serveur est indisponible, veuillez réessayer"
	}
}
