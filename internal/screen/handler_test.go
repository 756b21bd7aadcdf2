package screen

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/platform/httpx"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/shared"
	"github.com/ecclesia/ecclesia/internal/view"
)

type ministry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Leader    string `json:"leader"`
	CreatedAt string `json:"createdAt"`
}

type ministryForm struct {
	Name   string `form:"name" json:"name" label:"Nom" validate:"required"`
	Leader string `form:"leader" json:"leader" label:"Responsable"`
}

type fakeSource struct {
	mu      sync.Mutex
	items   []ministry
	listErr error
	saveErr error
	created []any
	updated map[string]any
	deleted []string
}

func (f *fakeSource) List(context.Context) ([]ministry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]ministry(nil), f.items...), nil
}

func (f *fakeSource) Get(_ context.Context, id string) (ministry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.items {
		if m.ID == id {
			return m, nil
		}
	}
	return ministry{}, fmt.Errorf("get %s: %w", id, httpx.ErrNotFound)
}

func (f *fakeSource) Create(_ context.Context, payload any) (ministry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return ministry{}, f.saveErr
	}
	f.created = append(f.created, payload)
	form := payload.(ministryForm)
	m := ministry{ID: fmt.Sprint(len(f.items) + 1), Name: form.Name, Leader: form.Leader}
	f.items = append(f.items, m)
	return m, nil
}

func (f *fakeSource) Update(_ context.Context, id string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.updated == nil {
		f.updated = map[string]any{}
	}
	f.updated[id] = payload
	return nil
}

func (f *fakeSource) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type exportCounter struct {
	outcomes []string
}

func (e *exportCounter) ObserveExport(format string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	e.outcomes = append(e.outcomes, format+":"+outcome)
}

type harness struct {
	router  http.Handler
	source  *fakeSource
	session *shared.Session
	exports *exportCounter
}

func seed(n int) []ministry {
	items := make([]ministry, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, ministry{
			ID:        fmt.Sprint(i),
			Name:      fmt.Sprintf("Ministère %02d", i),
			Leader:    "Paul",
			CreatedAt: time.Date(2024, 1, i, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
		})
	}
	return items
}

func newHarness(t *testing.T, role string, items []ministry) *harness {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sess, err := shared.NewSessionManager(client, "ecclesia_session", time.Hour, false).
		Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	src := &fakeSource{items: items}
	exports := &exportCounter{}
	def := Definition[ministry, ministryForm]{
		Name:     "ministries",
		Title:    "Ministères",
		BasePath: "/ministries",
		Singular: "Ministère",
		Tabs: []Tab[ministry]{{
			Key: "all", Label: "Tous", Source: src, Kind: export.KindMinistry, ExportName: "ministeres",
		}},
		Spec: listing.Spec[ministry]{
			SearchFields: map[string]listing.Accessor[ministry]{
				"name":   listing.Text(func(m ministry) string { return m.Name }),
				"leader": listing.Text(func(m ministry) string { return m.Leader }),
			},
			Dimensions: []listing.Dimension[ministry]{
				listing.Equals("leader", listing.Text(func(m ministry) string { return m.Leader })),
			},
			Timestamp: listing.Date(func(m ministry) string { return m.CreatedAt }),
		},
		SearchFields: []Option{{Value: "name", Label: "Nom"}, {Value: "leader", Label: "Responsable"}},
		Filters:      []Field{{Name: "leader", Label: "Responsable", Type: InputText}},
		Columns: []Column[ministry]{
			{Label: "Nom", Value: func(m ministry) string { return m.Name }},
			{Label: "Responsable", Value: func(m ministry) string { return m.Leader }},
		},
		FormFields: []Field{
			{Name: "name", Label: "Nom", Type: InputText, Required: true},
			{Name: "leader", Label: "Responsable", Type: InputText},
		},
		ID:      func(m ministry) string { return m.ID },
		Label:   func(m ministry) string { return m.Name },
		NewForm: func(Scope) ministryForm { return ministryForm{} },
		ToForm:  func(m ministry) ministryForm { return ministryForm{Name: m.Name, Leader: m.Leader} },
		Writers: rbac.DirectoryWriters,
		Now:     func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
	handler := NewHandler(def, Deps{
		Templates: engine,
		CSRF:      shared.NewCSRFManager("test"),
		Exports:   exports,
		PageSize:  10,

		Submissions: shared.NewIdempotencyStore(client, time.Minute),
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithSession(req.Context(), sess)
			if p := sess.Principal(); p != nil {
				ctx = shared.ContextWithPrincipal(ctx, p)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/ministries", handler.MountRoutes)

	sess.SetPrincipal(&shared.Principal{UserID: "1", Role: role, ChurchName: "Église Centrale"})
	return &harness{router: r, source: src, session: sess, exports: exports}
}

func (h *harness) get(target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func (h *harness) post(target string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	if !form.Has(shared.SubmissionField) {
		form.Set(shared.SubmissionField, shared.NewSubmissionKey())
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) state() listing.ViewState {
	return listing.DecodeViewState(h.session.Get("view:ministries"), "all")
}

func TestListPaginatesAndResetsPageOnSearch(t *testing.T) {
	h := newHarness(t, shared.RoleAdmin, seed(25))

	rec := h.get("/ministries/?page=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, h.state().Page)
	assert.Contains(t, rec.Body.String(), "21–25 sur 25")
	assert.Contains(t, rec.Body.String(), "Ministère 25")
	assert.NotContains(t, rec.Body.String(), "Ministère 01")

	rec = h.get("/ministries/?" + url.Values{"q": {"ministère 1"}, "field": {"name"}}.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.state().Page)
	assert.Contains(t, rec.Body.String(), "1–10 sur 10")

	rec = h.get("/ministries/?page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.state().Page, "one page of results is clamped")
}

func TestFiltersResetPageAndClear(t *testing.T) {
	items := seed(25)
	items[4].Leader = "Marthe"
	h := newHarness(t, shared.RoleAdmin, items)

	h.get("/ministries/?page=2")
	require.Equal(t, 2, h.state().Page)

	rec := h.get("/ministries/filters")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Réinitialiser les filtres")

	rec = h.post("/ministries/filters", url.Values{"leader": {"Marthe"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	state := h.state()
	assert.Equal(t, 1, state.Page)
	assert.Equal(t, "Marthe", state.Query.Filters["leader"])

	rec = h.get("/ministries/")
	assert.Contains(t, rec.Body.String(), "1–1 sur 1")

	h.post("/ministries/filters/clear", nil)
	assert.Empty(t, h.state().Query.Filters)
}

func TestExportUsesFilteredUnpaginatedCollection(t *testing.T) {
	h := newHarness(t, shared.RoleMember, seed(25))
	h.get("/ministries/?" + url.Values{"q": {"ministère 1"}, "field": {"name"}}.Encode())

	rec := h.get("/ministries/export?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="ministeres.csv"`, rec.Header().Get("Content-Disposition"))
	_, err := uuid.Parse(rec.Header().Get(export.ReferenceHeader))
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 11, "header plus every match, not only one page")
	assert.Equal(t, "Nom", records[0][0])
	assert.Equal(t, []string{"csv:success"}, h.exports.outcomes)
}

func TestExportFailuresAreFlashed(t *testing.T) {
	h := newHarness(t, shared.RoleAdmin, seed(3))

	rec := h.get("/ministries/export?format=odt")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "Format d'export inconnu", h.session.PopFlash().Message)

	h.source.listErr = fmt.Errorf("list: %w", httpx.ErrUpstream)
	rec = h.get("/ministries/export?format=xlsx")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/ministries/", rec.Header().Get("Location"))
	assert.Equal(t, "L'export a échoué", h.session.PopFlash().Message)
	assert.Equal(t, []string{"xlsx:failure"}, h.exports.outcomes)
}

func TestCreateValidationNeverReachesServer(t *testing.T) {
	h := newHarness(t, shared.RoleSecretary, nil)

	rec := h.post("/ministries/", url.Values{"leader": {"Paul"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nom est obligatoire")
	assert.Contains(t, rec.Body.String(), `value="Paul"`)
	assert.Empty(t, h.source.created)
}

func TestCreateThenListShowsEntityOnce(t *testing.T) {
	h := newHarness(t, shared.RoleSecretary, nil)

	rec := h.post("/ministries/", url.Values{"name": {"Louange"}, "leader": {"Esther"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/ministries/", rec.Header().Get("Location"))
	require.Len(t, h.source.created, 1)
	assert.Equal(t, ministryForm{Name: "Louange", Leader: "Esther"}, h.source.created[0])

	rec = h.get("/ministries/")
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "Louange"))
	assert.Contains(t, rec.Body.String(), "Ministère créé")
}

func TestDuplicateSubmissionReachesServerOnce(t *testing.T) {
	h := newHarness(t, shared.RoleSecretary, nil)

	rec := h.get("/ministries/new")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="submission_id"`)

	form := url.Values{"name": {"Louange"}, shared.SubmissionField: {"form-1"}}
	require.Equal(t, http.StatusSeeOther, h.post("/ministries/", form).Code)
	h.session.PopFlash()
	rec = h.post("/ministries/", form)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "Ce formulaire a déjà été envoyé", h.session.PopFlash().Message)
	assert.Len(t, h.source.created, 1)

	rec = h.post("/ministries/", url.Values{"name": {"Louange"}, shared.SubmissionField: {""}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "Formulaire expiré, veuillez réessayer", h.session.PopFlash().Message)
	assert.Len(t, h.source.created, 1)
}

func TestFailedSubmissionCanBeRetried(t *testing.T) {
	h := newHarness(t, shared.RoleAdmin, seed(2))
	h.source.saveErr = fmt.Errorf("delete: %w", httpx.ErrDuplicate)

	form := url.Values{shared.SubmissionField: {"delete-2"}}
	rec := h.post("/ministries/2/delete", form)
	assert.NotEqual(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, h.source.deleted)

	h.source.saveErr = nil
	rec = h.post("/ministries/2/delete", form)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, []string{"2"}, h.source.deleted)

	h.session.PopFlash()
	h.post("/ministries/2/delete", form)
	assert.Equal(t, "Ce formulaire a déjà été envoyé", h.session.PopFlash().Message)
	assert.Len(t, h.source.deleted, 1)
}

func TestUpdateServerErrorKeepsModalOpenWithValues(t *testing.T) {
	h := newHarness(t, shared.RoleAdmin, seed(2))
	h.source.saveErr = fmt.Errorf("update: %w", httpx.ErrDuplicate)

	rec := h.post("/ministries/2", url.Values{"name": {"Intercession"}, "leader": {"Ruth"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-state="dirty"`)
	assert.Contains(t, body, `value="Intercession"`)
	assert.Contains(t, body, `action="/ministries/2"`)
	assert.Contains(t, body, "Le serveur est indisponible")
}

func TestEditAndDelete(t *testing.T) {
	h := newHarness(t, shared.RoleAdmin, seed(2))

	rec := h.get("/ministries/1/edit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Ministère 01"`)

	rec = h.post("/ministries/1", url.Values{"name": {"Accueil"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, ministryForm{Name: "Accueil"}, h.source.updated["1"])

	rec = h.get("/ministries/2/delete")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ministère 02")

	rec = h.post("/ministries/2/delete", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, []string{"2"}, h.source.deleted)

	rec = h.get("/ministries/9/edit")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestFetchErrorRendersRetry(t *testing.T) {
	h := newHarness(t, shared.RoleAdmin, nil)
	h.source.listErr = errors.New("connection refused")

	rec := h.get("/ministries/")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Réessayer")
}

func TestExpiredTokenEndsSession(t *testing.T) {
	h := newHarness(t, shared.RoleAdmin, nil)
	h.source.listErr = fmt.Errorf("list: %w", httpx.ErrUnauthorized)

	rec := h.get("/ministries/")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, rbac.LoginPath, rec.Header().Get("Location"))
	assert.Nil(t, h.session.Principal())
}

func TestMutationsRequireWriterRole(t *testing.T) {
	h := newHarness(t, shared.RoleTreasurer, seed(1))

	rec := h.post("/ministries/", url.Values{"name": {"Louange"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, h.source.created)

	rec = h.get("/ministries/")
	assert.NotContains(t, rec.Body.String(), "/ministries/new")
	assert.NotContains(t, rec.Body.String(), "/ministries/1/edit")
}

func TestAPIReturnsCurrentPage(t *testing.T) {
	h := newHarness(t, shared.RoleAdmin, seed(12))

	rec := h.get("/ministries/api?page=2&order=oldest")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items      []ministry `json:"items"`
		Page       int        `json:"page"`
		TotalPages int        `json:"total_pages"`
		Total      int        `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 2, body.TotalPages)
	assert.Equal(t, 12, body.Total)
	require.Len(t, body.Items, 2)
	assert.Equal(t, "Ministère 11", body.Items[0].Name)
}

func TestDialogClearsSelectionOnClose(t *testing.T) {
	d := OpenDialog(nil, Selection{Action: ActionEdit, ID: "4"}, ministryForm{Name: "Accueil"})
	require.NoError(t, d.Shell.Submit(context.Background(), func(context.Context, ministryForm) error { return nil }))
	assert.Equal(t, Selection{}, d.Selection)

	d = OpenDialog(nil, Selection{Action: ActionDelete, ID: "4"}, ministryForm{})
	d.Shell.Cancel()
	assert.Equal(t, Selection{}, d.Selection)
}
