package pastors

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia/ecclesia/internal/screen/screentest"
	"github.com/ecclesia/ecclesia/internal/shared"
)

func setup(t *testing.T, role string) (*screentest.API, *screentest.Harness) {
	t.Helper()
	api := screentest.NewAPI()
	api.Seed("/pasteurs",
		map[string]any{"firstname": "Jean", "lastname": "Pierre", "email": "jean@eglise.ht", "title": "Pasteur principal",
			"church": map[string]any{"id": 7, "name": "Église Centrale"}},
		map[string]any{"firstname": "Paul", "lastname": "Alexis", "email": "paul@eglise.ht", "title": "Évangéliste"},
	)
	h := screentest.NewHarness(t, role)
	h.Router.Route("/pastors", NewHandler(api.Client(t), h.Deps()).MountRoutes)
	return api, h
}

func TestSearchByEmailAndTitleFilter(t *testing.T) {
	_, h := setup(t, shared.RoleSecretary)

	rec := h.Get("/pastors/?" + url.Values{"field": {"email"}, "q": {"PAUL@"}}.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Paul Alexis")
	assert.NotContains(t, rec.Body.String(), "Jean Pierre")

	h.Get("/pastors/?q=")
	h.Post("/pastors/filters", url.Values{"title": {"Pasteur principal"}})
	rec = h.Get("/pastors/")
	assert.Contains(t, rec.Body.String(), "Jean Pierre")
	assert.NotContains(t, rec.Body.String(), "Paul Alexis")
}

func TestExportIncludesChurchName(t *testing.T) {
	_, h := setup(t, shared.RoleSecretary)

	rec := h.Get("/pastors/export?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "pasteurs")
	assert.Contains(t, rec.Body.String(), "Église Centrale")
}

func TestCreateRequiresNamesAndValidEmail(t *testing.T) {
	api, h := setup(t, shared.RoleAdmin)

	rec := h.Post("/pastors/", url.Values{"firstname": {"Luc"}, "email": {"pas-un-email"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Len(t, api.Items("/pasteurs"), 2)

	rec = h.Post("/pastors/", url.Values{"firstname": {"Luc"}, "lastname": {"Noël"}, "title": {"Diacre"}, "ordinationDate": {"2020-05-10"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	items := api.Items("/pasteurs")
	require.Len(t, items, 3)
	assert.Equal(t, "Diacre", items[2]["title"])
	assert.Equal(t, "7", items[2]["churchId"])
}

func TestMembersCannotEdit(t *testing.T) {
	_, h := setup(t, shared.RoleMember)

	rec := h.Get("/pastors/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Modifier")
	assert.Equal(t, http.StatusForbidden, h.Get("/pastors/new").Code)
}
