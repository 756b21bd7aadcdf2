package ministries

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia/ecclesia/internal/screen/screentest"
	"github.com/ecclesia/ecclesia/internal/shared"
)

func TestSearchByLeaderAndOrder(t *testing.T) {
	api := screentest.NewAPI()
	api.Seed("/ministries",
		map[string]any{"name": "Louange", "leader": "Esther", "createdAt": "2024-01-10T00:00:00Z"},
		map[string]any{"name": "Accueil", "leader": "Paul", "createdAt": "2024-03-01T00:00:00Z"},
		map[string]any{"name": "Intercession", "leader": "Esther", "createdAt": "2023-06-01T00:00:00Z"},
	)
	h := screentest.NewHarness(t, shared.RoleAdmin)
	h.Router.Route("/ministries", NewHandler(api.Client(t), h.Deps()).MountRoutes)

	rec := h.Get("/ministries/?" + url.Values{"q": {"esther"}, "field": {"leader"}, "order": {"oldest"}}.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "Accueil")
	require.Contains(t, body, "Intercession")
	require.Contains(t, body, "Louange")
	assert.Less(t, strings.Index(body, "Intercession"), strings.Index(body, "Louange"))
}

func TestDeleteRemovesAndRefetches(t *testing.T) {
	api := screentest.NewAPI()
	api.Seed("/ministries", map[string]any{"id": 4, "name": "Louange"})
	h := screentest.NewHarness(t, shared.RoleSecretary)
	h.Router.Route("/ministries", NewHandler(api.Client(t), h.Deps()).MountRoutes)

	require.Contains(t, h.Get("/ministries/").Body.String(), "Louange")
	rec := h.Post("/ministries/4/delete", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "Ministère supprimé", h.Flash())
	assert.NotContains(t, h.Get("/ministries/").Body.String(), "Louange")
}
