package members

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia/ecclesia/internal/badge"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/screen/screentest"
	"github.com/ecclesia/ecclesia/internal/shared"
)

type fakeBadges struct {
	err   error
	cards []badge.Card
}

func (f *fakeBadges) Rasterize(_ context.Context, card badge.Card) ([]byte, error) {
	f.cards = append(f.cards, card)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\x89PNG fake"), nil
}

func (f *fakeBadges) PDF(_ context.Context, card badge.Card) ([]byte, error) {
	f.cards = append(f.cards, card)
	return []byte("%PDF-1.7"), f.err
}

func birth(years int) string {
	return time.Now().AddDate(-years, 0, -1).Format(listing.DateLayout)
}

func setup(t *testing.T, role string, badges Badges) (*screentest.API, *screentest.Harness) {
	t.Helper()
	api := screentest.NewAPI()
	api.Seed("/members",
		map[string]any{"firstname": "Jean", "lastname": "Étienne", "mobilePhone": "+509 3711 0000", "sex": "homme",
			"birthDate": birth(40), "role": "Membre", "photo": "/uploads/jean.jpg", "createdAt": "2024-01-01T10:00:00Z"},
		map[string]any{"firstname": "Nadia", "lastname": "Pierre", "email": "nadia@eglise.ht", "sex": "F",
			"birthDate": birth(15), "etatCivil": "celibataire", "role": "secretaire", "createdAt": "2025-01-01T10:00:00Z"},
	)
	h := screentest.NewHarness(t, role)
	opts := Options{AssetOrigin: "https://cdn.eglise.ht", Badges: badges}
	h.Router.Route("/members", NewHandler(api.Client(t), h.Deps(), opts).MountRoutes)
	return api, h
}

func TestListShowsAvatarsAndActions(t *testing.T) {
	_, h := setup(t, shared.RoleAdmin, nil)

	rec := h.Get("/members/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `src="https://cdn.eglise.ht/uploads/jean.jpg"`)
	assert.Contains(t, body, "avatar-empty")
	assert.Contains(t, body, "/members/1/badge")
	assert.Contains(t, body, "/members/1/role")
	assert.Contains(t, body, "/members/1/transfer")
}

func TestSecretarySeesNoRoleAction(t *testing.T) {
	_, h := setup(t, shared.RoleSecretary, nil)

	body := h.Get("/members/").Body.String()
	assert.NotContains(t, body, "/members/1/role")
	assert.Contains(t, body, "/members/1/transfer")
	assert.Equal(t, http.StatusForbidden, h.Post("/members/1/role", url.Values{"role": {"admin"}}).Code)
}

func TestSearchAndAgeFilter(t *testing.T) {
	_, h := setup(t, shared.RoleMember, nil)

	body := h.Get("/members/?" + url.Values{"field": {"phone"}, "q": {"3711"}}.Encode()).Body.String()
	assert.Contains(t, body, "Jean Étienne")
	assert.NotContains(t, body, "Nadia Pierre")

	h.Get("/members/?q=")
	h.Post("/members/filters", url.Values{"age": {listing.AgeAdolescent}})
	body = h.Get("/members/").Body.String()
	assert.Contains(t, body, "Nadia Pierre")
	assert.NotContains(t, body, "Jean Étienne")
}

func TestSexFilterAcceptsStoredSpellings(t *testing.T) {
	_, h := setup(t, shared.RoleMember, nil)

	h.Post("/members/filters", url.Values{"sex": {shared.SexMale}})
	body := h.Get("/members/").Body.String()
	assert.Contains(t, body, "Jean Étienne")
	assert.NotContains(t, body, "Nadia Pierre")

	h.Post("/members/filters", url.Values{"sex": {shared.SexFemale}})
	body = h.Get("/members/").Body.String()
	assert.Contains(t, body, "Nadia Pierre")
	assert.NotContains(t, body, "Jean Étienne")

	h.Post("/members/filters", url.Values{"role": {shared.RoleMember}})
	body = h.Get("/members/").Body.String()
	assert.Contains(t, body, "Jean Étienne")
	assert.NotContains(t, body, "Nadia Pierre")
}

func TestEditKeepsStoredSex(t *testing.T) {
	api, h := setup(t, shared.RoleSecretary, nil)

	rec := h.Get("/members/1/edit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="homme" selected>`)

	rec = h.Post("/members/1", url.Values{"firstname": {"Jean"}, "lastname": {"Étienne"}, "sex": {"homme"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = h.Post("/members/2", url.Values{"firstname": {"Nadia"}, "lastname": {"Pierre"}, "sex": {"F"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	reqs := api.Requests()
	assert.Equal(t, shared.SexFemale, reqs[len(reqs)-1].Body["sex"])
}

func TestCreateWithPhotoPostsMultipart(t *testing.T) {
	api, h := setup(t, shared.RoleSecretary, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("firstname", "Rose"))
	require.NoError(t, mw.WriteField("lastname", "Dorval"))
	require.NoError(t, mw.WriteField("sex", "F"))
	require.NoError(t, mw.WriteField(shared.SubmissionField, shared.NewSubmissionKey()))
	part, err := mw.CreateFormFile("photo", "rose.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG photo"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/members/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "Membre créé", h.Flash())

	reqs := api.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "rose.png", last.Files["photo"])
	assert.Equal(t, shared.SexFemale, last.Body["sex"])
	assert.Equal(t, "Rose", last.Body["firstname"])
	assert.Equal(t, "7", last.Body["churchId"])
	assert.Len(t, api.Items("/members"), 3)
}

func TestFutureBirthDateRejected(t *testing.T) {
	api, h := setup(t, shared.RoleSecretary, nil)

	future := time.Now().AddDate(1, 0, 0).Format(listing.DateLayout)
	rec := h.Post("/members/", url.Values{"firstname": {"Zoé"}, "lastname": {"Jean"}, "birthDate": {future}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "dans le futur")
	assert.Len(t, api.Items("/members"), 2)
}

func TestBadgeDownload(t *testing.T) {
	badges := &fakeBadges{}
	_, h := setup(t, shared.RoleMember, badges)

	rec := h.Get("/members/1/badge")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="badge-jean-etienne.png"`)
	require.Len(t, badges.cards, 1)
	card := badges.cards[0]
	assert.Equal(t, "1", card.MemberID)
	assert.Equal(t, "Membre", card.Role)
	assert.Equal(t, "Église Centrale", card.ChurchName)
	assert.Equal(t, "https://cdn.eglise.ht/uploads/jean.jpg", card.PhotoURL)

	rec = h.Get("/members/1/badge?format=pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "badge-jean-etienne.pdf")
}

func TestBadgeFailureIsFlashed(t *testing.T) {
	_, h := setup(t, shared.RoleMember, &fakeBadges{err: badge.ErrBlankCanvas})

	rec := h.Get("/members/1/badge")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/members/", rec.Header().Get("Location"))
	assert.Contains(t, h.Flash(), "vide")

	_, h = setup(t, shared.RoleMember, &fakeBadges{err: errors.New("gotenberg down")})
	h.Get("/members/1/badge")
	assert.Equal(t, "La génération du badge a échoué", h.Flash())
}

func TestChangeRole(t *testing.T) {
	api, h := setup(t, shared.RolePastor, nil)

	rec := h.Get("/members/1/role")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="membre" selected>`)

	rec = h.Post("/members/1/role", url.Values{"role": {"superuser"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.Post("/members/1/role", url.Values{"role": {"tresorier"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "Rôle mis à jour", h.Flash())
	assert.Equal(t, "tresorier", api.Items("/members")[0]["role"])
}

func TestRequestTransfer(t *testing.T) {
	api, h := setup(t, shared.RoleSecretary, nil)

	rec := h.Get("/members/2/transfer")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Transférer Nadia Pierre")

	rec = h.Post("/members/2/transfer", url.Values{"toChurchId": {"9"}, "date": {"2025-08-01"}, "status": {"pending"}, "reason": {"Déménagement"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	items := api.Items("/transfers")
	require.Len(t, items, 1)
	assert.Equal(t, "2", items[0]["memberId"])
	assert.Equal(t, "7", items[0]["fromChurchId"])
	assert.Equal(t, "9", items[0]["toChurchId"])
}

func TestTransferRequestSentOnce(t *testing.T) {
	api, h := setup(t, shared.RoleSecretary, nil)

	rec := h.Get("/members/2/transfer")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="submission_id"`)

	form := url.Values{"toChurchId": {"9"}, "date": {"2025-08-01"}, "status": {"pending"}, shared.SubmissionField: {"transfer-2"}}
	require.Equal(t, http.StatusSeeOther, h.Post("/members/2/transfer", form).Code)
	h.Flash()
	require.Equal(t, http.StatusSeeOther, h.Post("/members/2/transfer", form).Code)
	assert.Equal(t, "Ce formulaire a déjà été envoyé", h.Flash())
	assert.Len(t, api.Items("/transfers"), 1)
}
