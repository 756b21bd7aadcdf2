package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "ecclesia_session", time.Hour, false), mr
}

func roundTrip(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestSessionPersistsPrincipalAndValues(t *testing.T) {
	sm, _ := newManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, sess.Principal())

	sess.SetPrincipal(&Principal{UserID: "7", Role: RoleSecretary, ChurchID: "3", Token: "tok"})
	sess.Set("view:members", `{"tab":"all"}`)
	sess.AddFlash(FlashMessage{Kind: FlashSuccess, Message: "Bienvenue"})
	cookie := roundTrip(t, sm, sess)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookie)
	loaded, err := sm.Load(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	require.NotNil(t, loaded.Principal())
	assert.Equal(t, RoleSecretary, loaded.Principal().Role)
	assert.Equal(t, `{"tab":"all"}`, loaded.Get("view:members"))
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Bienvenue", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestUnknownSessionIDIsReplaced(t *testing.T) {
	sm, _ := newManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "ecclesia_session", Value: "forged"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "forged", sess.ID)
}

func TestDestroyAndRenew(t *testing.T) {
	sm, mr := newManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	roundTrip(t, sm, sess)
	oldID := sess.ID
	assert.True(t, mr.Exists("ecclesia:session:"+oldID))

	require.NoError(t, sm.Renew(context.Background(), sess))
	assert.NotEqual(t, oldID, sess.ID)
	assert.False(t, mr.Exists("ecclesia:session:"+oldID))
	roundTrip(t, sm, sess)

	sm.Destroy(sess)
	cookie := roundTrip(t, sm, sess)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.False(t, mr.Exists("ecclesia:session:"+sess.ID))
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	sm, _ := newManager(t)
	csrf := NewCSRFManager("secret")
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(sess, token+"x"), ErrCSRFTokenMismatch)

	require.NoError(t, sm.Renew(context.Background(), sess))
	assert.ErrorIs(t, csrf.VerifyToken(sess, token), ErrCSRFTokenMismatch, "token signed for the old id")
	rotated, err := csrf.Rotate(sess)
	require.NoError(t, err)
	assert.NoError(t, csrf.VerifyToken(sess, rotated))
}

func TestPrincipalContextIsCopy(t *testing.T) {
	original := &Principal{UserID: "1", Role: RoleAdmin}
	ctx := ContextWithPrincipal(context.Background(), original)
	got := PrincipalFromContext(ctx)
	require.NotNil(t, got)
	got.Role = RoleMember
	assert.Equal(t, RoleAdmin, original.Role)
	assert.True(t, original.HasRole(RoleAdmin, RolePastor))
	assert.False(t, (*Principal)(nil).HasRole(RoleAdmin))
	assert.Nil(t, PrincipalFromContext(context.Background()))
}
