package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"

	"github.com/quayside/storefront/internal/cart"
	"github.com/quayside/storefront/internal/catalog"
	"github.com/quayside/storefront/internal/db/bunx"
	"github.com/quayside/storefront/internal/guard"
	"github.com/quayside/storefront/internal/identity"
	"github.com/quayside/storefront/internal/migrations"
	"github.com/quayside/storefront/internal/repository"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

const testCookieName = "storefront.session"

func mintToken(t *testing.T, userID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	db, err := bunx.NewDB(":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { bunx.Close(db) })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	verifier, err := identity.NewVerifier(testSecret)
	require.NoError(t, err)
	g, err := guard.New("")
	require.NoError(t, err)

	products := catalog.NewStatic([]catalog.Product{
		{ID: "p-tea", Price: 450},
		{ID: "p-mug", Price: 1200},
	})
	svc := cart.NewService(repository.NewBunCartRepository(db), products)

	router, err := NewRouter(RouterOptions{
		CartService: svc,
		Catalog:     products,
		Verifier:    verifier,
		Guard:       g,
	})
	require.NoError(t, err)
	return router
}

// client carries cookies between requests the way a browser would.
type client struct {
	t       *testing.T
	router  chi.Router
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, router chi.Router) *client {
	return &client{t: t, router: router, cookies: make(map[string]*http.Cookie)}
}

func (c *client) do(method, path, body string, header http.Header) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie
	}
	return rec
}

func decodeCart(t *testing.T, body *httptest.ResponseRecorder) cartView {
	t.Helper()
	var view cartView
	require.NoError(t, json.NewDecoder(body.Body).Decode(&view))
	return view
}

func TestGuestShoppingFlow(t *testing.T) {
	c := newClient(t, newTestRouter(t))

	// First contact mints a guest id.
	rec := c.do(http.MethodGet, "/cart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	guestCookie, ok := c.cookies[identity.GuestCookieName]
	require.True(t, ok)
	assert.True(t, identity.ValidGuestID(guestCookie.Value))
	assert.Empty(t, decodeCart(t, rec).Lines)

	rec = c.do(http.MethodPost, "/cart/lines", `{"productId":"p-tea","quantity":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodPost, "/cart/lines", `{"productId":"p-tea","quantity":1}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeCart(t, rec)
	assert.Equal(t, 3, view.Lines["p-tea"].Quantity)
	assert.Equal(t, guestCookie.Value, view.Key)

	// The guest id is stable across requests.
	assert.Equal(t, guestCookie.Value, c.cookies[identity.GuestCookieName].Value)

	rec = c.do(http.MethodDelete, "/cart/lines/p-tea", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Lines)
}

func TestUpsertLine_BadRequests(t *testing.T) {
	c := newClient(t, newTestRouter(t))

	rec := c.do(http.MethodPost, "/cart/lines", `{"productId":"p-ghost","quantity":1}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.do(http.MethodPost, "/cart/lines", `{"productId":"","quantity":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/cart/lines", `{"productId":"p-tea","quantity":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/cart/lines", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignInMergesGuestCart(t *testing.T) {
	c := newClient(t, newTestRouter(t))

	// Build up a guest cart.
	rec := c.do(http.MethodPost, "/cart/lines", `{"productId":"p-tea","quantity":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodPost, "/cart/lines", `{"productId":"p-mug","quantity":1}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	guestID := c.cookies[identity.GuestCookieName].Value

	// Sign in with a bearer token.
	header := http.Header{"Authorization": []string{"Bearer " + mintToken(t, "u-shopper", "customer")}}
	rec = c.do(http.MethodPost, "/auth/signin", "", header)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp signInResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "u-shopper", resp.UserID)
	assert.True(t, resp.Merged)
	assert.Equal(t, 2, resp.Cart.Lines["p-tea"].Quantity)
	assert.Equal(t, 1, resp.Cart.Lines["p-mug"].Quantity)
	assert.Equal(t, "u-shopper", resp.Cart.Key)

	// Session established, guest cookie cleared.
	session, ok := c.cookies[testCookieName]
	require.True(t, ok)
	assert.NotEmpty(t, session.Value)
	_, stillGuest := c.cookies[identity.GuestCookieName]
	assert.False(t, stillGuest)

	// Subsequent reads use the session and see the merged cart.
	rec = c.do(http.MethodGet, "/cart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeCart(t, rec)
	assert.Equal(t, "u-shopper", view.Key)
	assert.Len(t, view.Lines, 2)

	// The retired guest cart reads as empty for a fresh anonymous visitor
	// who somehow presents the old id.
	fresh := newClient(t, c.router)
	fresh.cookies[identity.GuestCookieName] = &http.Cookie{Name: identity.GuestCookieName, Value: guestID}
	rec = fresh.do(http.MethodGet, "/cart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Lines)
}

func TestSignInRetryAfterFirstAttempt(t *testing.T) {
	c := newClient(t, newTestRouter(t))

	rec := c.do(http.MethodPost, "/cart/lines", `{"productId":"p-tea","quantity":1}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	header := http.Header{"Authorization": []string{"Bearer " + mintToken(t, "u-retry", "customer")}}
	rec = c.do(http.MethodPost, "/auth/signin", "", header)
	require.Equal(t, http.StatusOK, rec.Code)

	// A duplicate sign-in call (client retry) is a no-op on the cart.
	rec = c.do(http.MethodPost, "/auth/signin", "", header)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp signInResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Merged)
	assert.Equal(t, 1, resp.Cart.Lines["p-tea"].Quantity)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	c := newClient(t, newTestRouter(t))

	rec := c.do(http.MethodPost, "/auth/signin", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	header := http.Header{"Authorization": []string{"Bearer garbage"}}
	rec = c.do(http.MethodPost, "/auth/signin", "", header)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, hasSession := c.cookies[testCookieName]
	assert.False(t, hasSession, "no session on failed sign-in")
}

func TestSignOutClearsSession(t *testing.T) {
	c := newClient(t, newTestRouter(t))

	header := http.Header{"Authorization": []string{"Bearer " + mintToken(t, "u-out", "customer")}}
	rec := c.do(http.MethodPost, "/auth/signin", "", header)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, c.cookies, testCookieName)

	rec = c.do(http.MethodPost, "/auth/signout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, c.cookies, testCookieName)
}

func TestRouteGuardRedirects(t *testing.T) {
	router := newTestRouter(t)

	t.Run("anonymous on admin route", func(t *testing.T) {
		c := newClient(t, router)
		rec := c.do(http.MethodGet, "/admin/carts/some-key", "", nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/auth/signin", rec.Header().Get("Location"))
	})

	t.Run("customer on admin route", func(t *testing.T) {
		c := newClient(t, router)
		header := http.Header{"Authorization": []string{"Bearer " + mintToken(t, "u-1", "customer")}}
		rec := c.do(http.MethodGet, "/admin/carts/some-key", "", header)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})

	t.Run("admin inspects a cart", func(t *testing.T) {
		c := newClient(t, router)
		rec := c.do(http.MethodPost, "/cart/lines", `{"productId":"p-tea","quantity":4}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		guestID := c.cookies[identity.GuestCookieName].Value

		header := http.Header{"Authorization": []string{"Bearer " + mintToken(t, "u-admin", "admin")}}
		rec = c.do(http.MethodGet, "/admin/carts/"+guestID, "", header)
		require.Equal(t, http.StatusOK, rec.Code)

		var view adminCartView
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
		assert.Equal(t, "active", view.Status)
		assert.Equal(t, 4, view.Lines["p-tea"].Quantity)
	})

	t.Run("admin inspect of unknown key", func(t *testing.T) {
		c := newClient(t, router)
		header := http.Header{"Authorization": []string{"Bearer " + mintToken(t, "u-admin", "admin")}}
		rec := c.do(http.MethodGet, "/admin/carts/nope", "", header)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCatalogEndpoint(t *testing.T) {
	c := newClient(t, newTestRouter(t))

	rec := c.do(http.MethodGet, "/catalog/p-tea", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p catalog.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, int64(450), p.Price)

	rec = c.do(http.MethodGet, "/catalog/p-nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	c := newClient(t, newTestRouter(t))
	rec := c.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
