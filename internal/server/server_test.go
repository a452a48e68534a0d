package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/movieshelf/internal/app"
	"github.com/sakif/movieshelf/internal/auth"
	"github.com/sakif/movieshelf/internal/config"
	"github.com/sakif/movieshelf/internal/eventbus"
	"github.com/sakif/movieshelf/internal/handler"
	"github.com/sakif/movieshelf/internal/model"
)

const testPassword = "correct horse"

func newTestApp(t *testing.T, withAuth bool) *app.App {
	t.Helper()

	cfg := config.Default()
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "shelf.db")
	if withAuth {
		hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.Auth.JWTSecret = "test-secret-0123456789abcdef"
		cfg.Auth.AdminPasswordHash = string(hash)
	}

	a, err := app.Build(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func newTestServer(t *testing.T, withAuth bool) (*httptest.Server, *app.App) {
	t.Helper()
	a := newTestApp(t, withAuth)
	srv := httptest.NewServer(New(a).Handler())
	t.Cleanup(srv.Close)
	return srv, a
}

func request(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func login(t *testing.T, baseURL string) string {
	t.Helper()
	resp := request(t, http.MethodPost, baseURL+"/auth/login", "", `{"password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login sets the token cookie")
	assert.True(t, cookie.HttpOnly)

	body := decodeBody[map[string]any](t, resp)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, cookie.Value, token)
	return token
}

func TestRoutes_Health(t *testing.T) {
	srv, _ := newTestServer(t, false)

	resp := request(t, http.MethodGet, srv.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestRoutes_AuthDisabledAllowsWrites(t *testing.T) {
	srv, _ := newTestServer(t, false)

	resp := request(t, http.MethodPost, srv.URL+"/api/collections", "", `{"name":"Favorites"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = request(t, http.MethodPost, srv.URL+"/auth/login", "", `{"password":"anything"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "login is off without a secret")
}

func TestRoutes_WritesRequireToken(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp := request(t, http.MethodPost, srv.URL+"/api/collections", "", `{"name":"Favorites"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = request(t, http.MethodPost, srv.URL+"/auth/login", "", `{"password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := login(t, srv.URL)

	resp = request(t, http.MethodPost, srv.URL+"/api/collections", token, `{"name":"Favorites"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c := decodeBody[model.Collection](t, resp)

	// Reads stay public.
	resp = request(t, http.MethodGet, srv.URL+"/api/collections/"+c.ID, "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = request(t, http.MethodPost, srv.URL+"/api/collections/"+c.ID+"/movies", "", `{"id":550,"title":"Fight Club"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = request(t, http.MethodPost, srv.URL+"/api/collections/"+c.ID+"/movies", token, `{"id":550,"title":"Fight Club"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRoutes_SaveUpdatesLibrary(t *testing.T) {
	srv, a := newTestServer(t, false)
	ctx := context.Background()
	require.NoError(t, a.Library.Load(ctx))

	c, err := a.Collections.Create(ctx, "Favorites")
	require.NoError(t, err)

	resp := request(t, http.MethodPost, srv.URL+"/api/collections/"+c.ID+"/movies", "", `{"id":603,"title":"The Matrix","vote_average":8.7}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	a.Library.Wait()

	resp = request(t, http.MethodGet, srv.URL+"/api/library", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	lib := decodeBody[handler.LibraryResponse](t, resp)
	require.Len(t, lib.Collections, 1)
	assert.Equal(t, 1, lib.Collections[0].Count)
	require.Len(t, lib.Collections[0].Movies, 1)
	assert.Equal(t, 9, int(lib.Collections[0].Movies[0].VoteAverage), "stored rating is rounded")
}

func TestRoutes_MoviesWithoutCatalog(t *testing.T) {
	srv, _ := newTestServer(t, false)

	resp := request(t, http.MethodGet, srv.URL+"/api/movies/550", "", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestRoutes_EventStream(t *testing.T) {
	srv, a := newTestServer(t, false)
	ctx := context.Background()

	c, err := a.Collections.Create(ctx, "Favorites")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The library holds one subscription; wait for the stream's own.
	baseline := 1
	require.Eventually(t, func() bool {
		return a.Bus.Len(eventbus.EventMovieSaved) > baseline
	}, 2*time.Second, 10*time.Millisecond)

	saved, err := a.Memberships.SaveMovie(ctx, c.ID, model.MovieInput{ID: 550, Title: "Fight Club"})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env handler.Envelope
	require.NoError(t, conn.ReadJSON(&env))

	assert.Equal(t, eventbus.EventMovieSaved, env.Type)
	assert.Equal(t, c.ID, env.CollectionID)
	assert.Equal(t, saved.ID, env.Membership.ID)
	assert.Len(t, env.ID, 26, "ULID")

	conn.Close()
	require.Eventually(t, func() bool {
		return a.Bus.Len(eventbus.EventMovieSaved) == baseline
	}, 2*time.Second, 10*time.Millisecond, "stream unsubscribes on close")
}

func TestServe_StopsOnCancel(t *testing.T) {
	a := newTestApp(t, false)
	s := New(a)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
