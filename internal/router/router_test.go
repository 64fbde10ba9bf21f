package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/config"
	"github.com/iliyamo/cinema-ebooking/internal/handler"
	"github.com/iliyamo/cinema-ebooking/internal/metrics"
	"github.com/iliyamo/cinema-ebooking/internal/middleware"
	"github.com/iliyamo/cinema-ebooking/internal/repository"
	"github.com/iliyamo/cinema-ebooking/internal/utils"
)

const secret = "router-test-secret"

func newServer() *echo.Echo {
	e := echo.New()
	Register(e, Handlers{
		Health:        &handler.HealthHandler{},
		Auth:          &handler.AuthHandler{},
		Profile:       &handler.ProfileHandler{},
		Payments:      &handler.PaymentMethodHandler{},
		Movies:        &handler.MovieHandler{},
		Promotions:    &handler.PromotionHandler{},
		Subscriptions: &handler.SubscriptionHandler{},
		Users:         &handler.UserAdminHandler{},
	}, Options{
		JWTSecret:   secret,
		CORSOrigins: []string{"http://localhost:3000"},
		Metrics:     metrics.New(),
		Log:         zap.NewNop(),
	})
	return e
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, 7, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestOperationalRoutes(t *testing.T) {
	e := newServer()
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/healthz", "").Code)

	rr := serve(e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "cinema_http_requests_total")
}

func TestMoviePingIsNotAnID(t *testing.T) {
	rr := serve(newServer(), http.MethodGet, "/api/movies/ping", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"time"`)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	e := newServer()
	paths := []struct{ method, path string }{
		{http.MethodPost, "/api/promotions"},
		{http.MethodDelete, "/api/promotions/codes/3"},
		{http.MethodGet, "/api/subscribed-users"},
		{http.MethodPost, "/api/send-promotion/1"},
		{http.MethodGet, "/api/users"},
		{http.MethodDelete, "/api/users/2"},
	}
	for _, p := range paths {
		assert.Equal(t, http.StatusUnauthorized, serve(e, p.method, p.path, "").Code, p.path)
		assert.Equal(t, http.StatusForbidden, serve(e, p.method, p.path, bearer(t, "registered")).Code, p.path)
	}
}

func TestAccountDeletionNeedsToken(t *testing.T) {
	rr := serve(newServer(), http.MethodDelete, "/api/auth/profile/7", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestProfileRejectsBadToken(t *testing.T) {
	rr := serve(newServer(), http.MethodGet, "/api/users/profile", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/movies", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rr := httptest.NewRecorder()
	newServer().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestCachedMovieKeepsCallerOrigin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectQuery("FROM movies WHERE id = \\?").WithArgs(uint64(4)).WillReturnRows(
		sqlmock.NewRows([]string{"id", "title", "mpaa_rating", "synopsis", "trailer_video_url", "trailer_image_url"}).
			AddRow(4, "Alien", "R", "", "", ""))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zap.NewNop()
	e := echo.New()
	Register(e, Handlers{
		Health:        &handler.HealthHandler{},
		Auth:          &handler.AuthHandler{},
		Profile:       &handler.ProfileHandler{},
		Payments:      &handler.PaymentMethodHandler{},
		Movies:        handler.NewMovieHandler(repository.NewMovieRepo(db), log),
		Promotions:    &handler.PromotionHandler{},
		Subscriptions: &handler.SubscriptionHandler{},
		Users:         &handler.UserAdminHandler{},
	}, Options{
		JWTSecret:   secret,
		CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		Cache: middleware.NewRedisCache(config.CacheConfig{
			Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute,
			KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20,
		}, rdb, log),
		Metrics: metrics.New(),
		Log:     log,
	})

	get := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/movies/4", nil)
		req.Header.Set(echo.HeaderOrigin, origin)
		rr := httptest.NewRecorder()
		e.ServeHTTP(rr, req)
		return rr
	}

	first := get("http://localhost:3000")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := get("http://localhost:3001")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, []string{"http://localhost:3001"}, second.Header().Values(echo.HeaderAccessControlAllowOrigin))
	assert.Len(t, second.Header().Values(echo.HeaderXRequestID), 1)
	assert.NotEqual(t, first.Header().Get(echo.HeaderXRequestID), second.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, first.Body.String(), second.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
