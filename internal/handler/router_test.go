package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/disconcision/movienight/internal/middleware"
	"github.com/disconcision/movienight/internal/model"
)

// --- モック ---

type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session" {
				return &model.Session{
					ID:        id,
					UserID:    "user-1",
					ExpiresAt: time.Now().Add(time.Hour),
				}, nil
			}
			return nil, nil
		},
	}

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	return NewRouter(&RouterDeps{
		SessionFinder:     finder,
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       limiter,
		CSRFConfig:        middleware.CSRFConfig{},
		UserService:       &mockUserService{},
		UserConfig:        testUserHandlerConfig(),
		MovieService:      &mockMovieService{},
		ScheduleService:   &mockScheduleService{},
	})
}

// withSession は有効なセッションCookieをリクエストに付与する。
func withSession(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	return req
}

// withCSRFToken は二重送信CookieとヘッダーのCSRFトークンを付与する。
func withCSRFToken(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "token-1"})
	req.Header.Set("X-CSRF-Token", "token-1")
	return req
}

func TestRouter_Health_NoSessionRequired(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q, want status ok", w.Body.String())
	}
}

type failingPinger struct{}

func (f *failingPinger) PingContext(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestRouter_Health_DBUnavailable_Returns503(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	router := NewRouter(&RouterDeps{
		HealthChecker:     &failingPinger{},
		SessionFinder:     &mockSessionFinder{},
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       limiter,
		CSRFConfig:        middleware.CSRFConfig{},
		UserService:       &mockUserService{},
		UserConfig:        testUserHandlerConfig(),
		MovieService:      &mockMovieService{},
		ScheduleService:   &mockScheduleService{},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusServiceUnavailable)
	}
	if !strings.Contains(w.Body.String(), `"status":"unavailable"`) {
		t.Errorf("body = %q, want status unavailable", w.Body.String())
	}
}

func TestRouter_Identify_NoSessionRequired(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/identify",
		strings.NewReader(`{"name": "Alice"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_APIRoutes_RequireSession(t *testing.T) {
	router := newTestRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/movies"},
		{http.MethodGet, "/api/recommendations"},
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/slots"},
		{http.MethodGet, "/api/events"},
		{http.MethodGet, "/api/schedule/next"},
	}

	for _, tc := range paths {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want %d",
				tc.method, tc.path, w.Result().StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestRouter_APIRoutes_WithValidSession(t *testing.T) {
	router := newTestRouter(t)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/movies", nil))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_MutatingRequest_WithoutCSRFToken_Returns403(t *testing.T) {
	router := newTestRouter(t)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/movies",
		strings.NewReader(`{"tmdb_id": "348"}`)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestRouter_MutatingRequest_WithCSRFToken_Succeeds(t *testing.T) {
	router := newTestRouter(t)

	req := withCSRFToken(withSession(httptest.NewRequest(http.MethodPost, "/api/movies",
		strings.NewReader(`{"tmdb_id": "348"}`))))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
}

func TestRouter_SetUnseen_DispatchesWithMovieID(t *testing.T) {
	var capturedMovieID string
	svc := &mockUserService{
		setUnseenFn: func(ctx context.Context, userID, movieID string, unseen bool) (*model.User, error) {
			capturedMovieID = movieID
			return &model.User{ID: userID, UnseenMovies: []string{movieID}}, nil
		},
	}

	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	router := NewRouter(&RouterDeps{
		SessionFinder:     finder,
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       limiter,
		CSRFConfig:        middleware.CSRFConfig{},
		UserService:       svc,
		UserConfig:        testUserHandlerConfig(),
		MovieService:      &mockMovieService{},
		ScheduleService:   &mockScheduleService{},
	})

	req := withCSRFToken(withSession(httptest.NewRequest(http.MethodPut,
		"/api/users/me/unseen/movie-42", strings.NewReader(`{"unseen": false}`))))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if capturedMovieID != "movie-42" {
		t.Errorf("movieID = %q, want %q", capturedMovieID, "movie-42")
	}
}

func TestRouter_CSRFTokenEndpoint_IssuesToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var found bool
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "csrf_token" && cookie.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("csrf_token cookie was not set")
	}
}

func TestRouter_SecurityHeaders_Present(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
}
