package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/disconcision/movienight/internal/model"
)

// --- モック ---

type mockMovieService struct {
	listFn            func(ctx context.Context) ([]model.Movie, error)
	getFn             func(ctx context.Context, movieID string) (*model.Movie, error)
	addFromMetadataFn func(ctx context.Context, tmdbID string) (*model.Movie, error)
	recommendationsFn func(ctx context.Context) ([]model.AggregateMovieScore, error)
	unseenCountFn     func(ctx context.Context, movieID string) (int, error)
}

func (m *mockMovieService) List(ctx context.Context) ([]model.Movie, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockMovieService) Get(ctx context.Context, movieID string) (*model.Movie, error) {
	if m.getFn != nil {
		return m.getFn(ctx, movieID)
	}
	return &model.Movie{ID: movieID}, nil
}
func (m *mockMovieService) AddFromMetadata(ctx context.Context, tmdbID string) (*model.Movie, error) {
	if m.addFromMetadataFn != nil {
		return m.addFromMetadataFn(ctx, tmdbID)
	}
	return &model.Movie{ID: "movie-1", TmdbID: tmdbID}, nil
}
func (m *mockMovieService) Recommendations(ctx context.Context) ([]model.AggregateMovieScore, error) {
	if m.recommendationsFn != nil {
		return m.recommendationsFn(ctx)
	}
	return nil, nil
}
func (m *mockMovieService) UnseenCount(ctx context.Context, movieID string) (int, error) {
	if m.unseenCountFn != nil {
		return m.unseenCountFn(ctx, movieID)
	}
	return 0, nil
}

// --- ListMovies のテスト ---

func TestListMoviesHandler_ReturnsMovies(t *testing.T) {
	svc := &mockMovieService{
		listFn: func(ctx context.Context) ([]model.Movie, error) {
			return []model.Movie{
				{ID: "movie-1", Title: "Alien"},
				{ID: "movie-2", Title: "Heat"},
			}, nil
		},
	}
	h := NewMovieHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/movies", nil)
	w := httptest.NewRecorder()

	h.ListMovies(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body []movieResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("movies length = %d, want 2", len(body))
	}
	if body[0].Title != "Alien" {
		t.Errorf("title = %q, want %q", body[0].Title, "Alien")
	}
}

func TestListMoviesHandler_Empty_ReturnsEmptyArray(t *testing.T) {
	h := NewMovieHandler(&mockMovieService{})

	req := httptest.NewRequest(http.MethodGet, "/api/movies", nil)
	w := httptest.NewRecorder()

	h.ListMovies(w, req)

	got := strings.TrimSpace(w.Body.String())
	if got != "[]" {
		t.Errorf("body = %q, want %q", got, "[]")
	}
}

// --- GetMovie のテスト ---

func TestGetMovieHandler_NotFound_Returns404(t *testing.T) {
	svc := &mockMovieService{
		getFn: func(ctx context.Context, movieID string) (*model.Movie, error) {
			return nil, model.NewMovieNotFoundError(movieID)
		},
	}
	h := NewMovieHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/movies/missing", nil)
	req = withURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.GetMovie(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

// --- RegisterMovie のテスト ---

func TestRegisterMovieHandler_Returns201(t *testing.T) {
	var capturedTmdbID string
	svc := &mockMovieService{
		addFromMetadataFn: func(ctx context.Context, tmdbID string) (*model.Movie, error) {
			capturedTmdbID = tmdbID
			return &model.Movie{ID: "movie-1", TmdbID: tmdbID, Title: "Alien"}, nil
		},
	}
	h := NewMovieHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/movies",
		strings.NewReader(`{"tmdb_id": "348"}`))
	w := httptest.NewRecorder()

	h.RegisterMovie(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
	if capturedTmdbID != "348" {
		t.Errorf("tmdbID = %q, want %q", capturedTmdbID, "348")
	}
}

func TestRegisterMovieHandler_MissingTmdbID_Returns400(t *testing.T) {
	h := NewMovieHandler(&mockMovieService{})

	req := httptest.NewRequest(http.MethodPost, "/api/movies", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	h.RegisterMovie(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestRegisterMovieHandler_Duplicate_Returns409(t *testing.T) {
	svc := &mockMovieService{
		addFromMetadataFn: func(ctx context.Context, tmdbID string) (*model.Movie, error) {
			return nil, model.NewDuplicateMovieError()
		},
	}
	h := NewMovieHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/movies",
		strings.NewReader(`{"tmdb_id": "348"}`))
	w := httptest.NewRecorder()

	h.RegisterMovie(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeDuplicateMovie {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeDuplicateMovie)
	}
}

func TestRegisterMovieHandler_MetadataFetchFailure_Returns502(t *testing.T) {
	svc := &mockMovieService{
		addFromMetadataFn: func(ctx context.Context, tmdbID string) (*model.Movie, error) {
			return nil, model.NewMetadataFetchError("connection refused")
		},
	}
	h := NewMovieHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/movies",
		strings.NewReader(`{"tmdb_id": "348"}`))
	w := httptest.NewRecorder()

	h.RegisterMovie(w, req)

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadGateway)
	}
}

// --- Recommendations のテスト ---

func TestRecommendationsHandler_ReturnsScoredMovies(t *testing.T) {
	svc := &mockMovieService{
		recommendationsFn: func(ctx context.Context) ([]model.AggregateMovieScore, error) {
			return []model.AggregateMovieScore{
				{MovieID: "movie-2", Score: 5, Movie: &model.Movie{ID: "movie-2", Title: "Heat"}},
				{MovieID: "movie-1", Score: 3, Movie: &model.Movie{ID: "movie-1", Title: "Alien"}},
			}, nil
		},
	}
	h := NewMovieHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/recommendations", nil)
	w := httptest.NewRecorder()

	h.Recommendations(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body []scoredMovieResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("recommendations length = %d, want 2", len(body))
	}
	if body[0].MovieID != "movie-2" || body[0].Score != 5 {
		t.Errorf("first = %+v, want movie-2 with score 5", body[0])
	}
	if body[0].Movie.Title != "Heat" {
		t.Errorf("embedded title = %q, want %q", body[0].Movie.Title, "Heat")
	}
}

func TestRecommendationsHandler_Empty_ReturnsEmptyArray(t *testing.T) {
	h := NewMovieHandler(&mockMovieService{})

	req := httptest.NewRequest(http.MethodGet, "/api/recommendations", nil)
	w := httptest.NewRecorder()

	h.Recommendations(w, req)

	got := strings.TrimSpace(w.Body.String())
	if got != "[]" {
		t.Errorf("body = %q, want %q", got, "[]")
	}
}

// --- UnseenCount のテスト ---

func TestUnseenCountHandler_ReturnsCount(t *testing.T) {
	svc := &mockMovieService{
		unseenCountFn: func(ctx context.Context, movieID string) (int, error) {
			return 3, nil
		},
	}
	h := NewMovieHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/movies/movie-1/unseen-count", nil)
	req = withURLParam(req, "id", "movie-1")
	w := httptest.NewRecorder()

	h.UnseenCount(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body unseenCountResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.UnseenCount != 3 {
		t.Errorf("unseen count = %d, want 3", body.UnseenCount)
	}
	if body.MovieID != "movie-1" {
		t.Errorf("movie id = %q, want %q", body.MovieID, "movie-1")
	}
}
