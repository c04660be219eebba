package movie

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/disconcision/movienight/internal/metadata"
	"github.com/disconcision/movienight/internal/model"
)

// --- モック ---

type mockMovieRepo struct {
	findByIDFn     func(ctx context.Context, id string) (*model.Movie, error)
	findByTmdbIDFn func(ctx context.Context, tmdbID string) (*model.Movie, error)
	listAllFn      func(ctx context.Context) ([]model.Movie, error)
	createFn       func(ctx context.Context, movie *model.Movie) error
}

func (m *mockMovieRepo) FindByID(ctx context.Context, id string) (*model.Movie, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockMovieRepo) FindByTmdbID(ctx context.Context, tmdbID string) (*model.Movie, error) {
	if m.findByTmdbIDFn != nil {
		return m.findByTmdbIDFn(ctx, tmdbID)
	}
	return nil, nil
}
func (m *mockMovieRepo) ListAll(ctx context.Context) ([]model.Movie, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}
func (m *mockMovieRepo) Create(ctx context.Context, movie *model.Movie) error {
	if m.createFn != nil {
		return m.createFn(ctx, movie)
	}
	return nil
}
func (m *mockMovieRepo) UpdateRating(ctx context.Context, movieID string, rating float64, refreshedAt time.Time) error {
	return nil
}
func (m *mockMovieRepo) ListStaleRatings(ctx context.Context, staleBefore time.Time, limit int) ([]model.Movie, error) {
	return nil, nil
}

type mockUserRepo struct {
	listAllFn func(ctx context.Context) ([]model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) FindByName(ctx context.Context, name string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }
func (m *mockUserRepo) ListAll(ctx context.Context) ([]model.User, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}
func (m *mockUserRepo) ReplaceUnseenList(ctx context.Context, userID string, movieIDs []string) error {
	return nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error { return nil }

type mockLookup struct {
	lookupFn func(ctx context.Context, tmdbID string) (*metadata.MovieMetadata, error)
}

func (m *mockLookup) Lookup(ctx context.Context, tmdbID string) (*metadata.MovieMetadata, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, tmdbID)
	}
	return nil, nil
}

type mockValidator struct {
	validateFn func(rawURL string) error
}

func (m *mockValidator) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

type mockSanitizer struct {
	sanitizeFn func(raw string) string
}

func (m *mockSanitizer) Sanitize(raw string) string {
	if m.sanitizeFn != nil {
		return m.sanitizeFn(raw)
	}
	return raw
}

type mockRecommendationMetrics struct {
	computedSizes []int
}

func (m *mockRecommendationMetrics) RecordRecommendationComputed(intersectionSize int) {
	m.computedSizes = append(m.computedSizes, intersectionSize)
}

// --- AddFromMetadata のテスト ---

func TestAddFromMetadata_RegistersMovie(t *testing.T) {
	var created *model.Movie
	movieRepo := &mockMovieRepo{
		createFn: func(ctx context.Context, movie *model.Movie) error {
			created = movie
			return nil
		},
	}
	client := &mockLookup{
		lookupFn: func(ctx context.Context, tmdbID string) (*metadata.MovieMetadata, error) {
			return &metadata.MovieMetadata{
				TmdbID:    "603",
				Title:     "The Matrix",
				Year:      1999,
				Rating:    8.2,
				Overview:  "<p>A hacker learns the truth.</p>",
				PosterURL: "https://image.example.com/matrix.jpg",
			}, nil
		},
	}

	svc := NewService(movieRepo, &mockUserRepo{}, client, &mockValidator{}, &mockSanitizer{}, nil)

	movie, err := svc.AddFromMetadata(context.Background(), "603")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if created == nil {
		t.Fatal("movie was not created")
	}
	if movie.ID == "" {
		t.Error("movie ID is empty")
	}
	if movie.TmdbID != "603" {
		t.Errorf("tmdbID = %q, want %q", movie.TmdbID, "603")
	}
	if movie.Title != "The Matrix" {
		t.Errorf("title = %q, want %q", movie.Title, "The Matrix")
	}
	if movie.RatingRefreshedAt.IsZero() {
		t.Error("ratingRefreshedAt should be set on registration")
	}
}

func TestAddFromMetadata_Duplicate_ReturnsDuplicateMovieError(t *testing.T) {
	movieRepo := &mockMovieRepo{
		findByTmdbIDFn: func(ctx context.Context, tmdbID string) (*model.Movie, error) {
			return &model.Movie{ID: "movie-1", TmdbID: tmdbID}, nil
		},
	}

	svc := NewService(movieRepo, &mockUserRepo{}, &mockLookup{}, &mockValidator{}, &mockSanitizer{}, nil)

	_, err := svc.AddFromMetadata(context.Background(), "603")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeDuplicateMovie {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeDuplicateMovie)
	}
}

func TestAddFromMetadata_LookupFails_ReturnsMetadataFetchError(t *testing.T) {
	client := &mockLookup{
		lookupFn: func(ctx context.Context, tmdbID string) (*metadata.MovieMetadata, error) {
			return nil, fmt.Errorf("api unavailable")
		},
	}

	svc := NewService(&mockMovieRepo{}, &mockUserRepo{}, client, &mockValidator{}, &mockSanitizer{}, nil)

	_, err := svc.AddFromMetadata(context.Background(), "603")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeMetadataFetch {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeMetadataFetch)
	}
}

func TestAddFromMetadata_UnknownID_ReturnsMovieNotFoundError(t *testing.T) {
	client := &mockLookup{
		lookupFn: func(ctx context.Context, tmdbID string) (*metadata.MovieMetadata, error) {
			return nil, nil
		},
	}

	svc := NewService(&mockMovieRepo{}, &mockUserRepo{}, client, &mockValidator{}, &mockSanitizer{}, nil)

	_, err := svc.AddFromMetadata(context.Background(), "999999")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeMovieNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeMovieNotFound)
	}
}

func TestAddFromMetadata_SanitizesOverview(t *testing.T) {
	var created *model.Movie
	movieRepo := &mockMovieRepo{
		createFn: func(ctx context.Context, movie *model.Movie) error {
			created = movie
			return nil
		},
	}
	client := &mockLookup{
		lookupFn: func(ctx context.Context, tmdbID string) (*metadata.MovieMetadata, error) {
			return &metadata.MovieMetadata{
				TmdbID:   tmdbID,
				Title:    "Test",
				Overview: `<script>alert(1)</script>plot`,
			}, nil
		},
	}
	sanitizer := &mockSanitizer{
		sanitizeFn: func(raw string) string { return "plot" },
	}

	svc := NewService(movieRepo, &mockUserRepo{}, client, &mockValidator{}, sanitizer, nil)

	if _, err := svc.AddFromMetadata(context.Background(), "100"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.Overview != "plot" {
		t.Errorf("overview = %q, want %q", created.Overview, "plot")
	}
}

func TestAddFromMetadata_InvalidPosterURL_DroppedNotFatal(t *testing.T) {
	var created *model.Movie
	movieRepo := &mockMovieRepo{
		createFn: func(ctx context.Context, movie *model.Movie) error {
			created = movie
			return nil
		},
	}
	client := &mockLookup{
		lookupFn: func(ctx context.Context, tmdbID string) (*metadata.MovieMetadata, error) {
			return &metadata.MovieMetadata{
				TmdbID:    tmdbID,
				Title:     "Test",
				PosterURL: "http://169.254.169.254/poster.jpg",
			}, nil
		},
	}
	validator := &mockValidator{
		validateFn: func(rawURL string) error {
			return fmt.Errorf("blocked address")
		},
	}

	svc := NewService(movieRepo, &mockUserRepo{}, client, validator, &mockSanitizer{}, nil)

	movie, err := svc.AddFromMetadata(context.Background(), "100")
	if err != nil {
		t.Fatalf("registration should succeed without poster, got %v", err)
	}
	if movie.PosterURL != "" {
		t.Errorf("posterURL = %q, want empty", movie.PosterURL)
	}
	if created == nil {
		t.Fatal("movie was not created")
	}
}

// --- Recommendations のテスト ---

func TestRecommendations_ReturnsScoredIntersection(t *testing.T) {
	userRepo := &mockUserRepo{
		listAllFn: func(ctx context.Context) ([]model.User, error) {
			return []model.User{
				{ID: "user-a", UnseenMovies: []string{"movie-1", "movie-2"}},
				{ID: "user-b", UnseenMovies: []string{"movie-2", "movie-1", "movie-3"}},
			}, nil
		},
	}
	movieRepo := &mockMovieRepo{
		listAllFn: func(ctx context.Context) ([]model.Movie, error) {
			return []model.Movie{
				{ID: "movie-1", Title: "Alpha"},
				{ID: "movie-2", Title: "Beta"},
				{ID: "movie-3", Title: "Gamma"},
			}, nil
		},
	}

	svc := NewService(movieRepo, userRepo, &mockLookup{}, &mockValidator{}, &mockSanitizer{}, nil)

	scored, err := svc.Recommendations(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// movie-1: (2-0)+(3-1)=4, movie-2: (2-1)+(3-0)=4 → 安定ソートで元順序維持
	if len(scored) != 2 {
		t.Fatalf("scored count = %d, want 2", len(scored))
	}
	for _, s := range scored {
		if s.Score != 4 {
			t.Errorf("score for %s = %d, want 4", s.MovieID, s.Score)
		}
		if s.Movie == nil {
			t.Errorf("movie for %s is not resolved", s.MovieID)
		}
	}
}

func TestRecommendations_RecordsIntersectionSize(t *testing.T) {
	userRepo := &mockUserRepo{
		listAllFn: func(ctx context.Context) ([]model.User, error) {
			return []model.User{
				{ID: "user-a", UnseenMovies: []string{"movie-1"}},
			}, nil
		},
	}
	movieRepo := &mockMovieRepo{
		listAllFn: func(ctx context.Context) ([]model.Movie, error) {
			return []model.Movie{{ID: "movie-1", Title: "Alpha"}}, nil
		},
	}
	m := &mockRecommendationMetrics{}

	svc := NewService(movieRepo, userRepo, &mockLookup{}, &mockValidator{}, &mockSanitizer{}, m)

	if _, err := svc.Recommendations(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(m.computedSizes) != 1 || m.computedSizes[0] != 1 {
		t.Errorf("recorded sizes = %v, want [1]", m.computedSizes)
	}
}

func TestRecommendations_NoUsers_ReturnsEmpty(t *testing.T) {
	svc := NewService(&mockMovieRepo{}, &mockUserRepo{}, &mockLookup{}, &mockValidator{}, &mockSanitizer{}, nil)

	scored, err := svc.Recommendations(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(scored) != 0 {
		t.Errorf("scored count = %d, want 0", len(scored))
	}
}

// --- UnseenCount のテスト ---

func TestUnseenCount_CountsMembership(t *testing.T) {
	movieRepo := &mockMovieRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Movie, error) {
			return &model.Movie{ID: id}, nil
		},
	}
	userRepo := &mockUserRepo{
		listAllFn: func(ctx context.Context) ([]model.User, error) {
			return []model.User{
				{ID: "user-a", UnseenMovies: []string{"movie-1", "movie-2"}},
				{ID: "user-b", UnseenMovies: []string{"movie-2"}},
				{ID: "user-c", UnseenMovies: []string{}},
			}, nil
		},
	}

	svc := NewService(movieRepo, userRepo, &mockLookup{}, &mockValidator{}, &mockSanitizer{}, nil)

	count, err := svc.UnseenCount(context.Background(), "movie-2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestUnseenCount_UnknownMovie_ReturnsMovieNotFoundError(t *testing.T) {
	svc := NewService(&mockMovieRepo{}, &mockUserRepo{}, &mockLookup{}, &mockValidator{}, &mockSanitizer{}, nil)

	_, err := svc.UnseenCount(context.Background(), "movie-missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeMovieNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeMovieNotFound)
	}
}

// --- Get のテスト ---

func TestGet_UnknownMovie_ReturnsMovieNotFoundError(t *testing.T) {
	svc := NewService(&mockMovieRepo{}, &mockUserRepo{}, &mockLookup{}, &mockValidator{}, &mockSanitizer{}, nil)

	_, err := svc.Get(context.Background(), "movie-missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeMovieNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeMovieNotFound)
	}
}
