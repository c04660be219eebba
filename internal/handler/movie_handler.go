package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/disconcision/movienight/internal/model"
)

// MovieServiceInterface は映画ハンドラーが必要とするサービスインターフェース。
type MovieServiceInterface interface {
	List(ctx context.Context) ([]model.Movie, error)
	Get(ctx context.Context, movieID string) (*model.Movie, error)
	AddFromMetadata(ctx context.Context, tmdbID string) (*model.Movie, error)
	Recommendations(ctx context.Context) ([]model.AggregateMovieScore, error)
	UnseenCount(ctx context.Context, movieID string) (int, error)
}

// MovieHandler は映画カタログと推薦リストのHTTPハンドラー。
type MovieHandler struct {
	service MovieServiceInterface
}

// NewMovieHandler はMovieHandlerを生成する。
func NewMovieHandler(service MovieServiceInterface) *MovieHandler {
	return &MovieHandler{
		service: service,
	}
}

// movieResponse は映画情報のAPIレスポンス。
type movieResponse struct {
	ID        string    `json:"id"`
	TmdbID    string    `json:"tmdb_id"`
	Title     string    `json:"title"`
	Year      int       `json:"year,omitempty"`
	Rating    float64   `json:"rating"`
	Overview  string    `json:"overview,omitempty"`
	PosterURL string    `json:"poster_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// scoredMovieResponse はスコア付き映画のAPIレスポンス。
type scoredMovieResponse struct {
	MovieID string        `json:"movie_id"`
	Score   int           `json:"score"`
	Movie   movieResponse `json:"movie"`
}

// registerMovieRequest は映画登録リクエストのボディ。
type registerMovieRequest struct {
	TmdbID string `json:"tmdb_id" validate:"required,max=32"`
}

// unseenCountResponse は未鑑賞人数バッジのAPIレスポンス。
type unseenCountResponse struct {
	MovieID     string `json:"movie_id"`
	UnseenCount int    `json:"unseen_count"`
}

func toMovieResponse(m *model.Movie) movieResponse {
	return movieResponse{
		ID:        m.ID,
		TmdbID:    m.TmdbID,
		Title:     m.Title,
		Year:      m.Year,
		Rating:    m.Rating,
		Overview:  m.Overview,
		PosterURL: m.PosterURL,
		CreatedAt: m.CreatedAt,
	}
}

// ListMovies は全映画をタイトル昇順で返す。
// GET /api/movies
func (h *MovieHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]movieResponse, 0, len(movies))
	for i := range movies {
		resp = append(resp, toMovieResponse(&movies[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetMovie は指定IDの映画を返す。
// GET /api/movies/{id}
func (h *MovieHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "id")

	movie, err := h.service.Get(r.Context(), movieID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toMovieResponse(movie))
}

// RegisterMovie は外部メタデータAPIから映画をカタログに登録する。
// POST /api/movies
func (h *MovieHandler) RegisterMovie(w http.ResponseWriter, r *http.Request) {
	var req registerMovieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, "tmdb_idを指定してください。")
		return
	}

	movie, err := h.service.AddFromMetadata(r.Context(), req.TmdbID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toMovieResponse(movie))
}

// Recommendations は全員が未鑑賞の映画をスコア降順で返す。
// GET /api/recommendations
func (h *MovieHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	scored, err := h.service.Recommendations(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]scoredMovieResponse, 0, len(scored))
	for _, s := range scored {
		resp = append(resp, scoredMovieResponse{
			MovieID: s.MovieID,
			Score:   s.Score,
			Movie:   toMovieResponse(s.Movie),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// UnseenCount は指定映画を未鑑賞リストに入れているユーザー数を返す。
// GET /api/movies/{id}/unseen-count
func (h *MovieHandler) UnseenCount(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "id")

	count, err := h.service.UnseenCount(r.Context(), movieID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(unseenCountResponse{
		MovieID:     movieID,
		UnseenCount: count,
	})
}
