// Package movie は映画カタログと推薦リストのドメインロジックを提供する。
package movie

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/disconcision/movienight/internal/metadata"
	"github.com/disconcision/movienight/internal/model"
	"github.com/disconcision/movienight/internal/priority"
	"github.com/disconcision/movienight/internal/repository"
)

// MetadataLookup は映画メタデータ取得のインターフェース。
type MetadataLookup interface {
	Lookup(ctx context.Context, tmdbID string) (*metadata.MovieMetadata, error)
}

// URLValidator はポスターURLの事前検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// OverviewSanitizer はあらすじのサニタイズインターフェース。
type OverviewSanitizer interface {
	Sanitize(raw string) string
}

// RecommendationMetrics は推薦計算のメトリクス記録インターフェース。
type RecommendationMetrics interface {
	RecordRecommendationComputed(intersectionSize int)
}

// Service は映画カタログと推薦リストのサービス層。
type Service struct {
	movieRepo repository.MovieRepository
	userRepo  repository.UserRepository
	client    MetadataLookup
	validator URLValidator
	sanitizer OverviewSanitizer
	metrics   RecommendationMetrics
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilでもよい。
func NewService(
	movieRepo repository.MovieRepository,
	userRepo repository.UserRepository,
	client MetadataLookup,
	validator URLValidator,
	sanitizer OverviewSanitizer,
	metrics RecommendationMetrics,
) *Service {
	return &Service{
		movieRepo: movieRepo,
		userRepo:  userRepo,
		client:    client,
		validator: validator,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// List は全映画をタイトル昇順で返す。
func (s *Service) List(ctx context.Context) ([]model.Movie, error) {
	movies, err := s.movieRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("映画一覧の取得に失敗しました: %w", err)
	}
	return movies, nil
}

// Get は指定IDの映画を取得する。
func (s *Service) Get(ctx context.Context, movieID string) (*model.Movie, error) {
	movie, err := s.movieRepo.FindByID(ctx, movieID)
	if err != nil {
		return nil, fmt.Errorf("映画の取得に失敗しました: %w", err)
	}
	if movie == nil {
		return nil, model.NewMovieNotFoundError(movieID)
	}
	return movie, nil
}

// AddFromMetadata は外部メタデータAPIから映画をカタログに登録する。
// 同一の外部IDが登録済みの場合は重複エラーを返す。
// あらすじはサニタイズし、ポスターURLはSSRF防止の事前検証を通す。
func (s *Service) AddFromMetadata(ctx context.Context, tmdbID string) (*model.Movie, error) {
	// 1. 重複チェック
	existing, err := s.movieRepo.FindByTmdbID(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("映画の検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateMovieError()
	}

	// 2. メタデータ取得
	meta, err := s.client.Lookup(ctx, tmdbID)
	if err != nil {
		return nil, model.NewMetadataFetchError(err.Error())
	}
	if meta == nil {
		return nil, model.NewMovieNotFoundError(tmdbID)
	}

	// 3. ポスターURLの事前検証（不正なURLは捨てて登録は続行する）
	posterURL := meta.PosterURL
	if posterURL != "" && s.validator != nil {
		if err := s.validator.ValidateURL(posterURL); err != nil {
			slog.Warn("ポスターURLの検証に失敗したため破棄します",
				slog.String("tmdb_id", tmdbID),
				slog.String("poster_url", posterURL),
				slog.String("error", err.Error()),
			)
			posterURL = ""
		}
	}

	// 4. あらすじのサニタイズ
	overview := meta.Overview
	if s.sanitizer != nil {
		overview = s.sanitizer.Sanitize(overview)
	}

	now := time.Now()
	movie := &model.Movie{
		ID:                uuid.New().String(),
		TmdbID:            meta.TmdbID,
		Title:             meta.Title,
		Year:              meta.Year,
		Rating:            meta.Rating,
		Overview:          overview,
		PosterURL:         posterURL,
		CreatedAt:         now,
		UpdatedAt:         now,
		RatingRefreshedAt: now,
	}

	if err := s.movieRepo.Create(ctx, movie); err != nil {
		return nil, fmt.Errorf("映画の登録に失敗しました: %w", err)
	}

	slog.Info("movie registered",
		slog.String("movie_id", movie.ID),
		slog.String("tmdb_id", movie.TmdbID),
		slog.String("title", movie.Title),
	)

	return movie, nil
}

// Recommendations は全員が未鑑賞の映画をスコア降順で返す。
// ユーザーと映画のスナップショットを取得し、積集合のスコア計算に渡す。
func (s *Service) Recommendations(ctx context.Context) ([]model.AggregateMovieScore, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	movies, err := s.movieRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("映画一覧の取得に失敗しました: %w", err)
	}

	scored := priority.IntersectionWithScores(users, movies)

	if s.metrics != nil {
		s.metrics.RecordRecommendationComputed(len(scored))
	}

	return scored, nil
}

// UnseenCount は指定映画を未鑑賞リストに入れているユーザー数を返す。
// カタログ表示のバッジ用。
func (s *Service) UnseenCount(ctx context.Context, movieID string) (int, error) {
	movie, err := s.movieRepo.FindByID(ctx, movieID)
	if err != nil {
		return 0, fmt.Errorf("映画の取得に失敗しました: %w", err)
	}
	if movie == nil {
		return 0, model.NewMovieNotFoundError(movieID)
	}

	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	return priority.CountUnseenBy(movieID, users), nil
}
