package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/disconcision/movienight/internal/model"
)

// PostgresMovieRepo はPostgreSQLを使用した映画カタログリポジトリ。
type PostgresMovieRepo struct {
	db *sql.DB
}

// NewPostgresMovieRepo はPostgresMovieRepoを生成する。
func NewPostgresMovieRepo(db *sql.DB) *PostgresMovieRepo {
	return &PostgresMovieRepo{db: db}
}

const movieColumns = `id, tmdb_id, title, year, rating, overview, poster_url, rating_refreshed_at, created_at, updated_at`

// scanMovie は1行をmodel.Movieに読み込む。rating_refreshed_atのNULLはゼロ値にする。
func scanMovie(row interface{ Scan(...any) error }) (*model.Movie, error) {
	movie := &model.Movie{}
	var refreshedAt sql.NullTime
	err := row.Scan(
		&movie.ID, &movie.TmdbID, &movie.Title, &movie.Year, &movie.Rating,
		&movie.Overview, &movie.PosterURL, &refreshedAt,
		&movie.CreatedAt, &movie.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if refreshedAt.Valid {
		movie.RatingRefreshedAt = refreshedAt.Time
	}
	return movie, nil
}

// FindByID は指定IDの映画を取得する。見つからない場合はnilを返す。
func (r *PostgresMovieRepo) FindByID(ctx context.Context, id string) (*model.Movie, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE id = $1`,
		id,
	)
	movie, err := scanMovie(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find movie by ID: %w", err)
	}
	return movie, nil
}

// FindByTmdbID は外部メタデータIDで映画を検索する。見つからない場合はnilを返す。
func (r *PostgresMovieRepo) FindByTmdbID(ctx context.Context, tmdbID string) (*model.Movie, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE tmdb_id = $1`,
		tmdbID,
	)
	movie, err := scanMovie(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find movie by tmdb ID: %w", err)
	}
	return movie, nil
}

// ListAll は全映画をタイトル昇順で返す。
func (r *PostgresMovieRepo) ListAll(ctx context.Context) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies ORDER BY title`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	defer rows.Close()

	var movies []model.Movie
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		movies = append(movies, *movie)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movies: %w", err)
	}

	return movies, nil
}

// Create は映画を作成する。
func (r *PostgresMovieRepo) Create(ctx context.Context, movie *model.Movie) error {
	var refreshedAt sql.NullTime
	if !movie.RatingRefreshedAt.IsZero() {
		refreshedAt = sql.NullTime{Time: movie.RatingRefreshedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO movies (id, tmdb_id, title, year, rating, overview, poster_url, rating_refreshed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		movie.ID, movie.TmdbID, movie.Title, movie.Year, movie.Rating,
		movie.Overview, movie.PosterURL, refreshedAt,
		movie.CreatedAt, movie.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert movie: %w", err)
	}
	return nil
}

// UpdateRating は映画の評価値と取得日時を更新する。
func (r *PostgresMovieRepo) UpdateRating(ctx context.Context, movieID string, rating float64, refreshedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE movies SET rating = $2, rating_refreshed_at = $3, updated_at = now() WHERE id = $1`,
		movieID, rating, refreshedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update movie rating: %w", err)
	}
	return nil
}

// ListStaleRatings は評価値が未取得、またはstaleBeforeより古い映画を
// 未取得優先・古い順で最大limit件返す。
func (r *PostgresMovieRepo) ListStaleRatings(ctx context.Context, staleBefore time.Time, limit int) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movieColumns+`
		 FROM movies
		 WHERE rating_refreshed_at IS NULL OR rating_refreshed_at < $1
		 ORDER BY rating_refreshed_at ASC NULLS FIRST
		 LIMIT $2`,
		staleBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale movies: %w", err)
	}
	defer rows.Close()

	var movies []model.Movie
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale movie: %w", err)
		}
		movies = append(movies, *movie)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale movies: %w", err)
	}

	return movies, nil
}

// compile-time interface check
var _ MovieRepository = (*PostgresMovieRepo)(nil)
