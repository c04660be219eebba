package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disconcision/movienight/internal/repository"
)

// MetadataLookup は映画メタデータ取得のインターフェース。
// テスト時にモックに差し替え可能。
type MetadataLookup interface {
	Lookup(ctx context.Context, tmdbID string) (*MovieMetadata, error)
}

// RefreshMetrics は更新ジョブのメトリクス記録インターフェース。
type RefreshMetrics interface {
	RecordMetadataFetchSuccess(movieID string)
	RecordMetadataFetchFailure(movieID string, reason string)
	RecordMetadataFetchLatency(duration time.Duration)
}

// BatchConfig は評価値更新ジョブの設定パラメータ。
// 環境変数から設定可能。
type BatchConfig struct {
	// BatchInterval はバッチジョブの実行間隔（デフォルト: 30分）。
	BatchInterval time.Duration
	// APIInterval はAPI呼び出しの最低間隔（デフォルト: 2秒）。
	APIInterval time.Duration
	// MaxPerCycle は1サイクルあたりの最大API呼び出し回数（デフォルト: 50）。
	MaxPerCycle int
	// RefreshTTL は評価値の再取得間隔（デフォルト: 7日）。
	RefreshTTL time.Duration
}

// DefaultBatchConfig はデフォルトのバッチジョブ設定を返す。
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchInterval: 30 * time.Minute,
		APIInterval:   2 * time.Second,
		MaxPerCycle:   50,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

// RefreshJob は映画評価値の定期更新ジョブ。
// rating_refreshed_atがNULLまたはTTLを超過した映画を対象に
// メタデータAPIを呼び出して評価値を更新する。
type RefreshJob struct {
	movieRepo         repository.MovieRepository
	client            MetadataLookup
	logger            *slog.Logger
	metrics           RefreshMetrics
	config            BatchConfig
	consecutiveErrors int
	backoffUntil      time.Time
}

// NewRefreshJob はRefreshJobの新しいインスタンスを生成する。
// metricsはnilでもよい。
func NewRefreshJob(
	movieRepo repository.MovieRepository,
	client MetadataLookup,
	logger *slog.Logger,
	metrics RefreshMetrics,
	config BatchConfig,
) *RefreshJob {
	return &RefreshJob{
		movieRepo: movieRepo,
		client:    client,
		logger:    logger,
		metrics:   metrics,
		config:    config,
	}
}

// Start はバッチジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *RefreshJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.BatchInterval)
	defer ticker.Stop()

	j.logger.Info("評価値更新ジョブを開始しました",
		slog.Duration("batch_interval", j.config.BatchInterval),
		slog.Duration("api_interval", j.config.APIInterval),
		slog.Int("max_per_cycle", j.config.MaxPerCycle),
	)

	// 起動直後に1回実行
	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("評価値更新サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("評価値更新ジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.Error("評価値更新サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回のバッチサイクルを実行する。
// 更新対象の映画を古い順に取得し、1件ずつAPIを呼び出して評価値を更新する。
func (j *RefreshJob) RunOnce(ctx context.Context) error {
	start := time.Now()

	// バックオフ中の場合はスキップ
	if !j.backoffUntil.IsZero() && time.Now().Before(j.backoffUntil) {
		j.logger.Info("評価値更新ジョブはバックオフ中のためスキップします",
			slog.Time("backoff_until", j.backoffUntil),
		)
		return nil
	}

	staleBefore := time.Now().Add(-j.config.RefreshTTL)

	movies, err := j.movieRepo.ListStaleRatings(ctx, staleBefore, j.config.MaxPerCycle)
	if err != nil {
		return fmt.Errorf("更新対象映画の取得に失敗しました: %w", err)
	}

	if len(movies) == 0 {
		j.logger.Info("評価値更新対象の映画はありません")
		return nil
	}

	j.logger.Info("評価値更新サイクルを開始します",
		slog.Int("target_movies", len(movies)),
	)

	var updatedCount int
	var hadError bool

	for i, movie := range movies {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// API呼び出しインターバル（初回は待たない）
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(j.config.APIInterval):
			}
		}

		fetchStart := time.Now()
		meta, err := j.client.Lookup(ctx, movie.TmdbID)
		if j.metrics != nil {
			j.metrics.RecordMetadataFetchLatency(time.Since(fetchStart))
		}
		if err != nil {
			j.logger.Error("メタデータの取得に失敗しました",
				slog.String("movie_id", movie.ID),
				slog.String("tmdb_id", movie.TmdbID),
				slog.String("error", err.Error()),
			)
			if j.metrics != nil {
				j.metrics.RecordMetadataFetchFailure(movie.ID, "api_error")
			}
			hadError = true
			j.consecutiveErrors++
			// バックオフ判定
			backoff := calculateErrorBackoff(j.consecutiveErrors)
			if backoff > 0 {
				j.backoffUntil = time.Now().Add(backoff)
				j.logger.Warn("連続エラーによりバックオフを適用します",
					slog.Int("consecutive_errors", j.consecutiveErrors),
					slog.Duration("backoff_duration", backoff),
				)
				break
			}
			continue // この映画はスキップし次へ（前回値維持）
		}

		if meta == nil {
			// 外部カタログから消えた映画。取得日時だけ更新し、次回TTLまで対象から外す
			j.logger.Warn("映画が外部カタログに見つかりません",
				slog.String("movie_id", movie.ID),
				slog.String("tmdb_id", movie.TmdbID),
			)
			if err := j.movieRepo.UpdateRating(ctx, movie.ID, movie.Rating, time.Now()); err != nil {
				j.logger.Error("評価値取得日時の更新に失敗しました",
					slog.String("movie_id", movie.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		if err := j.movieRepo.UpdateRating(ctx, movie.ID, meta.Rating, time.Now()); err != nil {
			j.logger.Error("評価値の更新に失敗しました",
				slog.String("movie_id", movie.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if j.metrics != nil {
			j.metrics.RecordMetadataFetchSuccess(movie.ID)
		}
		updatedCount++
	}

	// エラーがなければ連続エラーカウントをリセット
	if !hadError {
		j.consecutiveErrors = 0
		j.backoffUntil = time.Time{}
	}

	duration := time.Since(start)
	j.logger.Info("評価値更新サイクルが完了しました",
		slog.Int("updated_movies", updatedCount),
		slog.Int("target_movies", len(movies)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// calculateErrorBackoff は連続エラー回数に基づくバックオフ時間を計算する。
// 3回連続: 30分、5回連続: 1時間、10回連続: 6時間。
func calculateErrorBackoff(consecutiveErrors int) time.Duration {
	switch {
	case consecutiveErrors >= 10:
		return 6 * time.Hour
	case consecutiveErrors >= 5:
		return 1 * time.Hour
	case consecutiveErrors >= 3:
		return 30 * time.Minute
	default:
		return 0
	}
}
