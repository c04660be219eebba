// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れセッションと、終了から保持期間（デフォルト90日）を超過した
// 時間枠を日次バッチで削除する。時間枠に紐づくavailability・watch_events・
// attendance_votesはCASCADE削除で自動的に処理される。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れセッションと古い時間枠の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db                Executor
	logger            *slog.Logger
	SlotRetentionDays int // 終了済み時間枠の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:                db,
		logger:            logger,
		SlotRetentionDays: 90,
	}
}

// Run は期限切れセッションと保持期間を超過した時間枠を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessionCount, err := j.deleteExpiredSessions(ctx)
	if err != nil {
		return err
	}

	slotCount, err := j.deleteOldSlots(ctx)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessionCount),
		slog.Int64("deleted_slots", slotCount),
		slog.Int("slot_retention_days", j.SlotRetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// deleteExpiredSessions は有効期限を過ぎたセッションを削除する。
func (j *CleanupJob) deleteExpiredSessions(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < now()`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return count, nil
}

// deleteOldSlots は終了から保持期間を超過した時間枠を削除する。
// availability・watch_events・attendance_votesはCASCADE削除される。
func (j *CleanupJob) deleteOldSlots(ctx context.Context) (int64, error) {
	interval := fmt.Sprintf("%d days", j.SlotRetentionDays)

	query := `DELETE FROM time_slots WHERE ends_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("古い時間枠の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("slot_retention_days", j.SlotRetentionDays),
		)
		return 0, fmt.Errorf("古い時間枠の削除に失敗: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return count, nil
}
