package user

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FlushFunc はデバウンス確定時に並びを永続化する関数。
type FlushFunc func(ctx context.Context, userID string, movieIDs []string) error

// ReorderDebouncer はドラッグ並べ替えの書き込みをユーザーごとにデバウンスする。
// 静止期間（flushDelay）内に連続して届いた並べ替えは最後のものだけが永続化される。
// デバウンスは永続化層の最適化であり、スコア計算には影響しない。
type ReorderDebouncer struct {
	mu         sync.Mutex
	pending    map[string]*pendingReorder
	flushDelay time.Duration
	flush      FlushFunc
	closed     bool
}

// pendingReorder は未確定の並べ替えを保持する。
type pendingReorder struct {
	movieIDs []string
	timer    *time.Timer
}

// NewReorderDebouncer はReorderDebouncerを生成する。
func NewReorderDebouncer(flushDelay time.Duration, flush FlushFunc) *ReorderDebouncer {
	return &ReorderDebouncer{
		pending:    make(map[string]*pendingReorder),
		flushDelay: flushDelay,
		flush:      flush,
	}
}

// Submit は並べ替えを受け付け、静止期間後のフラッシュを予約する。
// 同一ユーザーの未確定の並びがある場合は上書きし、タイマーをリセットする。
func (d *ReorderDebouncer) Submit(userID string, movieIDs []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	// 呼び出し側のスライスと独立させる
	ids := make([]string, len(movieIDs))
	copy(ids, movieIDs)

	if p, ok := d.pending[userID]; ok {
		p.movieIDs = ids
		p.timer.Reset(d.flushDelay)
		return
	}

	p := &pendingReorder{movieIDs: ids}
	p.timer = time.AfterFunc(d.flushDelay, func() {
		d.flushUser(userID)
	})
	d.pending[userID] = p
}

// flushUser は指定ユーザーの未確定の並びを永続化する。
func (d *ReorderDebouncer) flushUser(userID string) {
	d.mu.Lock()
	p, ok := d.pending[userID]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, userID)
	d.mu.Unlock()

	if err := d.flush(context.Background(), userID, p.movieIDs); err != nil {
		slog.Error("failed to flush reorder",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Close は全ユーザーの未確定の並びを即座にフラッシュし、以降の受け付けを停止する。
// シャットダウン時に呼び出す。
func (d *ReorderDebouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true

	userIDs := make([]string, 0, len(d.pending))
	for userID, p := range d.pending {
		p.timer.Stop()
		userIDs = append(userIDs, userID)
	}
	d.mu.Unlock()

	for _, userID := range userIDs {
		d.flushUser(userID)
	}
}

// PendingCount は未確定の並べ替えを持つユーザー数を返す。テスト用。
func (d *ReorderDebouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
