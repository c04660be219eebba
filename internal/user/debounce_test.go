package user

import (
	"context"
	"sync"
	"testing"
	"time"
)

// flushRecorder はフラッシュされた並びを記録するテストヘルパー。
type flushRecorder struct {
	mu      sync.Mutex
	flushes map[string][][]string
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{flushes: make(map[string][][]string)}
}

func (r *flushRecorder) flush(ctx context.Context, userID string, movieIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes[userID] = append(r.flushes[userID], movieIDs)
	return nil
}

func (r *flushRecorder) flushCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flushes[userID])
}

func (r *flushRecorder) lastFlush(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	fs := r.flushes[userID]
	if len(fs) == 0 {
		return nil
	}
	return fs[len(fs)-1]
}

func TestReorderDebouncer_FlushesAfterQuietPeriod(t *testing.T) {
	rec := newFlushRecorder()
	d := NewReorderDebouncer(20*time.Millisecond, rec.flush)
	defer d.Close()

	d.Submit("user-1", []string{"movie-2", "movie-1"})

	// 静止期間の経過を待つ
	deadline := time.Now().Add(1 * time.Second)
	for rec.flushCount("user-1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if rec.flushCount("user-1") != 1 {
		t.Fatalf("flush count = %d, want 1", rec.flushCount("user-1"))
	}
	got := rec.lastFlush("user-1")
	if len(got) != 2 || got[0] != "movie-2" || got[1] != "movie-1" {
		t.Errorf("flushed list = %v, want [movie-2 movie-1]", got)
	}
}

func TestReorderDebouncer_LatestOrderingWins(t *testing.T) {
	rec := newFlushRecorder()
	d := NewReorderDebouncer(30*time.Millisecond, rec.flush)
	defer d.Close()

	// 静止期間内に3回連続で並べ替える
	d.Submit("user-1", []string{"movie-1", "movie-2", "movie-3"})
	d.Submit("user-1", []string{"movie-2", "movie-1", "movie-3"})
	d.Submit("user-1", []string{"movie-3", "movie-2", "movie-1"})

	deadline := time.Now().Add(1 * time.Second)
	for rec.flushCount("user-1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// 最後の並びだけが1回で永続化される
	if rec.flushCount("user-1") != 1 {
		t.Fatalf("flush count = %d, want 1", rec.flushCount("user-1"))
	}
	got := rec.lastFlush("user-1")
	if len(got) != 3 || got[0] != "movie-3" {
		t.Errorf("flushed list = %v, want [movie-3 movie-2 movie-1]", got)
	}
}

func TestReorderDebouncer_IndependentPerUser(t *testing.T) {
	rec := newFlushRecorder()
	d := NewReorderDebouncer(20*time.Millisecond, rec.flush)
	defer d.Close()

	d.Submit("user-a", []string{"movie-1"})
	d.Submit("user-b", []string{"movie-2"})

	deadline := time.Now().Add(1 * time.Second)
	for (rec.flushCount("user-a") == 0 || rec.flushCount("user-b") == 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if rec.flushCount("user-a") != 1 || rec.flushCount("user-b") != 1 {
		t.Errorf("flush counts = (%d, %d), want (1, 1)",
			rec.flushCount("user-a"), rec.flushCount("user-b"))
	}
}

func TestReorderDebouncer_CloseFlushesPending(t *testing.T) {
	rec := newFlushRecorder()
	// 長い静止期間: Closeしない限りフラッシュされない
	d := NewReorderDebouncer(1*time.Hour, rec.flush)

	d.Submit("user-1", []string{"movie-1", "movie-2"})
	d.Submit("user-2", []string{"movie-3"})

	d.Close()

	if rec.flushCount("user-1") != 1 {
		t.Errorf("user-1 flush count = %d, want 1", rec.flushCount("user-1"))
	}
	if rec.flushCount("user-2") != 1 {
		t.Errorf("user-2 flush count = %d, want 1", rec.flushCount("user-2"))
	}
	if d.PendingCount() != 0 {
		t.Errorf("pending count after close = %d, want 0", d.PendingCount())
	}
}

func TestReorderDebouncer_SubmitAfterClose_Ignored(t *testing.T) {
	rec := newFlushRecorder()
	d := NewReorderDebouncer(10*time.Millisecond, rec.flush)

	d.Close()
	d.Submit("user-1", []string{"movie-1"})

	time.Sleep(50 * time.Millisecond)

	if rec.flushCount("user-1") != 0 {
		t.Errorf("flush count = %d, want 0", rec.flushCount("user-1"))
	}
}

func TestReorderDebouncer_CopiesSubmittedSlice(t *testing.T) {
	rec := newFlushRecorder()
	d := NewReorderDebouncer(1*time.Hour, rec.flush)

	ids := []string{"movie-1", "movie-2"}
	d.Submit("user-1", ids)

	// 呼び出し側がスライスを書き換えてもフラッシュ内容に影響しない
	ids[0] = "movie-mutated"

	d.Close()

	got := rec.lastFlush("user-1")
	if got[0] != "movie-1" {
		t.Errorf("flushed list[0] = %q, want %q", got[0], "movie-1")
	}
}
