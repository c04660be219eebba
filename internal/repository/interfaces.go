// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/disconcision/movienight/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// Userの取得は常に順序付き未鑑賞リストを含めて行う。
type UserRepository interface {
	// FindByID は指定IDのユーザーを未鑑賞リスト付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByName は名前でユーザーを検索する（大文字小文字を区別しない）。
	// 見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// ListAll は全ユーザーを未鑑賞リスト付きで返す。
	// 各ユーザーのUnseenMoviesはposition昇順（優先度順）で並ぶ。
	ListAll(ctx context.Context) ([]model.User, error)

	// ReplaceUnseenList はユーザーの未鑑賞リストを同一トランザクションで全置換する。
	// リストは要素単位で部分更新せず、常に並び全体を置き換える。
	ReplaceUnseenList(ctx context.Context, userID string, movieIDs []string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、unseen_movies、availability、attendance_votesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// MovieRepository は映画カタログの永続化インターフェース。
type MovieRepository interface {
	// FindByID は指定IDの映画を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Movie, error)

	// FindByTmdbID は外部メタデータIDで映画を検索する。見つからない場合はnilを返す。
	FindByTmdbID(ctx context.Context, tmdbID string) (*model.Movie, error)

	// ListAll は全映画をタイトル昇順で返す。
	ListAll(ctx context.Context) ([]model.Movie, error)

	// Create は映画を作成する。
	Create(ctx context.Context, movie *model.Movie) error

	// UpdateRating は映画の評価値と取得日時を更新する。
	UpdateRating(ctx context.Context, movieID string, rating float64, refreshedAt time.Time) error

	// ListStaleRatings は評価値が未取得、またはstaleBeforeより古い映画を
	// 未取得優先・古い順で最大limit件返す。
	ListStaleRatings(ctx context.Context, staleBefore time.Time, limit int) ([]model.Movie, error)
}

// SlotRepository は時間枠と参加可否の永続化インターフェース。
type SlotRepository interface {
	// Create は時間枠を作成する。
	Create(ctx context.Context, slot *model.TimeSlot) error

	// FindByID は指定IDの時間枠を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.TimeSlot, error)

	// ListUpcoming はafter以降に始まる時間枠を、参加可能人数と
	// 参加可能ユーザーID付きで開始時刻昇順に返す。
	ListUpcoming(ctx context.Context, after time.Time) ([]model.SlotWithAvailability, error)

	// SetAvailability はユーザーの参加可否を冪等に設定する。
	// available=trueで行をUPSERT、falseで行を削除する。
	SetAvailability(ctx context.Context, slotID, userID string, available bool) error

	// DeleteAvailabilityByUserID はユーザーの全参加可否記録を削除する。
	DeleteAvailabilityByUserID(ctx context.Context, userID string) error
}

// EventRepository は鑑賞イベントと参加表明の永続化インターフェース。
type EventRepository interface {
	// Create は鑑賞イベントを作成する。
	Create(ctx context.Context, event *model.WatchEvent) error

	// FindByID は指定IDの鑑賞イベントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.WatchEvent, error)

	// ListWithVotes は全鑑賞イベントを参加表明集計付きで作成日時降順に返す。
	ListWithVotes(ctx context.Context) ([]model.EventWithVotes, error)

	// UpsertVote は参加表明を冪等にUPSERTする。再投票は上書きする。
	UpsertVote(ctx context.Context, eventID, userID string, going bool) error

	// DeleteVotesByUserID はユーザーの全参加表明を削除する。
	DeleteVotesByUserID(ctx context.Context, userID string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
