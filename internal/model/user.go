// Package model はドメインモデルを定義する。
package model

import "time"

// User はムービーナイトの参加メンバーを表す。
// 認証は行わず、名前（大文字小文字を区別しない一意性）だけで識別する。
type User struct {
	ID   string
	Name string
	// UnseenMovies は未鑑賞映画IDの順序付きリスト。
	// 先頭（index 0）が本人の最優先希望を表し、重複は含まない。
	// 並び順はユーザー自身が決めたものなので、永続化でも必ず保持する。
	UnseenMovies []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はユーザーの識別セッションを表す。
// 名前入力による自己申告識別に紐付くだけで、認証の意味は持たない。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
