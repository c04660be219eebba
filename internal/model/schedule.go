package model

import "time"

// TimeSlot は鑑賞会の候補時間枠を表す。
type TimeSlot struct {
	ID        string
	StartsAt  time.Time
	EndsAt    time.Time
	CreatedBy string
	CreatedAt time.Time
}

// Availability はユーザーが時間枠を「参加可能」とマークした記録。
// 枠×ユーザーで一意。解除は行の削除で表す。
type Availability struct {
	SlotID    string
	UserID    string
	CreatedAt time.Time
}

// WatchEvent は確定した鑑賞イベント（時間枠と映画の組み合わせ）を表す。
type WatchEvent struct {
	ID        string
	SlotID    string
	MovieID   string
	CreatedBy string
	// Note は主催者の自由記述。保存前にサニタイズする。
	Note      string
	CreatedAt time.Time
}

// AttendanceVote は鑑賞イベントへの参加表明を表す。
// イベント×ユーザーで一意。再投票は上書きする。
type AttendanceVote struct {
	EventID   string
	UserID    string
	Going     bool
	CreatedAt time.Time
}

// SlotWithAvailability は時間枠に参加可能人数と参加可能ユーザーIDを付けた導出値。
type SlotWithAvailability struct {
	TimeSlot
	AvailableCount   int
	AvailableUserIDs []string
}

// EventWithVotes は鑑賞イベントに参加表明の集計を付けた導出値。
type EventWithVotes struct {
	WatchEvent
	GoingCount    int
	NotGoingCount int
}
