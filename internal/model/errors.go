// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, movie, schedule, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidName        = "INVALID_NAME"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeMovieNotFound      = "MOVIE_NOT_FOUND"
	ErrCodeDuplicateMovie     = "DUPLICATE_MOVIE"
	ErrCodeMetadataFetch      = "METADATA_FETCH_FAILED"
	ErrCodeInvalidReorder     = "INVALID_REORDER"
	ErrCodeSlotNotFound       = "SLOT_NOT_FOUND"
	ErrCodeInvalidSlot        = "INVALID_SLOT"
	ErrCodeEventNotFound      = "EVENT_NOT_FOUND"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeInvalidPosterURL   = "INVALID_POSTER_URL"
)

// NewInvalidNameError は名前が識別に使えない場合のエラーを生成する。
func NewInvalidNameError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidName,
		Message:  fmt.Sprintf("名前が無効です: %s", reason),
		Category: "validation",
		Action:   "1〜50文字の名前を入力してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "名前を入力して識別し直してください。",
	}
}

// NewMovieNotFoundError は映画が見つからない場合のエラーを生成する。
func NewMovieNotFoundError(movieID string) *APIError {
	return &APIError{
		Code:     ErrCodeMovieNotFound,
		Message:  fmt.Sprintf("指定された映画が見つかりません: %s", movieID),
		Category: "movie",
		Action:   "映画IDを確認してください。",
	}
}

// NewDuplicateMovieError は同じ映画を二重登録しようとした場合のエラーを生成する。
func NewDuplicateMovieError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateMovie,
		Message:  "この映画は既にカタログに登録されています。",
		Category: "movie",
		Action:   "カタログ一覧から該当の映画を確認してください。",
	}
}

// NewMetadataFetchError はメタデータAPIからの取得に失敗した場合のエラーを生成する。
func NewMetadataFetchError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeMetadataFetch,
		Message:  fmt.Sprintf("映画情報の取得に失敗しました: %s", reason),
		Category: "movie",
		Action:   "TMDB IDが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewInvalidReorderError は並び替え結果が元のリストと要素集合が一致しない場合のエラーを生成する。
func NewInvalidReorderError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidReorder,
		Message:  fmt.Sprintf("並び替えリクエストが無効です: %s", reason),
		Category: "validation",
		Action:   "現在の未鑑賞リストと同じ映画IDの並び替えのみ送信できます。追加・削除は個別の切り替え操作で行ってください。",
	}
}

// NewSlotNotFoundError は時間枠が見つからない場合のエラーを生成する。
func NewSlotNotFoundError(slotID string) *APIError {
	return &APIError{
		Code:     ErrCodeSlotNotFound,
		Message:  fmt.Sprintf("指定された時間枠が見つかりません: %s", slotID),
		Category: "schedule",
		Action:   "時間枠IDを確認してください。",
	}
}

// NewInvalidSlotError は時間枠の指定が無効な場合のエラーを生成する。
func NewInvalidSlotError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSlot,
		Message:  fmt.Sprintf("時間枠の指定が無効です: %s", reason),
		Category: "validation",
		Action:   "開始時刻が終了時刻より前で、未来の日時を指定してください。",
	}
}

// NewEventNotFoundError は鑑賞イベントが見つからない場合のエラーを生成する。
func NewEventNotFoundError(eventID string) *APIError {
	return &APIError{
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("指定された鑑賞イベントが見つかりません: %s", eventID),
		Category: "schedule",
		Action:   "イベントIDを確認してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewInvalidPosterURLError はポスターURLが無効な場合のエラーを生成する。
func NewInvalidPosterURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPosterURL,
		Message:  fmt.Sprintf("ポスターURLが無効です: %s", reason),
		Category: "validation",
		Action:   "https:// で始まる公開URLを指定してください。",
	}
}
