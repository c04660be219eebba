// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NoteSanitizerService はイベントの自由記述メモと、メタデータAPIから
// 取り込んだあらすじテキストをサニタイズし、XSSからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 最小限のインライン装飾のみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NoteSanitizerService はユーザー入力・外部取り込みテキストのサニタイズ機能の
// インターフェースを定義する。保存前に必ず適用する。
type NoteSanitizerService interface {
	// Sanitize は入力テキストをサニタイズして安全な文字列を返す。
	// 許可タグ（p, br, strong, em, code）のみを通過させ、
	// script, iframe, style, img, aタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// noteSanitizer はNoteSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type noteSanitizer struct {
	policy *bluemonday.Policy
}

// NewNoteSanitizer はNoteSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: p, br, strong, em, code
//   - 禁止タグ: script, iframe, style, img, a および全てのon*イベント属性
//
// メモは短い連絡文を想定しているため、リンクと画像は許可しない。
func NewNoteSanitizer() *noteSanitizer {
	p := bluemonday.NewPolicy()

	// 許可リストに含めないタグはbluemondayが自動的に除去する。
	// on*イベント属性はデフォルトで許可されない。
	p.AllowElements(
		"p", "br",
		"strong", "em", "code",
	)

	return &noteSanitizer{
		policy: p,
	}
}

// Sanitize は入力テキストをサニタイズして安全な文字列を返す。
// タグ除去後の前後空白も取り除く。
func (s *noteSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
