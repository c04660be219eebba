package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/disconcision/movienight/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスのJSONボディ。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse はAPIErrorをJSONレスポンスとして書き込む。
// errがAPIErrorでない場合は500として扱う。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		WriteInternalServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}

	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		slog.Error("failed to encode error response", slog.String("error", encodeErr.Error()))
	}
}

// WriteInternalServerError は内部エラーの詳細を隠した500レスポンスを書き込む。
// 元のエラーはログにのみ出力する。
func WriteInternalServerError(w http.ResponseWriter, err error) {
	slog.Error("internal server error", slog.String("error", err.Error()))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)

	body := ErrorResponseBody{
		Code:     "internal_error",
		Message:  "サーバー内部でエラーが発生しました",
		Category: "system",
		Action:   "しばらく時間をおいて再度お試しください",
	}

	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		slog.Error("failed to encode error response", slog.String("error", encodeErr.Error()))
	}
}
