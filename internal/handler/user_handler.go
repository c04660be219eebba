package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/disconcision/movienight/internal/middleware"
	"github.com/disconcision/movienight/internal/model"
)

const sessionCookieName = "session_id"

// validate はリクエストボディのバリデーター。パッケージ全体で共有する。
var validate = validator.New()

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Identify(ctx context.Context, name string) (*model.User, *model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	SetUnseen(ctx context.Context, userID, movieID string, unseen bool) (*model.User, error)
	Reorder(ctx context.Context, userID string, movieIDs []string) (*model.User, error)
	Withdraw(ctx context.Context, userID string) error
}

// ReorderSubmitter はデバウンス経由の並べ替え受け付けインターフェース。
type ReorderSubmitter interface {
	Submit(userID string, movieIDs []string)
}

// UserHandlerConfig はユーザーハンドラーの設定。
type UserHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// UserHandler はユーザー識別・未鑑賞リスト管理のHTTPハンドラー。
type UserHandler struct {
	service   UserServiceInterface
	debouncer ReorderSubmitter
	config    UserHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
// debouncerがnilの場合、並べ替えは即時に永続化される。
func NewUserHandler(service UserServiceInterface, debouncer ReorderSubmitter, config UserHandlerConfig) *UserHandler {
	return &UserHandler{
		service:   service,
		debouncer: debouncer,
		config:    config,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	UnseenMovies []string  `json:"unseen_movies"`
	CreatedAt    time.Time `json:"created_at"`
}

// identifyRequest は識別リクエストのボディ。
type identifyRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

// setUnseenRequest は未鑑賞フラグ設定リクエストのボディ。
type setUnseenRequest struct {
	Unseen *bool `json:"unseen" validate:"required"`
}

// reorderRequest は並べ替えリクエストのボディ。
type reorderRequest struct {
	MovieIDs []string `json:"movie_ids" validate:"required"`
}

func toUserResponse(u *model.User) userResponse {
	unseen := u.UnseenMovies
	if unseen == nil {
		unseen = []string{}
	}
	return userResponse{
		ID:           u.ID,
		Name:         u.Name,
		UnseenMovies: unseen,
		CreatedAt:    u.CreatedAt,
	}
}

// Identify は名前でユーザーを識別し、セッションCookieを設定する。
// POST /identify
func (h *UserHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, "名前は1〜50文字で入力してください。")
		return
	}

	user, session, err := h.service.Identify(r.Context(), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}

// Logout はセッションを破棄し、Cookieを削除する。
// POST /logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	// Cookieを削除
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me はセッションCookieから現在のユーザーを返す。
// GET /me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeUnauthorized(w)
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}

// ListUsers は全ユーザーを未鑑賞リスト付きで返す。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// SetUnseen は未鑑賞リストへの映画の出し入れを行う。
// PUT /api/users/me/unseen/{movieID}
func (h *UserHandler) SetUnseen(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	movieID := chi.URLParam(r, "movieID")

	var req setUnseenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, "unseenフラグを指定してください。")
		return
	}

	user, err := h.service.SetUnseen(r.Context(), userID, movieID, *req.Unseen)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}

// Reorder は未鑑賞リストの並べ替えを受け付ける。
// 検証は即時に行い、永続化はデバウンスに委ねる。
// PUT /api/users/me/unseen
func (h *UserHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, "movie_idsを指定してください。")
		return
	}

	if h.debouncer == nil {
		user, err := h.service.Reorder(r.Context(), userID, req.MovieIDs)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(toUserResponse(user))
		return
	}

	// デバウンス経由: 現在のリストと同じ要素集合かだけを即時検証する
	current, err := h.service.GetCurrentUser(r.Context(), sessionIDFromRequest(r))
	if err != nil {
		writeUnauthorized(w)
		return
	}
	if err := validateSameElements(current.UnseenMovies, req.MovieIDs); err != nil {
		handleServiceError(w, err)
		return
	}

	h.debouncer.Submit(userID, req.MovieIDs)

	w.WriteHeader(http.StatusAccepted)
}

// Withdraw は退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションCookieを削除
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// sessionIDFromRequest はリクエストからセッションIDを取り出す。
func sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// validateSameElements は並べ替え後のリストが現在のリストと同じ要素集合かを検証する。
func validateSameElements(current, proposed []string) error {
	if len(current) != len(proposed) {
		return model.NewInvalidReorderError("要素数が一致しません")
	}

	currentSet := make(map[string]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(proposed))
	for _, id := range proposed {
		if _, ok := currentSet[id]; !ok {
			return model.NewInvalidReorderError(fmt.Sprintf("リストに存在しない映画が含まれています: %s", id))
		}
		if _, dup := seen[id]; dup {
			return model.NewInvalidReorderError(fmt.Sprintf("映画が重複しています: %s", id))
		}
		seen[id] = struct{}{}
	}

	return nil
}
