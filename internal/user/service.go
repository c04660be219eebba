// Package user はユーザーの識別・未鑑賞リスト管理・退会のドメインロジックを提供する。
package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/disconcision/movienight/internal/model"
	"github.com/disconcision/movienight/internal/repository"
)

// maxNameLength は表示名の最大文字数。
const maxNameLength = 50

// AvailabilityDeleter は参加可否記録の一括削除インターフェース。
type AvailabilityDeleter interface {
	DeleteAvailabilityByUserID(ctx context.Context, userID string) error
}

// VoteDeleter は参加表明の一括削除インターフェース。
type VoteDeleter interface {
	DeleteVotesByUserID(ctx context.Context, userID string) error
}

// ServiceConfig はユーザーサービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service はユーザー管理のサービス層。
// 名前による識別、未鑑賞リストの更新、退会処理を提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	movieRepo   repository.MovieRepository
	availDel    AvailabilityDeleter
	voteDel     VoteDeleter
	config      ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	movieRepo repository.MovieRepository,
	availDel AvailabilityDeleter,
	voteDel VoteDeleter,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		movieRepo:   movieRepo,
		availDel:    availDel,
		voteDel:     voteDel,
		config:      config,
	}
}

// Identify は名前でユーザーを識別し、セッションを発行する。
// 既存ユーザーの場合（大文字小文字を区別しない）はそのユーザーとしてログインし、
// 未登録の名前の場合は新規ユーザーを自動作成する。
func (s *Service) Identify(ctx context.Context, name string) (*model.User, *model.Session, error) {
	normalized, err := normalizeName(name)
	if err != nil {
		return nil, nil, err
	}

	// 1. 名前で既存ユーザーを検索
	user, err := s.userRepo.FindByName(ctx, normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}

	if user == nil {
		// 2. 新規ユーザーを作成
		now := time.Now()
		user = &model.User{
			ID:           uuid.New().String(),
			Name:         normalized,
			UnseenMovies: []string{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
		}

		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("name", user.Name),
		)
	} else {
		slog.Info("existing user identified",
			slog.String("user_id", user.ID),
		)
	}

	// 3. セッションを発行
	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	return user, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションIDから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// Get は指定IDのユーザーを未鑑賞リスト付きで取得する。
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// List は全ユーザーを未鑑賞リスト付きで返す。
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// SetUnseen はユーザーの未鑑賞リストへの映画の出し入れを行う。
// unseen=trueでリスト末尾（最低優先度）に追加、falseでリストから除去する。
// 既に望んだ状態の場合は何もしない。
func (s *Service) SetUnseen(ctx context.Context, userID, movieID string, unseen bool) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	movie, err := s.movieRepo.FindByID(ctx, movieID)
	if err != nil {
		return nil, fmt.Errorf("映画の取得に失敗しました: %w", err)
	}
	if movie == nil {
		return nil, model.NewMovieNotFoundError(movieID)
	}

	index := indexOf(user.UnseenMovies, movieID)

	if unseen {
		if index >= 0 {
			// 既にリストに含まれている
			return user, nil
		}
		user.UnseenMovies = append(user.UnseenMovies, movieID)
	} else {
		if index < 0 {
			// 既にリストに含まれていない
			return user, nil
		}
		user.UnseenMovies = append(user.UnseenMovies[:index], user.UnseenMovies[index+1:]...)
	}

	if err := s.userRepo.ReplaceUnseenList(ctx, userID, user.UnseenMovies); err != nil {
		return nil, fmt.Errorf("未鑑賞リストの更新に失敗しました: %w", err)
	}

	return user, nil
}

// Reorder はユーザーの未鑑賞リストを並べ替える。
// 新しい並びは現在のリストと同じ要素集合でなければならない
// （追加・削除・重複は許可しない）。
func (s *Service) Reorder(ctx context.Context, userID string, movieIDs []string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if err := validateReorder(user.UnseenMovies, movieIDs); err != nil {
		return nil, err
	}

	if err := s.userRepo.ReplaceUnseenList(ctx, userID, movieIDs); err != nil {
		return nil, fmt.Errorf("未鑑賞リストの更新に失敗しました: %w", err)
	}

	user.UnseenMovies = movieIDs
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: attendance_votes → availability → sessions → user（+ CASCADE: unseen_movies）
// 映画カタログは共有データとして残す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 参加表明を削除
	if s.voteDel != nil {
		if err := s.voteDel.DeleteVotesByUserID(ctx, userID); err != nil {
			return fmt.Errorf("参加表明の削除に失敗しました: %w", err)
		}
	}

	// 2. 参加可否記録を削除
	if s.availDel != nil {
		if err := s.availDel.DeleteAvailabilityByUserID(ctx, userID); err != nil {
			return fmt.Errorf("参加可否記録の削除に失敗しました: %w", err)
		}
	}

	// 3. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 4. ユーザーを削除（unseen_moviesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// normalizeName は表示名を検証し、前後の空白を除去して返す。
func normalizeName(name string) (string, error) {
	normalized := strings.TrimSpace(name)
	if normalized == "" {
		return "", model.NewInvalidNameError("名前が空です")
	}
	if utf8.RuneCountInString(normalized) > maxNameLength {
		return "", model.NewInvalidNameError(fmt.Sprintf("名前は%d文字以内で入力してください", maxNameLength))
	}
	return normalized, nil
}

// validateReorder は新しい並びが現在のリストと同じ要素集合かを検証する。
func validateReorder(current, proposed []string) error {
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

// indexOf はスライス内の要素の位置を返す。見つからない場合は-1。
func indexOf(list []string, target string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return -1
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
