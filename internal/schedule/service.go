// Package schedule は鑑賞会の時間枠・参加可否・イベントのドメインロジックを提供する。
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/disconcision/movienight/internal/model"
	"github.com/disconcision/movienight/internal/priority"
	"github.com/disconcision/movienight/internal/repository"
)

// maxSlotDuration は時間枠の最大長。
const maxSlotDuration = 24 * time.Hour

// NoteSanitizer はイベントメモのサニタイズインターフェース。
type NoteSanitizer interface {
	Sanitize(raw string) string
}

// BestNextSlot は次回開催の推薦結果。
// Slotがnilの場合は推薦できる枠がないことを表す。
type BestNextSlot struct {
	Slot  *model.SlotWithAvailability
	Movie *model.AggregateMovieScore
}

// Service は鑑賞会スケジューリングのサービス層。
type Service struct {
	slotRepo  repository.SlotRepository
	eventRepo repository.EventRepository
	userRepo  repository.UserRepository
	movieRepo repository.MovieRepository
	sanitizer NoteSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	slotRepo repository.SlotRepository,
	eventRepo repository.EventRepository,
	userRepo repository.UserRepository,
	movieRepo repository.MovieRepository,
	sanitizer NoteSanitizer,
) *Service {
	return &Service{
		slotRepo:  slotRepo,
		eventRepo: eventRepo,
		userRepo:  userRepo,
		movieRepo: movieRepo,
		sanitizer: sanitizer,
	}
}

// CreateSlot は鑑賞会の候補時間枠を作成する。
// 開始が終了より前、過去でない、24時間以内であることを検証する。
func (s *Service) CreateSlot(ctx context.Context, userID string, startsAt, endsAt time.Time) (*model.TimeSlot, error) {
	if !startsAt.Before(endsAt) {
		return nil, model.NewInvalidSlotError("開始時刻は終了時刻より前でなければなりません")
	}
	if endsAt.Before(time.Now()) {
		return nil, model.NewInvalidSlotError("過去の時間枠は作成できません")
	}
	if endsAt.Sub(startsAt) > maxSlotDuration {
		return nil, model.NewInvalidSlotError("時間枠は24時間以内でなければなりません")
	}

	slot := &model.TimeSlot{
		ID:        uuid.New().String(),
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		CreatedBy: userID,
		CreatedAt: time.Now(),
	}

	if err := s.slotRepo.Create(ctx, slot); err != nil {
		return nil, fmt.Errorf("時間枠の作成に失敗しました: %w", err)
	}

	slog.Info("time slot created",
		slog.String("slot_id", slot.ID),
		slog.String("user_id", userID),
		slog.Time("starts_at", startsAt),
	)

	return slot, nil
}

// ListSlots は今後の時間枠を参加可能人数付きで開始時刻昇順に返す。
func (s *Service) ListSlots(ctx context.Context) ([]model.SlotWithAvailability, error) {
	slots, err := s.slotRepo.ListUpcoming(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("時間枠一覧の取得に失敗しました: %w", err)
	}
	return slots, nil
}

// SetAvailability はユーザーの時間枠への参加可否を冪等に設定する。
func (s *Service) SetAvailability(ctx context.Context, slotID, userID string, available bool) error {
	slot, err := s.slotRepo.FindByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("時間枠の取得に失敗しました: %w", err)
	}
	if slot == nil {
		return model.NewSlotNotFoundError(slotID)
	}

	if err := s.slotRepo.SetAvailability(ctx, slotID, userID, available); err != nil {
		return fmt.Errorf("参加可否の設定に失敗しました: %w", err)
	}

	return nil
}

// CreateEvent は時間枠と映画を組み合わせた鑑賞イベントを確定する。
// メモは保存前にサニタイズする。
func (s *Service) CreateEvent(ctx context.Context, userID, slotID, movieID, note string) (*model.WatchEvent, error) {
	slot, err := s.slotRepo.FindByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("時間枠の取得に失敗しました: %w", err)
	}
	if slot == nil {
		return nil, model.NewSlotNotFoundError(slotID)
	}

	movie, err := s.movieRepo.FindByID(ctx, movieID)
	if err != nil {
		return nil, fmt.Errorf("映画の取得に失敗しました: %w", err)
	}
	if movie == nil {
		return nil, model.NewMovieNotFoundError(movieID)
	}

	if s.sanitizer != nil {
		note = s.sanitizer.Sanitize(note)
	}

	event := &model.WatchEvent{
		ID:        uuid.New().String(),
		SlotID:    slotID,
		MovieID:   movieID,
		CreatedBy: userID,
		Note:      note,
		CreatedAt: time.Now(),
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("鑑賞イベントの作成に失敗しました: %w", err)
	}

	slog.Info("watch event created",
		slog.String("event_id", event.ID),
		slog.String("slot_id", slotID),
		slog.String("movie_id", movieID),
	)

	return event, nil
}

// ListEvents は全鑑賞イベントを参加表明集計付きで返す。
func (s *Service) ListEvents(ctx context.Context) ([]model.EventWithVotes, error) {
	events, err := s.eventRepo.ListWithVotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("鑑賞イベント一覧の取得に失敗しました: %w", err)
	}
	return events, nil
}

// Vote は鑑賞イベントへの参加表明を冪等に記録する。再投票は上書きする。
func (s *Service) Vote(ctx context.Context, eventID, userID string, going bool) error {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("鑑賞イベントの取得に失敗しました: %w", err)
	}
	if event == nil {
		return model.NewEventNotFoundError(eventID)
	}

	if err := s.eventRepo.UpsertVote(ctx, eventID, userID, going); err != nil {
		return fmt.Errorf("参加表明の記録に失敗しました: %w", err)
	}

	return nil
}

// ComputeBestNextSlot は次回開催の推薦を計算する。
// 参加可能人数が最も多い今後の枠（2人以上）を選び、その参加可能ユーザーだけの
// 未鑑賞リスト積集合からスコア最上位の映画を組み合わせて返す。
// 推薦できる枠や映画がない場合はフィールドがnilの結果を返す。
func (s *Service) ComputeBestNextSlot(ctx context.Context) (*BestNextSlot, error) {
	slots, err := s.slotRepo.ListUpcoming(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("時間枠一覧の取得に失敗しました: %w", err)
	}

	// 参加可能人数が最も多い枠を選ぶ。同数の場合は開始時刻が早い方
	var best *model.SlotWithAvailability
	for i := range slots {
		if slots[i].AvailableCount < 2 {
			continue
		}
		if best == nil || slots[i].AvailableCount > best.AvailableCount {
			best = &slots[i]
		}
	}

	if best == nil {
		return &BestNextSlot{}, nil
	}

	// 枠の参加可能ユーザーだけに絞って積集合を計算する
	allUsers, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	availableSet := make(map[string]struct{}, len(best.AvailableUserIDs))
	for _, id := range best.AvailableUserIDs {
		availableSet[id] = struct{}{}
	}

	var attendees []model.User
	for _, u := range allUsers {
		if _, ok := availableSet[u.ID]; ok {
			attendees = append(attendees, u)
		}
	}

	movies, err := s.movieRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("映画一覧の取得に失敗しました: %w", err)
	}

	scored := priority.IntersectionWithScores(attendees, movies)
	if len(scored) == 0 {
		return &BestNextSlot{Slot: best}, nil
	}

	return &BestNextSlot{Slot: best, Movie: &scored[0]}, nil
}
