package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/disconcision/movienight/internal/middleware"
	"github.com/disconcision/movienight/internal/model"
	"github.com/disconcision/movienight/internal/schedule"
)

// ScheduleServiceInterface はスケジュールハンドラーが必要とするサービスインターフェース。
type ScheduleServiceInterface interface {
	CreateSlot(ctx context.Context, userID string, startsAt, endsAt time.Time) (*model.TimeSlot, error)
	ListSlots(ctx context.Context) ([]model.SlotWithAvailability, error)
	SetAvailability(ctx context.Context, slotID, userID string, available bool) error
	CreateEvent(ctx context.Context, userID, slotID, movieID, note string) (*model.WatchEvent, error)
	ListEvents(ctx context.Context) ([]model.EventWithVotes, error)
	Vote(ctx context.Context, eventID, userID string, going bool) error
	ComputeBestNextSlot(ctx context.Context) (*schedule.BestNextSlot, error)
}

// ScheduleHandler は鑑賞会スケジューリングのHTTPハンドラー。
type ScheduleHandler struct {
	service ScheduleServiceInterface
}

// NewScheduleHandler はScheduleHandlerを生成する。
func NewScheduleHandler(service ScheduleServiceInterface) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
	}
}

// createSlotRequest は時間枠作成リクエストのボディ。
type createSlotRequest struct {
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
}

// slotResponse は時間枠のAPIレスポンス。
type slotResponse struct {
	ID               string    `json:"id"`
	StartsAt         time.Time `json:"starts_at"`
	EndsAt           time.Time `json:"ends_at"`
	CreatedBy        string    `json:"created_by"`
	AvailableCount   int       `json:"available_count"`
	AvailableUserIDs []string  `json:"available_user_ids"`
}

// setAvailabilityRequest は参加可否設定リクエストのボディ。
type setAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

// createEventRequest は鑑賞イベント作成リクエストのボディ。
type createEventRequest struct {
	SlotID  string `json:"slot_id" validate:"required"`
	MovieID string `json:"movie_id" validate:"required"`
	Note    string `json:"note" validate:"max=2000"`
}

// eventResponse は鑑賞イベントのAPIレスポンス。
type eventResponse struct {
	ID            string    `json:"id"`
	SlotID        string    `json:"slot_id"`
	MovieID       string    `json:"movie_id"`
	CreatedBy     string    `json:"created_by"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	GoingCount    int       `json:"going_count"`
	NotGoingCount int       `json:"not_going_count"`
}

// voteRequest は参加表明リクエストのボディ。
type voteRequest struct {
	Going *bool `json:"going" validate:"required"`
}

// bestNextSlotResponse は次回開催推薦のAPIレスポンス。
// 推薦できる枠や映画がない場合、対応するフィールドはnullになる。
type bestNextSlotResponse struct {
	Slot  *slotResponse        `json:"slot"`
	Movie *scoredMovieResponse `json:"movie"`
}

func toSlotResponse(s *model.SlotWithAvailability) slotResponse {
	userIDs := s.AvailableUserIDs
	if userIDs == nil {
		userIDs = []string{}
	}
	return slotResponse{
		ID:               s.ID,
		StartsAt:         s.StartsAt,
		EndsAt:           s.EndsAt,
		CreatedBy:        s.CreatedBy,
		AvailableCount:   s.AvailableCount,
		AvailableUserIDs: userIDs,
	}
}

// CreateSlot は鑑賞会の候補時間枠を作成する。
// POST /api/slots
func (h *ScheduleHandler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, "starts_atとends_atを指定してください。")
		return
	}

	slot, err := h.service.CreateSlot(r.Context(), userID, req.StartsAt, req.EndsAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSlotResponse(&model.SlotWithAvailability{TimeSlot: *slot}))
}

// ListSlots は今後の時間枠を参加可能人数付きで返す。
// GET /api/slots
func (h *ScheduleHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.service.ListSlots(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]slotResponse, 0, len(slots))
	for i := range slots {
		resp = append(resp, toSlotResponse(&slots[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// SetAvailability は時間枠への参加可否を設定する。
// PUT /api/slots/{id}/availability
func (h *ScheduleHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	slotID := chi.URLParam(r, "id")

	var req setAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, "availableフラグを指定してください。")
		return
	}

	if err := h.service.SetAvailability(r.Context(), slotID, userID, *req.Available); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateEvent は時間枠と映画を組み合わせた鑑賞イベントを確定する。
// POST /api/events
func (h *ScheduleHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, "slot_idとmovie_idを指定してください。")
		return
	}

	event, err := h.service.CreateEvent(r.Context(), userID, req.SlotID, req.MovieID, req.Note)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(eventResponse{
		ID:        event.ID,
		SlotID:    event.SlotID,
		MovieID:   event.MovieID,
		CreatedBy: event.CreatedBy,
		Note:      event.Note,
		CreatedAt: event.CreatedAt,
	})
}

// ListEvents は全鑑賞イベントを参加表明集計付きで返す。
// GET /api/events
func (h *ScheduleHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, eventResponse{
			ID:            e.ID,
			SlotID:        e.SlotID,
			MovieID:       e.MovieID,
			CreatedBy:     e.CreatedBy,
			Note:          e.Note,
			CreatedAt:     e.CreatedAt,
			GoingCount:    e.GoingCount,
			NotGoingCount: e.NotGoingCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Vote は鑑賞イベントへの参加表明を記録する。
// PUT /api/events/{id}/vote
func (h *ScheduleHandler) Vote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	eventID := chi.URLParam(r, "id")

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, "goingフラグを指定してください。")
		return
	}

	if err := h.service.Vote(r.Context(), eventID, userID, *req.Going); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BestNextSlot は次回開催の推薦を返す。
// GET /api/schedule/next
func (h *ScheduleHandler) BestNextSlot(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ComputeBestNextSlot(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := bestNextSlotResponse{}
	if result.Slot != nil {
		s := toSlotResponse(result.Slot)
		resp.Slot = &s
	}
	if result.Movie != nil {
		resp.Movie = &scoredMovieResponse{
			MovieID: result.Movie.MovieID,
			Score:   result.Movie.Score,
			Movie:   toMovieResponse(result.Movie.Movie),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
