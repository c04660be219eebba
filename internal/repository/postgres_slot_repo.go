package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/disconcision/movienight/internal/model"
)

// PostgresSlotRepo はPostgreSQLを使用した時間枠リポジトリ。
type PostgresSlotRepo struct {
	db *sql.DB
}

// NewPostgresSlotRepo はPostgresSlotRepoを生成する。
func NewPostgresSlotRepo(db *sql.DB) *PostgresSlotRepo {
	return &PostgresSlotRepo{db: db}
}

// Create は時間枠を作成する。
func (r *PostgresSlotRepo) Create(ctx context.Context, slot *model.TimeSlot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO time_slots (id, starts_at, ends_at, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		slot.ID, slot.StartsAt, slot.EndsAt, slot.CreatedBy, slot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert time slot: %w", err)
	}
	return nil
}

// FindByID は指定IDの時間枠を取得する。見つからない場合はnilを返す。
func (r *PostgresSlotRepo) FindByID(ctx context.Context, id string) (*model.TimeSlot, error) {
	slot := &model.TimeSlot{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, starts_at, ends_at, created_by, created_at FROM time_slots WHERE id = $1`,
		id,
	).Scan(&slot.ID, &slot.StartsAt, &slot.EndsAt, &slot.CreatedBy, &slot.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find time slot: %w", err)
	}

	return slot, nil
}

// ListUpcoming はafter以降に始まる時間枠を、参加可能人数と
// 参加可能ユーザーID付きで開始時刻昇順に返す。
func (r *PostgresSlotRepo) ListUpcoming(ctx context.Context, after time.Time) ([]model.SlotWithAvailability, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.starts_at, s.ends_at, s.created_by, s.created_at,
		        COALESCE(array_agg(a.user_id ORDER BY a.created_at) FILTER (WHERE a.user_id IS NOT NULL), '{}')
		 FROM time_slots s
		 LEFT JOIN availability a ON a.slot_id = s.id
		 WHERE s.starts_at >= $1
		 GROUP BY s.id
		 ORDER BY s.starts_at`,
		after,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming slots: %w", err)
	}
	defer rows.Close()

	var slots []model.SlotWithAvailability
	for rows.Next() {
		var s model.SlotWithAvailability
		var userIDs pq.StringArray
		if err := rows.Scan(&s.ID, &s.StartsAt, &s.EndsAt, &s.CreatedBy, &s.CreatedAt, &userIDs); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		s.AvailableUserIDs = []string(userIDs)
		s.AvailableCount = len(s.AvailableUserIDs)
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}

	return slots, nil
}

// SetAvailability はユーザーの参加可否を冪等に設定する。
// available=trueで行をUPSERT、falseで行を削除する。
func (r *PostgresSlotRepo) SetAvailability(ctx context.Context, slotID, userID string, available bool) error {
	if available {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO availability (slot_id, user_id)
			 VALUES ($1, $2)
			 ON CONFLICT (slot_id, user_id) DO NOTHING`,
			slotID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert availability: %w", err)
		}
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM availability WHERE slot_id = $1 AND user_id = $2`,
		slotID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete availability: %w", err)
	}
	return nil
}

// DeleteAvailabilityByUserID はユーザーの全参加可否記録を削除する。
func (r *PostgresSlotRepo) DeleteAvailabilityByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM availability WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user availability: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SlotRepository = (*PostgresSlotRepo)(nil)
