package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/disconcision/movienight/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用した鑑賞イベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// Create は鑑賞イベントを作成する。
func (r *PostgresEventRepo) Create(ctx context.Context, event *model.WatchEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watch_events (id, slot_id, movie_id, created_by, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.SlotID, event.MovieID, event.CreatedBy, event.Note, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert watch event: %w", err)
	}
	return nil
}

// FindByID は指定IDの鑑賞イベントを取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*model.WatchEvent, error) {
	event := &model.WatchEvent{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, slot_id, movie_id, created_by, note, created_at
		 FROM watch_events WHERE id = $1`,
		id,
	).Scan(&event.ID, &event.SlotID, &event.MovieID, &event.CreatedBy, &event.Note, &event.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find watch event: %w", err)
	}

	return event, nil
}

// ListWithVotes は全鑑賞イベントを参加表明集計付きで作成日時降順に返す。
func (r *PostgresEventRepo) ListWithVotes(ctx context.Context) ([]model.EventWithVotes, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.slot_id, e.movie_id, e.created_by, e.note, e.created_at,
		        COUNT(v.user_id) FILTER (WHERE v.going),
		        COUNT(v.user_id) FILTER (WHERE NOT v.going)
		 FROM watch_events e
		 LEFT JOIN attendance_votes v ON v.event_id = e.id
		 GROUP BY e.id
		 ORDER BY e.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list watch events: %w", err)
	}
	defer rows.Close()

	var events []model.EventWithVotes
	for rows.Next() {
		var e model.EventWithVotes
		if err := rows.Scan(
			&e.ID, &e.SlotID, &e.MovieID, &e.CreatedBy, &e.Note, &e.CreatedAt,
			&e.GoingCount, &e.NotGoingCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan watch event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watch events: %w", err)
	}

	return events, nil
}

// UpsertVote は参加表明を冪等にUPSERTする。再投票は上書きする。
func (r *PostgresEventRepo) UpsertVote(ctx context.Context, eventID, userID string, going bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attendance_votes (event_id, user_id, going)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, user_id) DO UPDATE SET going = EXCLUDED.going`,
		eventID, userID, going,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert attendance vote: %w", err)
	}
	return nil
}

// DeleteVotesByUserID はユーザーの全参加表明を削除する。
func (r *PostgresEventRepo) DeleteVotesByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM attendance_votes WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user votes: %w", err)
	}
	return nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
