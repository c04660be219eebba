package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/disconcision/movienight/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// 未鑑賞リストはunseen_moviesテーブルのposition列で並び順ごと永続化する。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを未鑑賞リスト付きで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Name, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	unseen, err := r.loadUnseenList(ctx, id)
	if err != nil {
		return nil, err
	}
	user.UnseenMovies = unseen

	return user, nil
}

// FindByName は名前でユーザーを検索する（大文字小文字を区別しない）。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByName(ctx context.Context, name string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM users WHERE lower(name) = lower($1)`,
		name,
	).Scan(&user.ID, &user.Name, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by name: %w", err)
	}

	unseen, err := r.loadUnseenList(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.UnseenMovies = unseen

	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		user.ID, user.Name, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// ListAll は全ユーザーを未鑑賞リスト付きで返す。
// 各ユーザーのUnseenMoviesはposition昇順（優先度順）で並ぶ。
func (r *PostgresUserRepo) ListAll(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM users ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	index := make(map[string]int)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.UnseenMovies = []string{}
		index[u.ID] = len(users)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	listRows, err := r.db.QueryContext(ctx,
		`SELECT user_id, movie_id FROM unseen_movies ORDER BY user_id, position`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unseen movies: %w", err)
	}
	defer listRows.Close()

	for listRows.Next() {
		var userID, movieID string
		if err := listRows.Scan(&userID, &movieID); err != nil {
			return nil, fmt.Errorf("failed to scan unseen movie: %w", err)
		}
		if i, ok := index[userID]; ok {
			users[i].UnseenMovies = append(users[i].UnseenMovies, movieID)
		}
	}
	if err := listRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unseen movies: %w", err)
	}

	return users, nil
}

// ReplaceUnseenList はユーザーの未鑑賞リストを同一トランザクションで全置換する。
// 既存行の全削除と新しい並びの挿入をアトミックに行い、並び順を正確に保持する。
func (r *PostgresUserRepo) ReplaceUnseenList(ctx context.Context, userID string, movieIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM unseen_movies WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear unseen list: %w", err)
	}

	for i, movieID := range movieIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO unseen_movies (user_id, movie_id, position)
			 VALUES ($1, $2, $3)`,
			userID, movieID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert unseen movie at position %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET updated_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するsessions、unseen_movies、availability、attendance_votesはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// loadUnseenList はユーザーの未鑑賞リストをposition昇順で取得する。
func (r *PostgresUserRepo) loadUnseenList(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT movie_id FROM unseen_movies WHERE user_id = $1 ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load unseen list: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan unseen movie: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unseen list: %w", err)
	}

	return ids, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
