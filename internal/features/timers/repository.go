// Package timers — repository.go выполняет операции с таблицей timers.
package timers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scorebot/internal/common"
	"scorebot/internal/db/postgres"
)

// Repository работает с таблицей timers.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий таймеров.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const timerColumns = `id, name, activity_id, ends_at, chat_id, created_by, fired, created_at`

// Create сохраняет таймер. Дубликат (name, activity_id) —
// common.ErrDuplicateTimer.
func (r *Repository) Create(ctx context.Context, t *Timer) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO timers (name, activity_id, ends_at, chat_id, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, t.Name, t.ActivityID, t.EndsAt, t.ChatID, t.CreatedBy).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("%w (%s)", common.ErrDuplicateTimer, t.Name)
		}
		return fmt.Errorf("ошибка сохранения таймера: %w", err)
	}
	return nil
}

// ListActive возвращает несработавшие таймеры, ближайшие первыми.
func (r *Repository) ListActive(ctx context.Context, chatID int64) ([]*Timer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+timerColumns+`
		FROM timers
		WHERE fired = FALSE AND chat_id = $1
		ORDER BY ends_at ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса таймеров: %w", err)
	}
	defer rows.Close()
	return scanTimers(rows)
}

// GetByName: несработавший таймер по имени (и активности).
// Не найден — common.ErrTimerNotFound.
func (r *Repository) GetByName(ctx context.Context, name string, activityID int64) (*Timer, error) {
	var t Timer
	err := r.db.QueryRow(ctx, `
		SELECT `+timerColumns+`
		FROM timers
		WHERE name = $1 AND activity_id = $2 AND fired = FALSE
	`, name, activityID).Scan(
		&t.ID, &t.Name, &t.ActivityID, &t.EndsAt, &t.ChatID, &t.CreatedBy, &t.Fired, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w (%s)", common.ErrTimerNotFound, name)
		}
		return nil, fmt.Errorf("ошибка чтения таймера: %w", err)
	}
	return &t, nil
}

// Cancel удаляет несработавший таймер.
func (r *Repository) Cancel(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM timers WHERE id = $1 AND fired = FALSE`, id)
	if err != nil {
		return fmt.Errorf("ошибка отмены таймера: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w (id=%d)", common.ErrTimerNotFound, id)
	}
	return nil
}

// ClaimDue атомарно забирает истёкшие несработавшие таймеры и помечает их
// fired. FOR UPDATE SKIP LOCKED позволяет гонять джобу на нескольких
// инстансах: каждый таймер достаётся ровно одному.
func (r *Repository) ClaimDue(ctx context.Context, limit int) ([]*Timer, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT `+timerColumns+`
		FROM timers
		WHERE fired = FALSE AND ends_at <= NOW()
		ORDER BY ends_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки истёкших таймеров: %w", err)
	}
	due, err := scanTimers(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, len(due))
	for i, t := range due {
		ids[i] = t.ID
		t.Fired = true
	}
	if _, err := tx.Exec(ctx, `UPDATE timers SET fired = TRUE WHERE id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("ошибка пометки таймеров: %w", err)
	}

	return due, tx.Commit(ctx)
}

func scanTimers(rows pgx.Rows) ([]*Timer, error) {
	var out []*Timer
	for rows.Next() {
		var t Timer
		err := rows.Scan(
			&t.ID, &t.Name, &t.ActivityID, &t.EndsAt, &t.ChatID, &t.CreatedBy, &t.Fired, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования таймера: %w", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}
