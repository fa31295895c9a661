// Package activities — repository.go выполняет операции с таблицей activities.
package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scorebot/internal/common"
	"scorebot/internal/db/postgres"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const activityColumns = `id, name, description, sub_activities, is_active, created_by, created_at, updated_at`

// Create добавляет активность. Дубликат названия — common.ErrDuplicateActivity.
func (r *Repository) Create(ctx context.Context, a *Activity) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO activities (name, description, sub_activities, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, a.Name, a.Description, a.SubActivities, a.IsActive, a.CreatedBy).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return common.ErrDuplicateActivity
		}
		return fmt.Errorf("ошибка создания активности: %w", err)
	}
	return nil
}

// GetByID: если не найдена — common.ErrActivityNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1`
	a, err := r.scanOne(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w (id=%d)", common.ErrActivityNotFound, id)
		}
		return nil, fmt.Errorf("ошибка чтения активности (id=%d): %w", id, err)
	}
	return a, nil
}

// GetByName: если не найдена — common.ErrActivityNotFound.
func (r *Repository) GetByName(ctx context.Context, name string) (*Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE LOWER(name) = LOWER($1)`
	a, err := r.scanOne(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w (name=%s)", common.ErrActivityNotFound, name)
		}
		return nil, fmt.Errorf("ошибка чтения активности (name=%s): %w", name, err)
	}
	return a, nil
}

func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM activities WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки активности: %w", err)
	}
	return exists, nil
}

// ListActive возвращает активные активности по алфавиту.
func (r *Repository) ListActive(ctx context.Context) ([]*Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE is_active = TRUE ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса активностей: %w", err)
	}
	defer rows.Close()

	var out []*Activity
	for rows.Next() {
		a, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования активности: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// SetActive включает или выключает приём оценок по активности.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE activities SET is_active = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("ошибка обновления активности: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w (id=%d)", common.ErrActivityNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanOne(row rowScanner) (*Activity, error) {
	var a Activity
	err := row.Scan(
		&a.ID, &a.Name, &a.Description, &a.SubActivities,
		&a.IsActive, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
