// Package members — repository.go отвечает за все операции с таблицей members в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package members

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scorebot/internal/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const memberColumns = `id, user_id, username, first_name, last_name, role, is_admin, is_banned,
	       total_score, activities_completed, joined_at, created_at, updated_at`

// Create добавляет нового участника в таблицу members.
// На конфликте по user_id обновляет только имя/username (не трогает роль/бан/счётчики).
func (r *Repository) Create(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO members (user_id, username, first_name, last_name, role, is_admin, is_banned, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		m.UserID, m.Username, m.FirstName, m.LastName,
		m.Role, m.IsAdmin, m.IsBanned, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ошибка создания/обновления участника: %w", err)
	}
	return nil
}

// GetByUserID: если не найден — common.ErrMemberNotFound.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE user_id = $1`
	m, err := r.scanOne(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w (user_id=%d)", common.ErrMemberNotFound, userID)
		}
		return nil, fmt.Errorf("ошибка чтения участника (user_id=%d): %w", userID, err)
	}
	return m, nil
}

// GetByUsername: если не найден — common.ErrMemberNotFound.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE LOWER(username) = LOWER($1)`
	m, err := r.scanOne(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w (username=%s)", common.ErrMemberNotFound, username)
		}
		return nil, fmt.Errorf("ошибка чтения участника (username=%s): %w", username, err)
	}
	return m, nil
}

func (r *Repository) Exists(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM members WHERE user_id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки существования: %w", err)
	}
	return exists, nil
}

func (r *Repository) UpdateInfo(ctx context.Context, userID int64, info UpdateInfo) error {
	query := `
		UPDATE members
		SET username = $2, first_name = $3, last_name = $4, updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := r.db.Exec(ctx, query, userID, info.Username, info.FirstName, info.LastName); err != nil {
		return fmt.Errorf("ошибка обновления данных участника: %w", err)
	}
	return nil
}

func (r *Repository) UpdateRole(ctx context.Context, userID int64, role string) error {
	query := `UPDATE members SET role = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID, role); err != nil {
		return fmt.Errorf("ошибка обновления роли: %w", err)
	}
	return nil
}

// ApplyScoreDelta прибавляет delta к total_score участника внутри
// транзакции tx той же операции, что изменила оценку. withActivity
// двигает счётчик завершённых активностей: +1 при положительной дельте,
// −1 при отрицательной. Вызывающая сторона обязана выдать ровно одну
// дельту на один логический переход статуса или удаление.
func (r *Repository) ApplyScoreDelta(ctx context.Context, tx pgx.Tx, userID int64, delta float64, withActivity bool) error {
	activityStep := 0
	if withActivity {
		if delta > 0 {
			activityStep = 1
		} else if delta < 0 {
			activityStep = -1
		}
	}
	query := `
		UPDATE members
		SET total_score = total_score + $2,
		    activities_completed = activities_completed + $3,
		    updated_at = NOW()
		WHERE user_id = $1
	`
	tag, err := tx.Exec(ctx, query, userID, delta, activityStep)
	if err != nil {
		return fmt.Errorf("ошибка применения дельты участнику: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w (user_id=%d)", common.ErrMemberNotFound, userID)
	}
	return nil
}

// GetDisplayByIDs возвращает отображаемые поля участников по списку user_id.
// Используется рейтингами для обогащения строк; отсутствующие ID просто
// не попадают в результат.
func (r *Repository) GetDisplayByIDs(ctx context.Context, userIDs []int64) (map[int64]*Member, error) {
	if len(userIDs) == 0 {
		return map[int64]*Member{}, nil
	}
	query := `SELECT ` + memberColumns + ` FROM members WHERE user_id = ANY($1)`
	rows, err := r.db.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса участников: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*Member, len(userIDs))
	for rows.Next() {
		m, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out[m.UserID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

func (r *Repository) GetUsersWithoutRole(ctx context.Context) ([]*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members
		WHERE role IS NULL AND is_banned = FALSE
		ORDER BY first_name`
	return r.queryMembers(ctx, query)
}

func (r *Repository) GetUsersWithRole(ctx context.Context) ([]*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members
		WHERE role IS NOT NULL AND is_banned = FALSE
		ORDER BY first_name`
	return r.queryMembers(ctx, query)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanOne(row rowScanner) (*Member, error) {
	var m Member
	err := row.Scan(
		&m.ID, &m.UserID, &m.Username, &m.FirstName, &m.LastName,
		&m.Role, &m.IsAdmin, &m.IsBanned,
		&m.TotalScore, &m.ActivitiesCompleted,
		&m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) queryMembers(ctx context.Context, query string, args ...any) ([]*Member, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса участников: %w", err)
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		m, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}

	return out, nil
}
