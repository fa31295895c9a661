// Package teams — repository.go выполняет операции с таблицами teams и team_members.
package teams

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

const teamColumns = `id, name, description, captain_id, total_score, activities_completed, created_at, updated_at`

// Create создаёт команду; капитан сразу попадает в состав.
// Дубликат названия — common.ErrDuplicateTeam.
func (r *Repository) Create(ctx context.Context, t *Team) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO teams (name, description, captain_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, t.Name, t.Description, t.CaptainID).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return common.ErrDuplicateTeam
		}
		return fmt.Errorf("ошибка создания команды: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, t.ID, t.CaptainID)
	if err != nil {
		return fmt.Errorf("ошибка добавления капитана в состав: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID: если не найдена — common.ErrTeamNotFound.
func (r *Repository) GetByID(ctx context.Context, teamID int64) (*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	t, err := r.scanOne(r.db.QueryRow(ctx, query, teamID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w (id=%d)", common.ErrTeamNotFound, teamID)
		}
		return nil, fmt.Errorf("ошибка чтения команды (id=%d): %w", teamID, err)
	}
	return t, nil
}

// GetByName: если не найдена — common.ErrTeamNotFound.
func (r *Repository) GetByName(ctx context.Context, name string) (*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE LOWER(name) = LOWER($1)`
	t, err := r.scanOne(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w (name=%s)", common.ErrTeamNotFound, name)
		}
		return nil, fmt.Errorf("ошибка чтения команды (name=%s): %w", name, err)
	}
	return t, nil
}

func (r *Repository) Exists(ctx context.Context, teamID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM teams WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, teamID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки существования команды: %w", err)
	}
	return exists, nil
}

// List возвращает все команды по убыванию набранных баллов.
func (r *Repository) List(ctx context.Context) ([]*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams ORDER BY total_score DESC, name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса команд: %w", err)
	}
	defer rows.Close()

	var out []*Team
	for rows.Next() {
		t, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования команды: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// AddMember добавляет участника в состав (повторное добавление — no-op).
func (r *Repository) AddMember(ctx context.Context, teamID, userID int64) error {
	query := `
		INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, teamID, userID); err != nil {
		return fmt.Errorf("ошибка добавления в команду: %w", err)
	}
	return nil
}

// RemoveMember убирает участника из состава.
func (r *Repository) RemoveMember(ctx context.Context, teamID, userID int64) error {
	query := `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`
	if _, err := r.db.Exec(ctx, query, teamID, userID); err != nil {
		return fmt.Errorf("ошибка удаления из команды: %w", err)
	}
	return nil
}

// IsMember проверяет, состоит ли пользователь в команде.
func (r *Repository) IsMember(ctx context.Context, teamID, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, teamID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки состава: %w", err)
	}
	return exists, nil
}

// MemberCount возвращает размер состава команды.
func (r *Repository) MemberCount(ctx context.Context, teamID int64) (int, error) {
	query := `SELECT COUNT(*) FROM team_members WHERE team_id = $1`
	var count int
	if err := r.db.QueryRow(ctx, query, teamID).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта состава: %w", err)
	}
	return count, nil
}

// ApplyScoreDelta прибавляет delta к total_score команды внутри транзакции tx
// той же операции, что изменила оценку. Семантика как у members.ApplyScoreDelta.
func (r *Repository) ApplyScoreDelta(ctx context.Context, tx pgx.Tx, teamID int64, delta float64, withActivity bool) error {
	activityStep := 0
	if withActivity {
		if delta > 0 {
			activityStep = 1
		} else if delta < 0 {
			activityStep = -1
		}
	}
	query := `
		UPDATE teams
		SET total_score = total_score + $2,
		    activities_completed = activities_completed + $3,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, teamID, delta, activityStep)
	if err != nil {
		return fmt.Errorf("ошибка применения дельты команде: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w (id=%d)", common.ErrTeamNotFound, teamID)
	}
	return nil
}

// GetDisplayByIDs возвращает команды по списку ID вместе с размером состава.
// Используется рейтингами для обогащения строк.
func (r *Repository) GetDisplayByIDs(ctx context.Context, teamIDs []int64) (map[int64]*TeamDisplay, error) {
	if len(teamIDs) == 0 {
		return map[int64]*TeamDisplay{}, nil
	}
	query := `
		SELECT t.id, t.name, COUNT(tm.user_id)
		FROM teams t
		LEFT JOIN team_members tm ON tm.team_id = t.id
		WHERE t.id = ANY($1)
		GROUP BY t.id, t.name
	`
	rows, err := r.db.Query(ctx, query, teamIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса команд: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*TeamDisplay, len(teamIDs))
	for rows.Next() {
		var d TeamDisplay
		if err := rows.Scan(&d.TeamID, &d.Name, &d.MemberCount); err != nil {
			return nil, fmt.Errorf("ошибка сканирования команды: %w", err)
		}
		out[d.TeamID] = &d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// TeamDisplay — отображаемые поля команды для строк рейтинга.
type TeamDisplay struct {
	TeamID      int64
	Name        string
	MemberCount int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanOne(row rowScanner) (*Team, error) {
	var t Team
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.CaptainID,
		&t.TotalScore, &t.ActivitiesCompleted,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
