// Package scores — repository.go выполняет операции с таблицей scores.
// Каждая мутация записи и её дельта по счётчикам субъекта выполняются
// в ОДНОЙ транзакции БД: падение между шагами не оставляет кэш субъекта
// рассинхронизованным с набором записей.
package scores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
	"scorebot/internal/db/postgres"
	"scorebot/internal/features/members"
	"scorebot/internal/features/teams"
)

// Repository работает с таблицей scores и применяет дельты счётчиков
// через репозитории участников и команд.
type Repository struct {
	db         *pgxpool.Pool
	memberRepo *members.Repository
	teamRepo   *teams.Repository
}

// NewRepository создаёт репозиторий оценок.
func NewRepository(db *pgxpool.Pool, memberRepo *members.Repository, teamRepo *teams.Repository) *Repository {
	return &Repository{db: db, memberRepo: memberRepo, teamRepo: teamRepo}
}

const scoreColumns = `id, user_id, team_id, activity_id, sub_activity, value, max_possible,
	       normalized_score, context, status, awarded_by, chat_id, message_id,
	       comment, evidence_url, rejection_reason, reviewed_by, reviewed_at,
	       created_at, updated_at`

// applyDelta применяет подписанную дельту к счётчикам субъекта внутри tx.
// Вызывается ровно один раз на логическое событие (создание approved,
// переход статуса, правка значения, удаление) — дедупликации внутри нет.
func (r *Repository) applyDelta(ctx context.Context, tx pgx.Tx, subject SubjectRef, delta *CounterDelta) error {
	if delta == nil || delta.Value == 0 {
		return nil
	}
	switch {
	case subject.TeamID != nil:
		return r.teamRepo.ApplyScoreDelta(ctx, tx, *subject.TeamID, delta.Value, delta.WithActivity)
	case subject.UserID != nil:
		return r.memberRepo.ApplyScoreDelta(ctx, tx, *subject.UserID, delta.Value, delta.WithActivity)
	default:
		return common.ErrSubjectAmbiguous
	}
}

// Insert сохраняет новую оценку и, если delta задана, применяет её
// в той же транзакции. Дубликат ключа уникальности (субъект, активность,
// подактивность) — common.ErrDuplicateScore: конкурентные создания по
// одному ключу сериализует уникальный индекс БД.
func (r *Repository) Insert(ctx context.Context, rec *ScoreRecord, delta *CounterDelta) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO scores (user_id, team_id, activity_id, sub_activity, value, max_possible,
		                    normalized_score, context, status, awarded_by, chat_id, message_id,
		                    comment, evidence_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`,
		rec.UserID, rec.TeamID, rec.ActivityID, rec.SubActivity, rec.Value, rec.MaxPossible,
		rec.NormalizedScore, string(rec.Context), string(rec.Status), rec.AwardedBy,
		rec.ChatID, rec.MessageID, rec.Comment, rec.EvidenceURL,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return common.ErrDuplicateScore
		}
		return fmt.Errorf("ошибка сохранения оценки: %w", err)
	}

	if err := r.applyDelta(ctx, tx, rec.Subject(), delta); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID: если не найдена — common.ErrScoreNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (*ScoreRecord, error) {
	query := `SELECT ` + scoreColumns + ` FROM scores WHERE id = $1`
	rec, err := scanScore(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w (id=%d)", common.ErrScoreNotFound, id)
		}
		return nil, fmt.Errorf("ошибка чтения оценки (id=%d): %w", id, err)
	}
	return rec, nil
}

// Update перезаписывает изменяемые поля записи и применяет дельту
// в той же транзакции. CreatedAt и AwardedBy не трогаются.
func (r *Repository) Update(ctx context.Context, rec *ScoreRecord, delta *CounterDelta) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE scores
		SET value = $2, max_possible = $3, normalized_score = $4, status = $5,
		    comment = $6, evidence_url = $7, rejection_reason = $8,
		    reviewed_by = $9, reviewed_at = $10, updated_at = NOW()
		WHERE id = $1
	`,
		rec.ID, rec.Value, rec.MaxPossible, rec.NormalizedScore, string(rec.Status),
		rec.Comment, rec.EvidenceURL, rec.RejectionReason, rec.ReviewedBy, rec.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления оценки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w (id=%d)", common.ErrScoreNotFound, rec.ID)
	}

	if err := r.applyDelta(ctx, tx, rec.Subject(), delta); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete удаляет запись и применяет компенсирующую дельту в той же транзакции.
func (r *Repository) Delete(ctx context.Context, rec *ScoreRecord, delta *CounterDelta) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM scores WHERE id = $1`, rec.ID)
	if err != nil {
		return fmt.Errorf("ошибка удаления оценки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w (id=%d)", common.ErrScoreNotFound, rec.ID)
	}

	if err := r.applyDelta(ctx, tx, rec.Subject(), delta); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// List возвращает оценки по фильтру, новые первыми. limit ≤ 0 — без лимита.
func (r *Repository) List(ctx context.Context, f Filter, limit int) ([]*ScoreRecord, error) {
	where, args := f.Conditions(1, common.GetMoscowTime())
	query := `SELECT ` + scoreColumns + ` FROM scores WHERE ` + where + ` ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса оценок: %w", err)
	}
	defer rows.Close()

	var out []*ScoreRecord
	for rows.Next() {
		rec, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования оценки: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// Count возвращает число оценок по фильтру.
func (r *Repository) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.Conditions(1, common.GetMoscowTime())
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM scores WHERE `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта оценок: %w", err)
	}
	return count, nil
}

// ReconcileCounters пересчитывает кэшированные счётчики участников и команд
// из фактической суммы одобренных оценок и чинит расхождения.
// В нормальной работе расхождений быть не должно (мутации атомарны);
// джоба — страховка после ручных правок БД или восстановления из бэкапа.
// Оценки с нулевым значением в activities_completed не входят: дельта
// для них не применяется, значит и пересчёт их не считает.
// Возвращает число исправленных участников и команд.
func (r *Repository) ReconcileCounters(ctx context.Context) (fixedMembers, fixedTeams int64, err error) {
	memberTag, err := r.db.Exec(ctx, `
		UPDATE members m
		SET total_score = c.sum_value,
		    activities_completed = c.cnt,
		    updated_at = NOW()
		FROM (
			SELECT user_id, COALESCE(SUM(value), 0) AS sum_value,
			       COUNT(*) FILTER (WHERE value > 0) AS cnt
			FROM scores WHERE status = 'approved' AND user_id IS NOT NULL
			GROUP BY user_id
		) c
		WHERE m.user_id = c.user_id
		  AND (m.total_score IS DISTINCT FROM c.sum_value
		       OR m.activities_completed IS DISTINCT FROM c.cnt)
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка сверки счётчиков участников: %w", err)
	}

	zeroMembersTag, err := r.db.Exec(ctx, `
		UPDATE members m
		SET total_score = 0, activities_completed = 0, updated_at = NOW()
		WHERE (m.total_score <> 0 OR m.activities_completed <> 0)
		  AND NOT EXISTS (
			SELECT 1 FROM scores s
			WHERE s.user_id = m.user_id AND s.status = 'approved'
		  )
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка обнуления счётчиков участников: %w", err)
	}

	teamTag, err := r.db.Exec(ctx, `
		UPDATE teams t
		SET total_score = c.sum_value,
		    activities_completed = c.cnt,
		    updated_at = NOW()
		FROM (
			SELECT team_id, COALESCE(SUM(value), 0) AS sum_value,
			       COUNT(*) FILTER (WHERE value > 0) AS cnt
			FROM scores WHERE status = 'approved' AND team_id IS NOT NULL
			GROUP BY team_id
		) c
		WHERE t.id = c.team_id
		  AND (t.total_score IS DISTINCT FROM c.sum_value
		       OR t.activities_completed IS DISTINCT FROM c.cnt)
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка сверки счётчиков команд: %w", err)
	}

	zeroTeamsTag, err := r.db.Exec(ctx, `
		UPDATE teams t
		SET total_score = 0, activities_completed = 0, updated_at = NOW()
		WHERE (t.total_score <> 0 OR t.activities_completed <> 0)
		  AND NOT EXISTS (
			SELECT 1 FROM scores s
			WHERE s.team_id = t.id AND s.status = 'approved'
		  )
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка обнуления счётчиков команд: %w", err)
	}

	fixedMembers = memberTag.RowsAffected() + zeroMembersTag.RowsAffected()
	fixedTeams = teamTag.RowsAffected() + zeroTeamsTag.RowsAffected()
	if fixedMembers > 0 || fixedTeams > 0 {
		log.WithFields(log.Fields{
			"members": fixedMembers,
			"teams":   fixedTeams,
		}).Warn("Сверка нашла и исправила расхождения счётчиков")
	}
	return fixedMembers, fixedTeams, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*ScoreRecord, error) {
	var rec ScoreRecord
	var context, status string
	var reviewedAt *time.Time
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.TeamID, &rec.ActivityID, &rec.SubActivity,
		&rec.Value, &rec.MaxPossible, &rec.NormalizedScore,
		&context, &status, &rec.AwardedBy, &rec.ChatID, &rec.MessageID,
		&rec.Comment, &rec.EvidenceURL, &rec.RejectionReason,
		&rec.ReviewedBy, &reviewedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Context = ScoreContext(context)
	rec.Status = Status(status)
	rec.ReviewedAt = reviewedAt
	return &rec, nil
}
