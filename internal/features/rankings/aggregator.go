// Package rankings строит рейтинги (личные и командные) по одобренным
// оценкам: группировка по субъекту, суммы, детерминированная сортировка
// и пагинация.
// aggregator.go — чистые функции без I/O; выборку и обогащение делает service.go.
package rankings

import (
	"math"
	"sort"
	"time"

	"scorebot/internal/features/scores"
)

// Scope — область рейтинга: по участникам или по командам.
type Scope string

const (
	ScopeIndividual Scope = "individual"
	ScopeTeam       Scope = "team"
)

// Valid проверяет область.
func (s Scope) Valid() bool {
	return s == ScopeIndividual || s == ScopeTeam
}

// Row — одна строка рейтинга.
type Row struct {
	Rank      int   `json:"rank"`
	SubjectID int64 `json:"subject_id"`

	TotalScore           float64 `json:"total_score"`            // sum(value)
	TotalNormalizedScore int     `json:"total_normalized_score"` // sum(normalized), главный ключ сортировки
	ScoreCount           int     `json:"score_count"`
	AvgNormalizedScore   float64 `json:"avg_normalized_score"` // с округлением до 2 знаков

	// LastScore — max(createdAt) по группе; на равных суммах выигрывает
	// тот, чья последняя оценка раньше
	LastScore time.Time `json:"last_score"`

	// Отображаемые поля субъекта (обогащение из справочников)
	Name        string `json:"name"`
	Username    string `json:"username,omitempty"`
	MemberCount int    `json:"member_count,omitempty"` // только для команд
}

// aggregate группирует записи по субъекту и считает агрегаты группы.
// Записи, не относящиеся к области (нет user_id для individual,
// нет team_id для team), пропускаются.
func aggregate(records []*scores.ScoreRecord, scope Scope) []*Row {
	groups := make(map[int64]*Row)
	for _, rec := range records {
		var subjectID int64
		switch scope {
		case ScopeTeam:
			if rec.TeamID == nil {
				continue
			}
			subjectID = *rec.TeamID
		default:
			if rec.UserID == nil {
				continue
			}
			subjectID = *rec.UserID
		}

		row, ok := groups[subjectID]
		if !ok {
			row = &Row{SubjectID: subjectID}
			groups[subjectID] = row
		}
		row.TotalScore += rec.Value
		row.TotalNormalizedScore += rec.NormalizedScore
		row.ScoreCount++
		if rec.CreatedAt.After(row.LastScore) {
			row.LastScore = rec.CreatedAt
		}
	}

	rows := make([]*Row, 0, len(groups))
	for _, row := range groups {
		row.AvgNormalizedScore = round2(float64(row.TotalNormalizedScore) / float64(row.ScoreCount))
		rows = append(rows, row)
	}
	return rows
}

// sortRows сортирует строки: убывание суммы нормализованных баллов,
// на равенстве — возрастание времени последней оценки, дальше —
// по subject_id для полной детерминированности.
func sortRows(rows []*Row) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.TotalNormalizedScore != b.TotalNormalizedScore {
			return a.TotalNormalizedScore > b.TotalNormalizedScore
		}
		if !a.LastScore.Equal(b.LastScore) {
			return a.LastScore.Before(b.LastScore)
		}
		return a.SubjectID < b.SubjectID
	})
}

// paginate режет отсортированный список и проставляет ранги.
// total — размер списка ДО пагинации (для метаданных страницы).
func paginate(rows []*Row, offset, limit int) (page []*Row, total int) {
	total = len(rows)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*Row{}, total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page = rows[offset:end]
	for i, row := range page {
		row.Rank = offset + i + 1
	}
	return page, total
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
