// Package scores — filter.go переводит фильтры вызывающей стороны
// (активность, подактивность, команда, чат, статус, контекст, период)
// в SQL-предикат по таблице scores.
// Это единственное место такой трансляции: история, рейтинги, дашборд
// и выгрузка строят условия только здесь.
package scores

import (
	"fmt"
	"strings"
	"time"

	"scorebot/internal/common"
)

// Filter — параметры выборки оценок. Нулевые указатели означают
// «без ограничения по этому полю».
type Filter struct {
	UserID      *int64
	TeamID      *int64
	ActivityID  *int64
	SubActivity *string
	ChatID      *int64
	Status      *Status
	Context     *ScoreContext

	// Period разворачивается в нижнюю границу CreatedAt через common.Period.
	// Явный Since имеет приоритет над Period.
	Period common.Period
	Since  *time.Time
	Until  *time.Time

	// OnlyIndividual/OnlyTeam ограничивают выборку типом субъекта —
	// нужно рейтингам, где группировка идёт по одному из двух ключей.
	OnlyIndividual bool
	OnlyTeam       bool
}

// Conditions строит SQL-условия по таблице scores (алиас не используется)
// и список аргументов. startIdx — номер первого placeholder'а ($1, $2, ...).
// now нужен для разворачивания периода; граница включающая (>=).
func (f Filter) Conditions(startIdx int, now time.Time) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		conds = append(conds, fmt.Sprintf(cond, startIdx+len(args)))
		args = append(args, arg)
	}

	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.TeamID != nil {
		add("team_id = $%d", *f.TeamID)
	}
	if f.ActivityID != nil {
		add("activity_id = $%d", *f.ActivityID)
	}
	if f.SubActivity != nil {
		add("sub_activity = $%d", *f.SubActivity)
	}
	if f.ChatID != nil {
		add("chat_id = $%d", *f.ChatID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.Context != nil {
		add("context = $%d", string(*f.Context))
	}
	if f.OnlyIndividual {
		conds = append(conds, "user_id IS NOT NULL")
	}
	if f.OnlyTeam {
		conds = append(conds, "team_id IS NOT NULL")
	}

	since := f.Since
	if since == nil && f.Period != "" {
		if cutoff, ok := f.Period.CutoffFrom(now); ok {
			since = &cutoff
		}
	}
	if since != nil {
		add("created_at >= $%d", *since)
	}
	if f.Until != nil {
		add("created_at <= $%d", *f.Until)
	}

	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), args
}
