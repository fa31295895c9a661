// Package activities — справочник активностей, за которые начисляются баллы.
// models.go описывает структуру таблицы activities.
package activities

import "time"

// Activity — активность (соревнование, челлендж, зачёт).
// SubActivities — необязательный список объявленных ключей подактивностей
// (например, дистанции забега). Если список пуст — оценка может указывать
// любой ключ; если список задан — только один из объявленных.
type Activity struct {
	ID            int64     `db:"id"`
	Name          string    `db:"name"` // Уникальное название
	Description   string    `db:"description"`
	SubActivities []string  `db:"sub_activities"`
	IsActive      bool      `db:"is_active"` // Неактивные активности не принимают новые оценки
	CreatedBy     int64     `db:"created_by"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// AllowsSubActivity проверяет, допустим ли ключ подактивности.
// Пустой ключ допустим всегда (оценка на активность целиком).
func (a *Activity) AllowsSubActivity(key string) bool {
	if key == "" || len(a.SubActivities) == 0 {
		return true
	}
	for _, s := range a.SubActivities {
		if s == key {
			return true
		}
	}
	return false
}
