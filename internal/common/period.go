// Package common — period.go задаёт периоды выборки (день/неделя/месяц/год/всё).
// Логика период → нижняя граница createdAt живёт ТОЛЬКО здесь: её используют
// история, рейтинги, дашборд и выгрузка. Реализовывать этот switch
// где-то ещё запрещено.
package common

import (
	"fmt"
	"time"
)

// Period — относительное окно времени для фильтрации оценок.
type Period string

// Допустимые периоды.
const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodAll   Period = "all"
)

// ParsePeriod разбирает строку периода. Пустая строка означает «всё время».
// Понимает и русские названия, которыми пользуются команды бота.
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "", "all", "всё", "все":
		return PeriodAll, nil
	case "day", "день":
		return PeriodDay, nil
	case "week", "неделя":
		return PeriodWeek, nil
	case "month", "месяц":
		return PeriodMonth, nil
	case "year", "год":
		return PeriodYear, nil
	default:
		return "", fmt.Errorf("%w: неизвестный период %q", ErrBadRequest, s)
	}
}

// Valid сообщает, является ли период одним из допустимых значений.
func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear, PeriodAll:
		return true
	}
	return false
}

// CutoffFrom возвращает нижнюю границу createdAt для периода
// относительно момента now. Граница включающая: запись, созданная
// ровно в now−окно, попадает в выборку (createdAt >= cutoff).
// Для PeriodAll возвращает ok=false — нижней границы нет.
func (p Period) CutoffFrom(now time.Time) (cutoff time.Time, ok bool) {
	switch p {
	case PeriodDay:
		return now.AddDate(0, 0, -1), true
	case PeriodWeek:
		return now.AddDate(0, 0, -7), true
	case PeriodMonth:
		return now.AddDate(0, -1, 0), true
	case PeriodYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// Cutoff — то же самое относительно текущего московского времени.
func (p Period) Cutoff() (time.Time, bool) {
	return p.CutoffFrom(GetMoscowTime())
}
