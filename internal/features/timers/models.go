// Package timers — персистентные таймеры обратного отсчёта для активностей.
// Таймер переживает перезапуск бота: хранится в БД, а ежеминутная джоба
// (internal/jobs) находит истёкшие и отправляет уведомления.
// models.go описывает структуру таблицы timers.
package timers

import "time"

// Timer — один таймер. Ключ уникальности — (name, activity_id):
// повторное создание таймера с тем же именем для той же активности —
// конфликт. activity_id = 0 означает таймер без привязки к активности.
type Timer struct {
	ID         int64     `db:"id"`
	Name       string    `db:"name"`
	ActivityID int64     `db:"activity_id"`
	EndsAt     time.Time `db:"ends_at"`
	ChatID     int64     `db:"chat_id"` // Куда отправить уведомление
	CreatedBy  int64     `db:"created_by"`
	Fired      bool      `db:"fired"`
	CreatedAt  time.Time `db:"created_at"`
}

// Remaining возвращает остаток времени до срабатывания (0, если истёк).
func (t *Timer) Remaining(now time.Time) time.Duration {
	d := t.EndsAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
