// Package teams управляет командами клуба: созданием, составом и
// денормализованными счётчиками баллов.
// models.go описывает структуры для таблиц teams и team_members.
package teams

import "time"

// Team представляет команду в базе данных.
//
// TotalScore и ActivitiesCompleted — кэш, производный от суммы одобренных
// командных оценок. Обновляется только явными дельтами при переходах
// статуса оценки и при удалении (см. features/scores).
type Team struct {
	ID                  int64     `db:"id"`                   // Автоинкрементный ID
	Name                string    `db:"name"`                 // Название (уникальное)
	Description         string    `db:"description"`          // Описание (может быть пустым)
	CaptainID           int64     `db:"captain_id"`           // user_id капитана
	TotalScore          float64   `db:"total_score"`          // Сумма значений одобренных оценок (кэш)
	ActivitiesCompleted int       `db:"activities_completed"` // Счётчик завершённых активностей (кэш)
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// TeamMember — строка таблицы состава команды.
type TeamMember struct {
	TeamID   int64     `db:"team_id"`
	UserID   int64     `db:"user_id"`
	JoinedAt time.Time `db:"joined_at"`
}
