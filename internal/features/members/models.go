// Package members управляет участниками клуба: регистрацией, ролями, флагами
// и денормализованными счётчиками баллов.
// models.go описывает структуры данных для работы с таблицей members.
package members

import "time"

// Member представляет участника клуба в базе данных.
// Каждый пользователь, вступивший в CLUB_CHAT_ID, автоматически
// создаётся в этой таблице.
//
// TotalScore и ActivitiesCompleted — кэш, производный от суммы одобренных
// оценок участника. Он обновляется только явными дельтами при переходах
// статуса оценки и при удалении (см. features/scores), лениво не
// пересчитывается.
type Member struct {
	ID                  int64     `db:"id"`                   // Автоинкрементный ID записи в БД
	UserID              int64     `db:"user_id"`              // Telegram user ID (уникальный)
	Username            string    `db:"username"`             // @username (может быть пустым)
	FirstName           string    `db:"first_name"`           // Имя пользователя
	LastName            string    `db:"last_name"`            // Фамилия (может быть пустой)
	Role                *string   `db:"role"`                 // Роль, назначенная админом (может быть nil)
	IsAdmin             bool      `db:"is_admin"`             // Флаг администратора
	IsBanned            bool      `db:"is_banned"`            // Флаг бана
	TotalScore          float64   `db:"total_score"`          // Сумма значений одобренных оценок (кэш)
	ActivitiesCompleted int       `db:"activities_completed"` // Счётчик завершённых активностей (кэш)
	JoinedAt            time.Time `db:"joined_at"`            // Когда вступил в чат
	CreatedAt           time.Time `db:"created_at"`           // Когда запись создана в БД
	UpdatedAt           time.Time `db:"updated_at"`           // Последнее обновление записи
}

// UpdateInfo содержит данные для обновления информации о пользователе.
// Используется, когда пользователь возвращается в чат и его имя/username могли измениться.
type UpdateInfo struct {
	Username  string // Новый @username
	FirstName string // Новое имя
	LastName  string // Новая фамилия
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username — возвращает его, иначе — имя + фамилию.
func (m *Member) DisplayName() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := m.FirstName
	if m.LastName != "" {
		name += " " + m.LastName
	}
	return name
}
