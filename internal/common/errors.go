// Package common — errors.go определяет ошибки, которые используются
// во всех модулях платформы.
// Базовые ошибки задают категорию (не найдено, конфликт, неверный запрос,
// нет прав, внутренняя), а доменные ошибки оборачивают категорию через %w.
// Обработчики различают их через errors.Is — как по конкретной ошибке,
// так и по всей категории сразу.
package common

import (
	"errors"
	"fmt"
)

// Базовые категории ошибок. На границе API они переводятся в HTTP-статусы,
// в боте — в понятные пользователю сообщения.
var (
	// ErrNotFound — запись/активность/участник/команда не существует
	ErrNotFound = errors.New("не найдено")
	// ErrConflict — нарушение уникальности или повторный переход статуса
	ErrConflict = errors.New("конфликт")
	// ErrBadRequest — отсутствует обязательное поле или некорректное значение
	ErrBadRequest = errors.New("некорректный запрос")
	// ErrForbidden — нет прав на операцию
	ErrForbidden = errors.New("нет прав")
	// ErrInternal — ошибка хранилища, наружу детали не отдаём
	ErrInternal = errors.New("внутренняя ошибка")
)

// Ошибки оценок
var (
	// ErrDuplicateScore — оценка для (субъект, активность, подактивность) уже есть
	ErrDuplicateScore = fmt.Errorf("%w: оценка уже начислена", ErrConflict)
	// ErrScoreNotFound — оценка не найдена
	ErrScoreNotFound = fmt.Errorf("%w: оценка", ErrNotFound)
	// ErrAlreadyApproved — оценка уже одобрена
	ErrAlreadyApproved = fmt.Errorf("%w: оценка уже одобрена", ErrBadRequest)
	// ErrAlreadyRejected — оценка уже отклонена
	ErrAlreadyRejected = fmt.Errorf("%w: оценка уже отклонена", ErrBadRequest)
	// ErrReasonRequired — при отклонении обязательна причина
	ErrReasonRequired = fmt.Errorf("%w: укажите причину отклонения", ErrBadRequest)
	// ErrStatusViaUpdate — статус меняется только через одобрение/отклонение
	ErrStatusViaUpdate = fmt.Errorf("%w: статус меняется только через одобрение или отклонение", ErrBadRequest)
	// ErrInvalidValue — значение отрицательное или максимум меньше 1
	ErrInvalidValue = fmt.Errorf("%w: значение должно быть ≥ 0, максимум ≥ 1", ErrBadRequest)
	// ErrSubjectAmbiguous — должен быть задан ровно один субъект
	ErrSubjectAmbiguous = fmt.Errorf("%w: укажите ровно одного субъекта — участника или команду", ErrBadRequest)
	// ErrContextMismatch — контекст оценки не совпадает с типом субъекта
	ErrContextMismatch = fmt.Errorf("%w: контекст не совпадает с субъектом", ErrBadRequest)
	// ErrUnknownSubActivity — подактивность не объявлена в активности
	ErrUnknownSubActivity = fmt.Errorf("%w: такой подактивности нет в активности", ErrBadRequest)
	// ErrChatRequired — в метаданных обязателен chat_id
	ErrChatRequired = fmt.Errorf("%w: укажите chat_id", ErrBadRequest)
)

// Ошибки справочников
var (
	// ErrMemberNotFound — участник не найден в базе
	ErrMemberNotFound = fmt.Errorf("%w: участник", ErrNotFound)
	// ErrTeamNotFound — команда не найдена
	ErrTeamNotFound = fmt.Errorf("%w: команда", ErrNotFound)
	// ErrActivityNotFound — активность не найдена
	ErrActivityNotFound = fmt.Errorf("%w: активность", ErrNotFound)
	// ErrDuplicateTeam — команда с таким названием уже есть
	ErrDuplicateTeam = fmt.Errorf("%w: команда с таким названием уже есть", ErrConflict)
	// ErrDuplicateActivity — активность с таким названием уже есть
	ErrDuplicateActivity = fmt.Errorf("%w: активность с таким названием уже есть", ErrConflict)
)

// Ошибки таймеров
var (
	// ErrDuplicateTimer — таймер с таким именем для активности уже запущен
	ErrDuplicateTimer = fmt.Errorf("%w: такой таймер уже запущен", ErrConflict)
	// ErrTimerNotFound — таймер не найден
	ErrTimerNotFound = fmt.Errorf("%w: таймер", ErrNotFound)
)

// Ошибки админки (панель ревьюера в DM)
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = fmt.Errorf("%w: у вас нет прав администратора", ErrForbidden)
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = fmt.Errorf("%w: неверный пароль", ErrForbidden)
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = fmt.Errorf("%w: слишком много попыток, подождите 1 час", ErrForbidden)
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = fmt.Errorf("%w: сессия истекла, авторизуйтесь заново", ErrForbidden)
)

// Kind возвращает базовую категорию ошибки.
// Если ошибка не принадлежит ни одной категории — это ErrInternal.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrBadRequest, ErrForbidden} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}
