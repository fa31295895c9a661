// telegram.go — стратегия подписанных initData Telegram WebApp.
// Схема проверки из документации Telegram: секрет = HMAC-SHA256("WebAppData",
// токен бота), подпись — HMAC-SHA256 секрета над data-check-string
// (отсортированные пары key=value без hash, через \n).
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TelegramResolver проверяет initData из заголовка X-Telegram-Init-Data.
type TelegramResolver struct {
	secret []byte
	maxAge time.Duration

	// isReviewer — проверка, модератор ли этот пользователь
	isReviewer func(userID int64) bool
}

// NewTelegramResolver создаёт стратегию Telegram WebApp.
func NewTelegramResolver(botToken string, maxAge time.Duration, isReviewer func(userID int64) bool) *TelegramResolver {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &TelegramResolver{
		secret:     mac.Sum(nil),
		maxAge:     maxAge,
		isReviewer: isReviewer,
	}
}

// Resolve реализует Resolver.
func (t *TelegramResolver) Resolve(r *http.Request) (Subject, error) {
	raw := r.Header.Get("X-Telegram-Init-Data")
	if raw == "" {
		return Subject{}, ErrNoCredentials
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return Subject{}, fmt.Errorf("битые initData: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return Subject{}, fmt.Errorf("в initData нет подписи")
	}

	if !t.verify(values, hash) {
		return Subject{}, fmt.Errorf("подпись initData не сошлась")
	}

	if t.maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return Subject{}, fmt.Errorf("некорректный auth_date: %w", err)
		}
		if time.Since(time.Unix(authDate, 0)) > t.maxAge {
			return Subject{}, fmt.Errorf("initData устарели")
		}
	}

	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return Subject{}, fmt.Errorf("в initData нет пользователя")
	}

	role := RoleMember
	if t.isReviewer != nil && t.isReviewer(user.ID) {
		role = RoleReviewer
	}
	return Subject{ID: user.ID, Role: role}, nil
}

func (t *TelegramResolver) verify(values url.Values, hash string) bool {
	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)

	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(strings.Join(pairs, "\n")))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(hash))
}
