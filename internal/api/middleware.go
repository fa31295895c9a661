// middleware.go — request-id, access-лог и аутентификация запросов.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/auth"
)

const subjectKey = "auth.subject"

// RequestID присваивает каждому запросу идентификатор и отдаёт его
// в заголовке ответа.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// AccessLog пишет строку лога на каждый запрос.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Info("api request")
	}
}

// Authenticated требует учётные данные любой из стратегий резолвера.
// Субъект кладётся в контекст запроса.
func Authenticated(resolver auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := resolver.Resolve(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется аутентификация"})
			return
		}
		c.Set(subjectKey, subject)
		c.Next()
	}
}

// currentSubject достаёт аутентифицированного субъекта из контекста.
func currentSubject(c *gin.Context) auth.Subject {
	if v, ok := c.Get(subjectKey); ok {
		if subject, ok := v.(auth.Subject); ok {
			return subject
		}
	}
	return auth.Subject{}
}
