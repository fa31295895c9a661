// errors.go — перевод категорий доменных ошибок в HTTP-статусы.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
)

// writeError отвечает статусом по категории ошибки. Внутренние ошибки
// логируются, наружу их текст не уходит.
func writeError(c *gin.Context, err error) {
	var status int
	switch common.Kind(err) {
	case common.ErrNotFound:
		status = http.StatusNotFound
	case common.ErrConflict:
		status = http.StatusConflict
	case common.ErrBadRequest:
		status = http.StatusBadRequest
	case common.ErrForbidden:
		status = http.StatusForbidden
	default:
		log.WithField("request_id", c.GetString("request_id")).Errorf("внутренняя ошибка API: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// writeBindError — ошибка биндинга/валидации тела или query-параметров.
func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный запрос: " + err.Error()})
}
