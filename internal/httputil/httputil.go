package httputil

import (
	"errors"
	"net/http"

	"scribsy/pkg/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RespondError отправляет сообщение об ошибке в едином формате и прекращает обработку запроса.
// Используем AbortWithStatusJSON, чтобы последующие обработчики не выполнялись, даже если забыли вернуть управление.
func RespondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// RespondStoreError переводит ошибку хранилища в HTTP-статус и пишет её в лог.
// Текст внутренней ошибки клиенту не отдаётся.
func RespondStoreError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		RespondError(c, http.StatusNotFound, "Post not found")
	case errors.Is(err, storage.ErrUnavailable):
		log.Error("store unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		RespondError(c, http.StatusServiceUnavailable, "Storage unavailable, try again later")
	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "Internal error")
	}
}
