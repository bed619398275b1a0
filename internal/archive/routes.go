package archive

import (
	"scribsy/pkg/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes регистрирует историю архивов и ручной запуск архивации.
func SetupRoutes(r *gin.RouterGroup, store storage.PostStore, archiver *Archiver, adminOnly gin.HandlerFunc, log *zap.Logger) {
	handler := NewHandler(store, archiver, log)
	r.GET("/archives", handler.ListArchives)
	r.POST("/archive-now", adminOnly, handler.ArchiveNow)
}
