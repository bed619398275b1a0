package posts

import (
	"scribsy/pkg/notify"
	"scribsy/pkg/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes регистрирует маршруты стены. adminOnly защищает удаление.
func SetupRoutes(r *gin.RouterGroup, store storage.PostStore, notifier notify.Notifier, adminOnly gin.HandlerFunc, log *zap.Logger) {
	handler := NewHandler(store, notifier, log)
	r.GET("/posts", handler.ListPosts)
	r.POST("/posts", handler.CreatePost)
	r.DELETE("/posts/:id", adminOnly, handler.DeletePost)
	r.POST("/posts/:id/react", handler.React)
}
