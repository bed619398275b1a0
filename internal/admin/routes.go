package admin

import (
	"time"

	"scribsy/pkg/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRoutes(r *gin.RouterGroup, sessions session.Store, passwordHash string, ttl time.Duration, adminOnly gin.HandlerFunc, log *zap.Logger) {
	handler := NewHandler(sessions, passwordHash, ttl, log)
	r.POST("/login", handler.Login)
	r.POST("/logout", adminOnly, handler.Logout)
}
