package admin

import (
	"net/http"
	"time"

	"scribsy/internal/httputil"
	"scribsy/internal/middleware"
	"scribsy/pkg/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Password string `json:"password" binding:"required,max=72"`
}

// AdminHandler выдаёт и отзывает токены администратора.
type AdminHandler struct {
	Sessions     session.Store
	PasswordHash []byte
	TTL          time.Duration
	Log          *zap.Logger
}

func NewHandler(sessions session.Store, passwordHash string, ttl time.Duration, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{
		Sessions:     sessions,
		PasswordHash: []byte(passwordHash),
		TTL:          ttl,
		Log:          log.Named("admin"),
	}
}

// Login сверяет пароль с bcrypt-хешем из конфигурации и создаёт сессию.
func (h *AdminHandler) Login(c *gin.Context) {
	if len(h.PasswordHash) == 0 {
		httputil.RespondError(c, http.StatusServiceUnavailable, "Admin login is disabled")
		return
	}

	var request loginRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := bcrypt.CompareHashAndPassword(h.PasswordHash, []byte(request.Password)); err != nil {
		// сам пароль в лог не пишем
		h.Log.Warn("admin login failed", zap.String("ip", c.ClientIP()))
		httputil.RespondError(c, http.StatusForbidden, "Forbidden")
		return
	}

	sess, err := h.Sessions.Create(h.TTL)
	if err != nil {
		h.Log.Error("create session", zap.Error(err))
		httputil.RespondError(c, http.StatusInternalServerError, "Internal error")
		return
	}
	h.Log.Info("admin logged in", zap.String("ip", c.ClientIP()), zap.Time("expires", sess.ExpiresAt))
	c.JSON(http.StatusOK, sess)
}

// Logout отзывает текущий токен.
func (h *AdminHandler) Logout(c *gin.Context) {
	h.Sessions.Revoke(middleware.TokenFromRequest(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
