package middleware

import (
	"net/http"
	"strings"

	"scribsy/internal/httputil"
	"scribsy/pkg/session"

	"github.com/gin-gonic/gin"
)

// SessionKey: ключ gin.Context, под которым лежит сессия администратора
const SessionKey = "adminSession"

// AdminRequired пропускает запрос только с действующим токеном администратора.
// Токен берётся из заголовка Authorization: Bearer <token> или X-Admin-Token.
func AdminRequired(sessions session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			httputil.RespondError(c, http.StatusUnauthorized, "Admin token required")
			return
		}
		sess, err := sessions.Lookup(token)
		if err != nil {
			httputil.RespondError(c, http.StatusForbidden, "Forbidden")
			return
		}
		c.Set(SessionKey, sess)
		c.Next()
	}
}

// TokenFromRequest достаёт токен администратора из заголовков.
func TokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(c.GetHeader("X-Admin-Token"))
}
