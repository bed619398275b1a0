package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scribsy/pkg/session"

	"github.com/gin-gonic/gin"
)

// TestRateLimiterPerIP проверяет, что лимит считается отдельно для каждого IP и восстанавливается со временем.
func TestRateLimiterPerIP(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(10*time.Second, 2)
	l.now = func() time.Time { return now }

	if !l.Allow("1.1.1.1") || !l.Allow("1.1.1.1") {
		t.Fatalf("первые два запроса должны проходить")
	}
	if l.Allow("1.1.1.1") {
		t.Fatalf("третий запрос в окне должен отклоняться")
	}
	if !l.Allow("2.2.2.2") {
		t.Fatalf("другой IP не должен страдать от чужого лимита")
	}

	now = now.Add(5 * time.Second)
	if !l.Allow("1.1.1.1") {
		t.Fatalf("через половину окна должен восстановиться один токен")
	}
}

// TestRateLimiterCleanup проверяет удаление давно неактивных клиентов.
func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(10*time.Second, 2)
	l.now = func() time.Time { return now }

	l.Allow("1.1.1.1")
	now = now.Add(5 * time.Second)
	l.Allow("2.2.2.2")

	now = now.Add(26 * time.Second)
	if removed := l.Cleanup(); removed != 1 {
		t.Fatalf("ожидалось удаление 1 клиента, удалено %d", removed)
	}
}

// TestTokenFromRequest проверяет оба поддерживаемых заголовка.
func TestTokenFromRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := map[string]http.Header{
		"bearer": {"Authorization": []string{"Bearer abc"}},
		"header": {"X-Admin-Token": []string{" abc "}},
	}
	for name, h := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header = h
		if got := TokenFromRequest(c); got != "abc" {
			t.Fatalf("%s: ожидался токен abc, получено %q", name, got)
		}
	}
}

// TestAdminRequiredSetsSession проверяет, что действующая сессия попадает в контекст.
func TestAdminRequiredSetsSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := session.NewMemoryStore()
	sess, err := sessions.Create(time.Hour)
	if err != nil {
		t.Fatalf("не удалось создать сессию: %v", err)
	}

	r := gin.New()
	r.GET("/admin", AdminRequired(sessions), func(c *gin.Context) {
		if _, ok := c.Get(SessionKey); !ok {
			t.Errorf("сессия не сохранена в контексте")
		}
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("ожидался 204, получено %d", w.Code)
	}
}
