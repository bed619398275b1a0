package middleware

import (
	"net/http"
	"sync"
	"time"

	"scribsy/internal/httputil"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateLimitMessage совпадает с ответом прежнего сервера
const rateLimitMessage = "Too many requests — please slow down!"

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter ограничивает число запросов с одного IP: не более max за window.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time

	lastCleanup time.Time
}

func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(max)),
		burst:    max,
		idle:     3 * window,
		now:      time.Now,
	}
}

// Middleware возвращает обработчик gin, отвечающий 429 при превышении лимита.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			httputil.RespondError(c, http.StatusTooManyRequests, rateLimitMessage)
			return
		}
		c.Next()
	}
}

// Allow расходует один токен клиента ip.
func (l *RateLimiter) Allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	// старые записи вычищаются попутно, отдельная горутина не нужна
	if now.Sub(l.lastCleanup) > l.idle {
		l.cleanupLocked(now)
		l.lastCleanup = now
	}
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Cleanup удаляет клиентов, не появлявшихся дольше трёх окон.
func (l *RateLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cleanupLocked(l.now())
}

func (l *RateLimiter) cleanupLocked(now time.Time) int {
	removed := 0
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, ip)
			removed++
		}
	}
	return removed
}
