package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"scribsy/config"
	"scribsy/internal/admin"
	"scribsy/internal/archive"
	"scribsy/internal/middleware"
	"scribsy/internal/posts"
	"scribsy/pkg/notify"
	"scribsy/pkg/session"
	"scribsy/pkg/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// shutdownTimeout: сколько ждём завершения активных запросов при остановке
const shutdownTimeout = 10 * time.Second

// Deps: всё, что нужно HTTP-слою
type Deps struct {
	Config   *config.Config
	Store    storage.PostStore
	Archiver *archive.Archiver
	Sessions session.Store
	Notifier notify.Notifier
	Log      *zap.Logger
}

// NewRouter настраивает маршруты API.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Log))
	corsCfg := cors.Config{
		AllowOrigins:  d.Config.Server.AllowedOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Admin-Token"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	// пустой список в конфиге означает «любой источник»
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	limiter := middleware.NewRateLimiter(d.Config.RateLimit.Window, d.Config.RateLimit.Max)
	adminOnly := middleware.AdminRequired(d.Sessions)

	api := r.Group("/api")
	api.Use(limiter.Middleware())

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})

	posts.SetupRoutes(api, d.Store, d.Notifier, adminOnly, d.Log)
	archive.SetupRoutes(api, d.Store, d.Archiver, adminOnly, d.Log)
	admin.SetupRoutes(api.Group("/admin"), d.Sessions, d.Config.Admin.PasswordHash, d.Config.Admin.SessionTTL, adminOnly, d.Log)

	d.Log.Info("routes initialized", zap.Int("count", len(r.Routes())))
	return r
}

// Run обслуживает HTTP до отмены ctx, затем корректно останавливает сервер.
func Run(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API ready", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("API stopped")
	return <-errCh
}
