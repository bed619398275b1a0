package archive

import (
	"net/http"

	"scribsy/internal/httputil"
	"scribsy/pkg/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ArchiveHandler struct {
	Store    storage.PostStore
	Archiver *Archiver
	Log      *zap.Logger
}

func NewHandler(store storage.PostStore, archiver *Archiver, log *zap.Logger) *ArchiveHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ArchiveHandler{Store: store, Archiver: archiver, Log: log.Named("archive-api")}
}

// ListArchives отдаёт историю архивов, новые первыми.
func (h *ArchiveHandler) ListArchives(c *gin.Context) {
	archives, err := h.Store.ListArchives(c.Request.Context())
	if err != nil {
		httputil.RespondStoreError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, archives)
}

// ArchiveNow: ручной запуск архивации. Идёт тем же путём, что и таймер,
// поэтому повторный вызов в тот же период безопасен.
func (h *ArchiveHandler) ArchiveNow(c *gin.Context) {
	res, err := h.Archiver.ArchiveNow(c.Request.Context())
	if err != nil {
		httputil.RespondStoreError(c, h.Log, err)
		return
	}

	body := gin.H{"created": res.Created}
	if res.Reason != "" {
		body["reason"] = res.Reason
	}
	if res.Batch != nil {
		body["date"] = res.Batch.Date
		body["count"] = len(res.Batch.Posts)
	}
	c.JSON(http.StatusOK, body)
}
