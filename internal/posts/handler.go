package posts

import (
	"context"
	"net/http"
	"strings"
	"time"

	"scribsy/internal/httputil"
	"scribsy/models"
	"scribsy/pkg/notify"
	"scribsy/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// notifyTimeout ограничивает фоновую отправку события о новом посте
const notifyTimeout = 10 * time.Second

// createPostRequest: схема тела POST /api/posts.
// Image: data URL рисунка с холста, поэтому лимит на него большой.
type createPostRequest struct {
	Type  string  `json:"type" binding:"required,oneof=text image"`
	Text  *string `json:"text" binding:"omitempty,max=500"`
	Image *string `json:"image" binding:"omitempty,max=2000000"`
	Name  string  `json:"name" binding:"max=40"`
	Mood  string  `json:"mood" binding:"max=32"`
}

type reactRequest struct {
	Emoji string `json:"emoji" binding:"required,max=16"`
}

type PostsHandler struct {
	Store    storage.PostStore
	Notifier notify.Notifier
	Log      *zap.Logger
	Now      func() time.Time
	NewID    func() string
}

func NewHandler(store storage.PostStore, notifier notify.Notifier, log *zap.Logger) *PostsHandler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PostsHandler{
		Store:    store,
		Notifier: notifier,
		Log:      log.Named("posts"),
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

// ListPosts отдаёт живую стену, новые посты первыми.
func (h *PostsHandler) ListPosts(c *gin.Context) {
	posts, err := h.Store.ListLive(c.Request.Context())
	if err != nil {
		httputil.RespondStoreError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// CreatePost проверяет тело запроса и добавляет пост в начало стены.
func (h *PostsHandler) CreatePost(c *gin.Context) {
	var request createPostRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	post, ok := h.buildPost(request)
	if !ok {
		httputil.RespondError(c, http.StatusBadRequest, "Missing post data")
		return
	}

	if err := h.Store.InsertLive(c.Request.Context(), post); err != nil {
		httputil.RespondStoreError(c, h.Log, err)
		return
	}
	h.Log.Info("post created", zap.String("id", post.ID), zap.String("type", post.Type))

	// Событие уходит в фоне: медленный брокер не должен задерживать ответ
	go func(p models.Post) {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := h.Notifier.PostCreated(ctx, p); err != nil {
			h.Log.Warn("post notification failed", zap.String("id", p.ID), zap.Error(err))
		}
	}(post.Clone())

	c.JSON(http.StatusCreated, post)
}

// buildPost приводит запрос к посту: заполнено ровно одно из text/image, согласованное с type
func (h *PostsHandler) buildPost(r createPostRequest) (models.Post, bool) {
	post := models.Post{
		ID:        h.NewID(),
		Type:      r.Type,
		Name:      strings.TrimSpace(r.Name),
		Mood:      strings.TrimSpace(r.Mood),
		CreatedAt: h.Now().UnixMilli(),
		Reactions: map[string]int{},
	}

	switch r.Type {
	case models.PostTypeText:
		if r.Text == nil || strings.TrimSpace(*r.Text) == "" {
			return models.Post{}, false
		}
		text := *r.Text
		post.Text = &text
	case models.PostTypeImage:
		if r.Image == nil || !strings.HasPrefix(*r.Image, "data:image/") {
			return models.Post{}, false
		}
		image := *r.Image
		post.Image = &image
	default:
		return models.Post{}, false
	}

	post.Normalize()
	return post, true
}

// DeletePost удаляет пост по id; отсутствие поста ошибкой не считается.
func (h *PostsHandler) DeletePost(c *gin.Context) {
	id := c.Param("id")
	if err := h.Store.RemoveLive(c.Request.Context(), id); err != nil {
		httputil.RespondStoreError(c, h.Log, err)
		return
	}
	h.Log.Info("post deleted by admin", zap.String("id", id))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// React увеличивает счётчик реакции поста.
func (h *PostsHandler) React(c *gin.Context) {
	var request reactRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Emoji) == "" {
		httputil.RespondError(c, http.StatusBadRequest, "Invalid emoji")
		return
	}

	reactions, err := h.Store.IncrementReaction(c.Request.Context(), c.Param("id"), request.Emoji)
	if err != nil {
		httputil.RespondStoreError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reactions": reactions})
}
