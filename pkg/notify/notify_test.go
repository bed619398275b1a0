package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"scribsy/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	posts    []string
	archives []string
	err      error
}

func (r *recordingNotifier) PostCreated(_ context.Context, p models.Post) error {
	r.posts = append(r.posts, p.ID)
	return r.err
}

func (r *recordingNotifier) ArchiveCreated(_ context.Context, b models.ArchiveBatch) error {
	r.archives = append(r.archives, b.Date)
	return r.err
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: boom}
	m := Multi{failing, ok}

	err := m.PostCreated(context.Background(), models.Post{ID: "a"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, ok.posts, "ошибка одного получателя не должна останавливать остальных")

	require.ErrorIs(t, m.ArchiveCreated(context.Background(), models.ArchiveBatch{Date: "d"}), boom)
	assert.Equal(t, []string{"d"}, ok.archives)

	assert.NoError(t, Multi{ok}.PostCreated(context.Background(), models.Post{ID: "b"}))
}

func TestArchiveEventOmitsPosts(t *testing.T) {
	now := time.UnixMilli(1760803200000)
	ev := newArchiveEvent(models.ArchiveBatch{Date: "2026-10-18T16:00:00.000Z", Posts: make([]models.Post, 3)}, now)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"archive.created","date":"2026-10-18T16:00:00.000Z","count":3,"time":1760803200000}`, string(raw))
}

func TestPostEventCarriesPost(t *testing.T) {
	ev := newPostEvent(models.Post{ID: "a", Type: models.PostTypeText}, time.UnixMilli(5))
	assert.Equal(t, EventPostCreated, ev.Event)
	require.NotNil(t, ev.Post)
	assert.Equal(t, "a", ev.Post.ID)
}

func TestMQTTPublishRequiresConnection(t *testing.T) {
	n := NewMQTT(MQTTConfig{Broker: "tcp://localhost:1883"}, nil)
	assert.Equal(t, DefaultTopicPrefix, n.cfg.TopicPrefix)
	assert.NotEmpty(t, n.cfg.ClientID)

	err := n.PostCreated(context.Background(), models.Post{ID: "a"})
	assert.Error(t, err)
}

// TestMQTTConnectFailureLeavesNoClient проверяет, что неудачное подключение
// останавливает фоновые попытки и не оставляет клиент для публикаций.
func TestMQTTConnectFailureLeavesNoClient(t *testing.T) {
	n := NewMQTT(MQTTConfig{Broker: "tcp://127.0.0.1:1"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.Error(t, n.Connect(ctx))
	assert.Nil(t, n.client)

	err := n.PostCreated(context.Background(), models.Post{ID: "a"})
	require.Error(t, err)
	n.Close()
}
