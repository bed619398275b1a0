package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scribsy/models"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTopicPrefix: префикс MQTT-топиков стены
const DefaultTopicPrefix = "scribsy"

const (
	EventPostCreated    = "post.created"
	EventArchiveCreated = "archive.created"
)

// MQTTConfig: параметры подключения к брокеру
type MQTTConfig struct {
	Broker      string // например tcp://localhost:1883
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	UseTLS      bool
}

// Event: сообщение, публикуемое в брокер.
// Для архивов отправляется только дата и число постов: рисунки слишком тяжёлые.
type Event struct {
	Event string       `json:"event"`
	Post  *models.Post `json:"post,omitempty"`
	Date  string       `json:"date,omitempty"`
	Count int          `json:"count,omitempty"`
	Time  int64        `json:"time"`
}

// MQTTNotifier публикует события стены в топики {prefix}/posts и {prefix}/archives.
type MQTTNotifier struct {
	cfg    MQTTConfig
	client paho.Client
	log    *zap.Logger
}

var _ Notifier = (*MQTTNotifier)(nil)

func NewMQTT(cfg MQTTConfig, logger *zap.Logger) *MQTTNotifier {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "scribsy-" + uuid.NewString()[:8]
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTNotifier{cfg: cfg, log: logger.Named("mqtt")}
}

// Connect подключается к брокеру; дальше клиент переподключается сам.
func (n *MQTTNotifier) Connect(ctx context.Context) error {
	if n.cfg.Broker == "" {
		return errors.New("mqtt broker URL is required")
	}

	opts := paho.NewClientOptions().
		AddBroker(n.cfg.Broker).
		SetClientID(n.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetCleanSession(true).
		SetOnConnectHandler(func(paho.Client) {
			n.log.Info("connected to broker", zap.String("broker", n.cfg.Broker))
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			n.log.Warn("connection lost", zap.Error(err))
		})

	if n.cfg.Username != "" {
		opts.SetUsername(n.cfg.Username)
	}
	if n.cfg.Password != "" {
		opts.SetPassword(n.cfg.Password)
	}
	if n.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	// SetConnectRetry продолжает попытки в фоне, поэтому при неудаче клиент
	// отключается явно, иначе он переживёт отказ от уведомлений
	client := paho.NewClient(opts)
	token := client.Connect()
	if !waitToken(ctx, token, 30*time.Second) {
		client.Disconnect(0)
		return errors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("connecting to broker: %w", err)
	}
	n.client = client
	return nil
}

func (n *MQTTNotifier) PostCreated(ctx context.Context, post models.Post) error {
	return n.publish(ctx, n.cfg.TopicPrefix+"/posts", newPostEvent(post, time.Now()))
}

func (n *MQTTNotifier) ArchiveCreated(ctx context.Context, batch models.ArchiveBatch) error {
	return n.publish(ctx, n.cfg.TopicPrefix+"/archives", newArchiveEvent(batch, time.Now()))
}

// Close отключается от брокера, давая секунду на отправку очереди.
func (n *MQTTNotifier) Close() {
	if n.client != nil {
		n.client.Disconnect(1000)
	}
}

func (n *MQTTNotifier) publish(ctx context.Context, topic string, ev Event) error {
	if n.client == nil || !n.client.IsConnected() {
		return errors.New("mqtt not connected")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	token := n.client.Publish(topic, 1, false, payload)
	if !waitToken(ctx, token, 10*time.Second) {
		return fmt.Errorf("timeout publishing to %s", topic)
	}
	return token.Error()
}

func newPostEvent(post models.Post, now time.Time) Event {
	return Event{Event: EventPostCreated, Post: &post, Time: now.UnixMilli()}
}

func newArchiveEvent(batch models.ArchiveBatch, now time.Time) Event {
	return Event{Event: EventArchiveCreated, Date: batch.Date, Count: len(batch.Posts), Time: now.UnixMilli()}
}

// waitToken ждёт токен paho не дольше timeout и не дольше жизни ctx
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
