package notify

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"unicode/utf8"

	"scribsy/models"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

// quoteLimit: сколько символов лучшего поста попадает в анонс
const quoteLimit = 200

// TelegramConfig: параметры бота, публикующего анонсы архивов
type TelegramConfig struct {
	AppID       int
	AppHash     string
	BotToken    string
	Channel     string // @name, name или https://t.me/name
	SessionPath string // пусто: сессия только в памяти
	Proxy       string // host:port SOCKS5, пусто: без прокси
	ProxyUser   string
	ProxyPass   string
}

// TelegramNotifier публикует в канал короткий анонс каждого нового архива.
// Новые посты в Telegram не дублируются.
type TelegramNotifier struct {
	cfg TelegramConfig
	log *zap.Logger
}

var _ Notifier = (*TelegramNotifier)(nil)

func NewTelegram(cfg TelegramConfig, logger *zap.Logger) (*TelegramNotifier, error) {
	if cfg.AppID == 0 || cfg.AppHash == "" || cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram app id, app hash and bot token are required")
	}
	if _, err := ExtractUsername(cfg.Channel); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{cfg: cfg, log: logger.Named("telegram")}, nil
}

func (n *TelegramNotifier) PostCreated(context.Context, models.Post) error { return nil }

func (n *TelegramNotifier) ArchiveCreated(ctx context.Context, batch models.ArchiveBatch) error {
	username, err := ExtractUsername(n.cfg.Channel)
	if err != nil {
		return err
	}
	client, err := n.newClient()
	if err != nil {
		return err
	}
	text := ArchiveAnnouncement(batch)

	return client.Run(ctx, func(ctx context.Context) error {
		if _, err := client.Auth().Bot(ctx, n.cfg.BotToken); err != nil {
			return fmt.Errorf("bot auth: %w", err)
		}
		api := tg.NewClient(client)

		resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
		if err != nil {
			return fmt.Errorf("не удалось распознать канал: %w", err)
		}
		channel, err := findChannel(resolved.GetChats())
		if err != nil {
			return err
		}

		_, err = api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer: &tg.InputPeerChannel{
				ChannelID:  channel.ID,
				AccessHash: channel.AccessHash,
			},
			Message:  text,
			RandomID: rand.Int63(),
		})
		if err != nil {
			return fmt.Errorf("send announcement: %w", err)
		}
		n.log.Info("archive announced", zap.String("channel", username), zap.String("date", batch.Date))
		return nil
	})
}

// newClient создаёт клиент Telegram, при необходимости через SOCKS5-прокси
func (n *TelegramNotifier) newClient() (*telegram.Client, error) {
	var storage session.Storage = &session.StorageMemory{}
	if n.cfg.SessionPath != "" {
		storage = &session.FileStorage{Path: n.cfg.SessionPath}
	}
	opts := telegram.Options{SessionStorage: storage}

	if n.cfg.Proxy != "" {
		var auth *proxy.Auth
		if n.cfg.ProxyUser != "" || n.cfg.ProxyPass != "" {
			auth = &proxy.Auth{User: n.cfg.ProxyUser, Password: n.cfg.ProxyPass}
		}
		d, err := proxy.SOCKS5("tcp", n.cfg.Proxy, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("proxy dialer: %w", err)
		}
		dc, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("proxy dialer missing context")
		}
		opts.Resolver = dcs.Plain(dcs.PlainOptions{Dial: dc.DialContext})
	}
	return telegram.NewClient(n.cfg.AppID, n.cfg.AppHash, opts), nil
}

// ExtractUsername достаёт имя канала из @name, name или ссылки https://t.me/name.
func ExtractUsername(channel string) (string, error) {
	name := strings.TrimSpace(channel)
	name = strings.TrimPrefix(name, "https://t.me/")
	name = strings.TrimPrefix(name, "@")
	name = strings.TrimSuffix(name, "/")
	if name == "" || strings.ContainsAny(name, "/ ") {
		return "", fmt.Errorf("invalid telegram channel %q", channel)
	}
	return name, nil
}

// ArchiveAnnouncement формирует текст анонса: дата, число постов
// и цитата самого популярного текстового поста, если он есть.
func ArchiveAnnouncement(batch models.ArchiveBatch) string {
	day := batch.Date
	if len(day) >= 10 {
		day = day[:10]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📦 Scribsy wall archived on %s: %d post", day, len(batch.Posts))
	if len(batch.Posts) != 1 {
		b.WriteString("s")
	}

	if top, total := topTextPost(batch.Posts); top != nil {
		quote := *top.Text
		if utf8.RuneCountInString(quote) > quoteLimit {
			quote = string([]rune(quote)[:quoteLimit]) + "…"
		}
		fmt.Fprintf(&b, "\n\nMost loved (%d reactions), by %s:\n«%s»", total, top.Name, quote)
	}
	return b.String()
}

// topTextPost ищет текстовый пост с наибольшим числом реакций; при равенстве: более новый
func topTextPost(posts []models.Post) (*models.Post, int) {
	var (
		best      *models.Post
		bestTotal int
	)
	for i := range posts {
		p := &posts[i]
		if p.Text == nil {
			continue
		}
		total := 0
		for _, c := range p.Reactions {
			total += c
		}
		if total > bestTotal {
			best, bestTotal = p, total
		}
	}
	return best, bestTotal
}

// findChannel находит канал в списке чатов
func findChannel(chats []tg.ChatClass) (*tg.Channel, error) {
	for _, peer := range chats {
		if ch, ok := peer.(*tg.Channel); ok {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("channel not found")
}
