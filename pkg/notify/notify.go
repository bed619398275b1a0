// Package notify рассылает события стены во внешние каналы:
// MQTT-брокер для живых клиентов и Telegram-канал для анонсов архивов.
package notify

import (
	"context"
	"errors"

	"scribsy/models"
)

// Notifier получает события стены. Ошибки уведомлений не должны
// влиять на сохранённое состояние: вызывающий только логирует их.
type Notifier interface {
	PostCreated(ctx context.Context, post models.Post) error
	ArchiveCreated(ctx context.Context, batch models.ArchiveBatch) error
}

// Nop ничего не отправляет
type Nop struct{}

func (Nop) PostCreated(context.Context, models.Post) error            { return nil }
func (Nop) ArchiveCreated(context.Context, models.ArchiveBatch) error { return nil }

// Multi отправляет событие всем получателям и объединяет ошибки.
type Multi []Notifier

func (m Multi) PostCreated(ctx context.Context, post models.Post) error {
	var errs []error
	for _, n := range m {
		if err := n.PostCreated(ctx, post); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) ArchiveCreated(ctx context.Context, batch models.ArchiveBatch) error {
	var errs []error
	for _, n := range m {
		if err := n.ArchiveCreated(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
