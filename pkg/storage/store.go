package storage

import (
	"context"
	"errors"
	"fmt"

	"scribsy/models"
)

var (
	// ErrNotFound возвращается, когда живого поста с указанным id нет.
	ErrNotFound = errors.New("post not found")
	// ErrUnavailable оборачивает ошибки ввода-вывода и соединения с хранилищем.
	ErrUnavailable = errors.New("store unavailable")
)

// PostStore: единый контракт хранилища стены для архиватора и HTTP-обработчиков.
// Любая изменяющая операция должна быть сохранена на диск или в БД до возврата.
type PostStore interface {
	// ListLive возвращает живые посты, самые новые первыми.
	ListLive(ctx context.Context) ([]models.Post, error)
	// InsertLive добавляет пост в начало стены.
	InsertLive(ctx context.Context, post models.Post) error
	// RemoveLive удаляет пост; отсутствие поста ошибкой не считается.
	RemoveLive(ctx context.Context, id string) error
	// IncrementReaction увеличивает счётчик emoji и возвращает обновлённые реакции.
	IncrementReaction(ctx context.Context, id, emoji string) (map[string]int, error)
	// LatestArchiveDate возвращает дату последнего архива; ok=false, если архивов нет.
	LatestArchiveDate(ctx context.Context) (date string, ok bool, err error)
	// CreateArchiveBatch добавляет архив в начало истории.
	CreateArchiveBatch(ctx context.Context, date string, posts []models.Post) error
	// ClearLive очищает стену.
	ClearLive(ctx context.Context) error
	// ListArchives возвращает историю архивов, самые новые первыми.
	ListArchives(ctx context.Context) ([]models.ArchiveBatch, error)
	// MoveToArchive атомарно создаёт архив и убирает со стены ровно переданные посты.
	// Посты, добавленные после чтения стены вызывающим, остаются живыми.
	// В архив пишутся версии постов на момент удаления, они же возвращаются.
	MoveToArchive(ctx context.Context, date string, posts []models.Post) ([]models.Post, error)
	Close() error
}

// ArchiveLocker реализуют хранилища, которые умеют сериализовать архивацию
// между процессами. unlock снимает блокировку.
type ArchiveLocker interface {
	LockArchive(ctx context.Context) (unlock func(), err error)
}

// unavailable помечает ошибку как недоступность хранилища
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// postIDs собирает множество идентификаторов постов
func postIDs(posts []models.Post) map[string]struct{} {
	ids := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		ids[p.ID] = struct{}{}
	}
	return ids
}
