package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scribsy/models"
	"scribsy/pkg/notify"
	"scribsy/pkg/storage"

	"go.uber.org/zap"
)

// isoMillis повторяет формат Date.toISOString: миллисекунды и зона, для UTC: "Z"
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Reason объясняет, почему архив не был создан
type Reason string

const (
	ReasonAlreadyArchived Reason = "already-archived"
	ReasonEmpty           Reason = "empty"
)

// Result: итог одного вызова ArchiveNow
type Result struct {
	Created bool                 `json:"created"`
	Reason  Reason               `json:"reason,omitempty"`
	Batch   *models.ArchiveBatch `json:"-"`
}

// Options настраивают архиватор. Нулевые значения заменяются умолчаниями:
// UTC, ежедневный период, time.Now и Nop-уведомления.
type Options struct {
	Location *time.Location
	Period   Period
	Now      func() time.Time
	Notifier notify.Notifier
	Logger   *zap.Logger
}

// Archiver переносит живые посты в архив не чаще одного раза за период.
// Собственного состояния у него нет: «уже заархивировано» определяется
// по дате последнего архива в хранилище при каждом вызове.
type Archiver struct {
	store    storage.PostStore
	loc      *time.Location
	period   Period
	now      func() time.Time
	notifier notify.Notifier
	log      *zap.Logger

	// mu сериализует запуски по таймеру и ручные запуски
	mu sync.Mutex
}

func New(store storage.PostStore, opts Options) *Archiver {
	a := &Archiver{
		store:    store,
		loc:      opts.Location,
		period:   opts.Period,
		now:      opts.Now,
		notifier: opts.Notifier,
		log:      opts.Logger,
	}
	if a.loc == nil {
		a.loc = time.UTC
	}
	if a.period == "" {
		a.period = PeriodDaily
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.notifier == nil {
		a.notifier = notify.Nop{}
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	a.log = a.log.Named("archiver")
	return a
}

// ArchiveNow выполняет одну попытку архивации.
// Ошибки хранилища возвращаются как есть, без повторов: следующий тик
// или ручной запуск безопасно повторит попытку, т.к. частичной записи не бывает.
// Уведомление отправляется уже после снятия блокировки.
func (a *Archiver) ArchiveNow(ctx context.Context) (Result, error) {
	res, err := a.archive(ctx)
	if err != nil || !res.Created {
		return res, err
	}

	// Ошибка уведомления не отменяет уже сохранённый архив
	if err := a.notifier.ArchiveCreated(ctx, *res.Batch); err != nil {
		a.log.Warn("archive notification failed", zap.Error(err))
	}
	return res, nil
}

// archive проверяет период и переносит стену в архив под блокировками
// процесса и, если хранилище умеет, между процессами
func (a *Archiver) archive(ctx context.Context) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if locker, ok := a.store.(storage.ArchiveLocker); ok {
		unlock, err := locker.LockArchive(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("lock archive: %w", err)
		}
		defer unlock()
	}

	now := a.now().In(a.loc)
	current := a.period.Key(now)

	latest, ok, err := a.store.LatestArchiveDate(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read latest archive date: %w", err)
	}
	if ok {
		key, err := a.period.KeyOfDate(latest, a.loc)
		if err != nil {
			return Result{}, fmt.Errorf("latest archive date %q: %w", latest, err)
		}
		if key == current {
			a.log.Info("already archived", zap.String("period", current), zap.String("latest", latest))
			return Result{Reason: ReasonAlreadyArchived}, nil
		}
	}

	posts, err := a.store.ListLive(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read live posts: %w", err)
	}
	if len(posts) == 0 {
		a.log.Info("nothing to archive", zap.String("period", current))
		return Result{Reason: ReasonEmpty}, nil
	}

	date := now.Format(isoMillis)
	archived, err := a.store.MoveToArchive(ctx, date, posts)
	if err != nil {
		return Result{}, fmt.Errorf("move posts to archive: %w", err)
	}

	batch := models.ArchiveBatch{Date: date, Posts: archived}
	a.log.Info("archived posts", zap.String("date", date), zap.Int("count", len(archived)))
	return Result{Created: true, Batch: &batch}, nil
}
