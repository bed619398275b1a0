package archive

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule: 16:00 каждый день в зоне архиватора
const DefaultSchedule = "0 16 * * *"

// runTimeout ограничивает одну архивацию по таймеру
const runTimeout = 2 * time.Minute

// Scheduler запускает архиватор по cron-расписанию.
// Ошибки только логируются: повторную попытку даст следующий тик или ручной запуск.
type Scheduler struct {
	cron     *cron.Cron
	archiver *Archiver
	log      *zap.Logger
}

// ValidateSchedule проверяет стандартное пятипольное cron-выражение.
func ValidateSchedule(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

func NewScheduler(archiver *Archiver, spec string, loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		archiver: archiver,
		log:      logger.Named("scheduler"),
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

// Start запускает планировщик в отдельной горутине.
func (s *Scheduler) Start() {
	s.cron.Start()
	if entries := s.cron.Entries(); len(entries) > 0 {
		s.log.Info("archive scheduler started", zap.Time("next", entries[0].Next))
	}
}

// Stop останавливает планировщик и ждёт завершения текущей архивации.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("archive scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	res, err := s.archiver.ArchiveNow(ctx)
	if err != nil {
		s.log.Error("scheduled archive failed", zap.Error(err))
		return
	}
	s.log.Info("scheduled archive finished", zap.Bool("created", res.Created), zap.String("reason", string(res.Reason)))
}
