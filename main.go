package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scribsy/config"
	"scribsy/internal/archive"
	"scribsy/internal/server"
	"scribsy/pkg/notify"
	"scribsy/pkg/session"
	"scribsy/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

var (
	// Глобальные флаги
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "scribsy",
	Short:         "Scribsy: анонимная стена с ежедневной архивацией",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить API и планировщик архивации",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Однократно заархивировать стену (ручной запуск)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runArchive(cmd.Context())
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Получить bcrypt-хеш пароля администратора для admin.password_hash",
	Args:  cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "путь к YAML-конфигурации")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "подробный лог")
	rootCmd.AddCommand(serveCmd, archiveCmd, hashPasswordCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app: собранные компоненты сервиса
type app struct {
	store     storage.PostStore
	archiver  *archive.Archiver
	notifier  notify.Notifier
	loc       *time.Location
	closeFunc []func()
}

func (a *app) close() {
	for i := len(a.closeFunc) - 1; i >= 0; i-- {
		a.closeFunc[i]()
	}
}

// buildApp собирает хранилище, уведомления и архиватор по конфигурации
func buildApp(ctx context.Context) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	period, err := archive.ParsePeriod(cfg.Archive.Period)
	if err != nil {
		return nil, err
	}
	if err := archive.ValidateSchedule(cfg.Archive.Schedule); err != nil {
		return nil, fmt.Errorf("archive.schedule: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{loc: loc}

	a.store, err = buildStore(ctx)
	if err != nil {
		return nil, err
	}
	a.closeFunc = append(a.closeFunc, func() {
		if err := a.store.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	})

	a.notifier = buildNotifier(ctx, a)
	a.archiver = archive.New(a.store, archive.Options{
		Location: loc,
		Period:   period,
		Notifier: a.notifier,
		Logger:   logger,
	})
	return a, nil
}

func buildStore(ctx context.Context) (storage.PostStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		conn, err := storage.OpenPostgres(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		pg := storage.NewPostgresStore(conn, logger)
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Info("using postgres store")
		return pg, nil
	default:
		fs, err := storage.NewFileStore(cfg.Storage.FilePath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using file store", zap.String("path", cfg.Storage.FilePath))
		return fs, nil
	}
}

// buildNotifier подключает только настроенные каналы; сбой подключения не мешает старту
func buildNotifier(ctx context.Context, a *app) notify.Notifier {
	var notifiers notify.Multi

	if cfg.MQTT.Broker != "" {
		m := notify.NewMQTT(notify.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			UseTLS:      cfg.MQTT.UseTLS,
		}, logger)
		if err := m.Connect(ctx); err != nil {
			logger.Warn("mqtt notifications disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, m)
			a.closeFunc = append(a.closeFunc, m.Close)
		}
	}

	if cfg.Telegram.BotToken != "" {
		tgNotifier, err := notify.NewTelegram(notify.TelegramConfig{
			AppID:       cfg.Telegram.AppID,
			AppHash:     cfg.Telegram.AppHash,
			BotToken:    cfg.Telegram.BotToken,
			Channel:     cfg.Telegram.Channel,
			SessionPath: cfg.Telegram.SessionPath,
			Proxy:       cfg.Telegram.Proxy,
			ProxyUser:   cfg.Telegram.ProxyUser,
			ProxyPass:   cfg.Telegram.ProxyPass,
		}, logger)
		if err != nil {
			logger.Warn("telegram announcements disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, tgNotifier)
		}
	}

	if len(notifiers) == 0 {
		return notify.Nop{}
	}
	return notifiers
}

func runServe(ctx context.Context) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sessions := session.NewMemoryStore()
	sessions.StartJanitor(time.Minute)
	defer sessions.Close()

	scheduler, err := archive.NewScheduler(a.archiver, cfg.Archive.Schedule, a.loc, logger)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(server.Deps{
		Config:   cfg,
		Store:    a.store,
		Archiver: a.archiver,
		Sessions: sessions,
		Notifier: a.notifier,
		Log:      logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, ":"+cfg.Server.Port, router, logger)
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return scheduler.Stop(stopCtx)
	})
	return g.Wait()
}

func runArchive(ctx context.Context) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.archiver.ArchiveNow(ctx)
	if err != nil {
		return err
	}
	out := map[string]any{"created": res.Created}
	if res.Reason != "" {
		out["reason"] = res.Reason
	}
	if res.Batch != nil {
		out["date"] = res.Batch.Date
		out["count"] = len(res.Batch.Posts)
	}
	return json.NewEncoder(os.Stdout).Encode(out)
}
