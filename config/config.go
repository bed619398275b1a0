package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // зона архиватора не должна зависеть от базы зон хоста

	"gopkg.in/yaml.v3"
)

// Хранилища стены
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config содержит все параметры сервиса.
// Порядок применения: значения по умолчанию, затем YAML-файл, затем переменные окружения.
type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		Backend     string `yaml:"backend"`
		FilePath    string `yaml:"file_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"storage"`

	Archive struct {
		Schedule string `yaml:"schedule"`
		Timezone string `yaml:"timezone"`
		Period   string `yaml:"period"`
	} `yaml:"archive"`

	Admin struct {
		PasswordHash string        `yaml:"password_hash"`
		SessionTTL   time.Duration `yaml:"session_ttl"`
	} `yaml:"admin"`

	RateLimit struct {
		Window time.Duration `yaml:"window"`
		Max    int           `yaml:"max"`
	} `yaml:"rate_limit"`

	MQTT struct {
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
		UseTLS      bool   `yaml:"use_tls"`
	} `yaml:"mqtt"`

	Telegram struct {
		AppID       int    `yaml:"app_id"`
		AppHash     string `yaml:"app_hash"`
		BotToken    string `yaml:"bot_token"`
		Channel     string `yaml:"channel"`
		SessionPath string `yaml:"session_path"`
		Proxy       string `yaml:"proxy"`
		ProxyUser   string `yaml:"proxy_user"`
		ProxyPass   string `yaml:"proxy_pass"`
	} `yaml:"telegram"`
}

// Default возвращает конфигурацию для локального запуска.
// Расписание и окно лимита повторяют прежний сервер: 16:00 и 10 запросов за 10 секунд.
func Default() *Config {
	c := &Config{}
	c.Server.Port = "4000"
	c.Server.AllowedOrigins = []string{"http://localhost:5173", "https://scribsy.io"}
	c.Storage.Backend = BackendFile
	c.Storage.FilePath = "db.json"
	c.Archive.Schedule = "0 16 * * *"
	c.Archive.Timezone = "UTC"
	c.Archive.Period = "daily"
	c.Admin.SessionTTL = 12 * time.Hour
	c.RateLimit.Window = 10 * time.Second
	c.RateLimit.Max = 10
	return c
}

// Load читает YAML-файл (если путь задан) и накладывает переменные окружения.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv накладывает переменные SCRIBSY_* и PORT
func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Port, "SCRIBSY_PORT")
	if v, ok := os.LookupEnv("SCRIBSY_ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}
	setString(&c.Storage.Backend, "SCRIBSY_STORAGE")
	setString(&c.Storage.FilePath, "SCRIBSY_DB_FILE")
	setString(&c.Storage.PostgresDSN, "SCRIBSY_POSTGRES_DSN")
	setString(&c.Archive.Schedule, "SCRIBSY_ARCHIVE_SCHEDULE")
	setString(&c.Archive.Timezone, "SCRIBSY_ARCHIVE_TZ")
	setString(&c.Archive.Period, "SCRIBSY_ARCHIVE_PERIOD")
	setString(&c.Admin.PasswordHash, "SCRIBSY_ADMIN_PASSWORD_HASH")
	setString(&c.MQTT.Broker, "SCRIBSY_MQTT_BROKER")
	setString(&c.MQTT.Username, "SCRIBSY_MQTT_USERNAME")
	setString(&c.MQTT.Password, "SCRIBSY_MQTT_PASSWORD")
	setString(&c.Telegram.AppHash, "SCRIBSY_TELEGRAM_APP_HASH")
	setString(&c.Telegram.BotToken, "SCRIBSY_TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.Channel, "SCRIBSY_TELEGRAM_CHANNEL")

	if v, ok := os.LookupEnv("SCRIBSY_TELEGRAM_APP_ID"); ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCRIBSY_TELEGRAM_APP_ID: %w", err)
		}
		c.Telegram.AppID = id
	}
	if v, ok := os.LookupEnv("SCRIBSY_ADMIN_SESSION_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SCRIBSY_ADMIN_SESSION_TTL: %w", err)
		}
		c.Admin.SessionTTL = d
	}
	if v, ok := os.LookupEnv("SCRIBSY_RATE_LIMIT_MAX"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCRIBSY_RATE_LIMIT_MAX: %w", err)
		}
		c.RateLimit.Max = n
	}
	return nil
}

// Location возвращает опорную зону архиватора.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Archive.Timezone)
}

// Validate проверяет значения, которые нельзя исправить умолчанием.
// Расписание и период проверяются в пакете archive при сборке сервиса.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.FilePath == "" {
			errs = append(errs, errors.New("storage.file_path is required for file backend"))
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("archive.timezone: %w", err))
	}
	if c.Admin.SessionTTL <= 0 {
		errs = append(errs, errors.New("admin.session_ttl must be positive"))
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit window and max must be positive"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
