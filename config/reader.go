package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
}

type ConfigSchema struct {
	Databases struct {
		Master   DBConfig   `yaml:"master"`
		Replicas []DBConfig `yaml:"replicas"`
		// Путь к файлу SQLite, если задан - используется вместо PostgreSQL
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"db"`
	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Events struct {
		// rabbitmq | kafka | none
		Driver   string   `yaml:"driver"`
		RabbitMQ string   `yaml:"rabbitmq_url"`
		Exchange string   `yaml:"exchange"`
		Queue    string   `yaml:"queue"`
		Brokers  []string `yaml:"kafka_brokers"`
		Topic    string   `yaml:"kafka_topic"`
	} `yaml:"events"`
	Backend struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"backend"`
	Logs struct {
		Level       string `yaml:"level"`
		Environment string `yaml:"environment"`
	} `yaml:"logs"`
	Tracking TrackingConfig `yaml:"tracking"`
	Reaper   ReaperConfig   `yaml:"reaper"`
}

// TrackingConfig - параметры приема координат и определения близости
type TrackingConfig struct {
	MinAccuracyMeters       float64       `yaml:"min_accuracy_m"`
	RateLimitInterval       time.Duration `yaml:"rate_limit_interval"`
	RateLimitDistanceMeters float64       `yaml:"rate_limit_distance_m"`
	EnterThresholdMeters    float64       `yaml:"enter_threshold_m"`
	ExitThresholdMeters     float64       `yaml:"exit_threshold_m"`
	StalenessWindow         time.Duration `yaml:"staleness_window"`
	StoreTimeout            time.Duration `yaml:"store_timeout"`
	UpsertMaxElapsed        time.Duration `yaml:"upsert_max_elapsed"`
	// Насколько recorded_at может опережать часы сервера
	MaxClockSkew time.Duration `yaml:"max_clock_skew"`
	QueueWorkers            int           `yaml:"queue_workers"`
}

type ReaperConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	MaxInactivity time.Duration `yaml:"max_inactivity"`
}

var AppConfig *ConfigSchema

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *ConfigSchema {
	c := &ConfigSchema{}
	c.applyDefaults()
	return c
}

func (c *ConfigSchema) applyDefaults() {
	if c.Databases.Master.Port == 0 {
		c.Databases.Master.Port = 5432
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "session_events"
	}
	if c.Events.Queue == "" {
		c.Events.Queue = "session_push_queue"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "time-sessions"
	}
	if c.Backend.Port == 0 {
		c.Backend.Port = 8080
	}
	if c.Logs.Level == "" {
		c.Logs.Level = "info"
	}

	t := &c.Tracking
	if t.MinAccuracyMeters == 0 {
		t.MinAccuracyMeters = 100
	}
	if t.RateLimitInterval == 0 {
		t.RateLimitInterval = 120 * time.Second
	}
	if t.RateLimitDistanceMeters == 0 {
		t.RateLimitDistanceMeters = 5
	}
	if t.EnterThresholdMeters == 0 {
		t.EnterThresholdMeters = 50
	}
	if t.ExitThresholdMeters == 0 {
		t.ExitThresholdMeters = t.EnterThresholdMeters + 10
	}
	if t.StalenessWindow == 0 {
		t.StalenessWindow = 3 * time.Minute
	}
	if t.StoreTimeout == 0 {
		t.StoreTimeout = 5 * time.Second
	}
	if t.UpsertMaxElapsed == 0 {
		t.UpsertMaxElapsed = 10 * time.Second
	}
	if t.MaxClockSkew == 0 {
		t.MaxClockSkew = 30 * time.Second
	}
	if t.QueueWorkers == 0 {
		t.QueueWorkers = 5
	}

	r := &c.Reaper
	if r.Interval == 0 {
		r.Interval = 5 * time.Minute
	}
	if r.MaxInactivity == 0 {
		r.MaxInactivity = 3 * time.Minute
	}
}

// Validate проверяет согласованность параметров
func (c *ConfigSchema) Validate() error {
	t := c.Tracking
	if t.EnterThresholdMeters <= 0 {
		return fmt.Errorf("tracking.enter_threshold_m must be positive")
	}
	if t.ExitThresholdMeters < t.EnterThresholdMeters {
		return fmt.Errorf("tracking.exit_threshold_m (%.1f) must be >= enter_threshold_m (%.1f)",
			t.ExitThresholdMeters, t.EnterThresholdMeters)
	}
	if t.MinAccuracyMeters <= 0 {
		return fmt.Errorf("tracking.min_accuracy_m must be positive")
	}
	if c.Reaper.Interval <= 0 || c.Reaper.MaxInactivity <= 0 {
		return fmt.Errorf("reaper.interval and reaper.max_inactivity must be positive")
	}
	switch c.Events.Driver {
	case "none", "rabbitmq", "kafka":
	default:
		return fmt.Errorf("unknown events.driver %q", c.Events.Driver)
	}
	if c.Events.Driver == "kafka" && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events.kafka_brokers is required for kafka driver")
	}
	return nil
}

// LoadConfig читает yaml, затем .env и переменные окружения поверх файла
func LoadConfig(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	conf, err := Parse(data)
	if err != nil {
		return err
	}
	AppConfig = conf
	return nil
}

// Parse разбирает yaml и применяет переопределения из окружения
func Parse(data []byte) (*ConfigSchema, error) {
	conf := &ConfigSchema{}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, err
	}

	// .env необязателен
	_ = godotenv.Load()
	applyEnv(conf)
	conf.applyDefaults()

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func applyEnv(c *ConfigSchema) {
	setString(&c.Databases.Master.Host, "DB_HOST")
	setInt(&c.Databases.Master.Port, "DB_PORT")
	setString(&c.Databases.Master.User, "DB_USER")
	setString(&c.Databases.Master.Password, "DB_PASSWORD")
	setString(&c.Databases.Master.DBName, "DB_NAME")
	setString(&c.Databases.SQLitePath, "SQLITE_PATH")
	setString(&c.Redis.Host, "REDIS_HOST")
	setInt(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Events.Driver, "EVENTS_DRIVER")
	setString(&c.Events.RabbitMQ, "RABBITMQ_URL")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Brokers = strings.Split(v, ",")
	}
	setString(&c.Logs.Level, "LOG_LEVEL")
	setString(&c.Logs.Environment, "APP_ENV")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
