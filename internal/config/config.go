package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vyvoz/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	LedgerDriverFile   = "file"
	LedgerDriverSQLite = "sqlite"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Redis     RedisConfig     `yaml:"redis"`
	Backup    BackupConfig    `yaml:"backup"`
	Logging   LoggingConfig   `yaml:"logging"`
	API       APIConfig       `yaml:"api"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Admission AdmissionConfig `yaml:"admission"`
	Bot       BotConfig       `yaml:"bot"`
	Report    ReportConfig    `yaml:"report"`
	Google    GoogleConfig    `yaml:"google"`
	Broker    BrokerConfig    `yaml:"broker"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken      string `yaml:"bot_token"`
	WebhookURL    string `yaml:"webhook_url"`
	WebhookSecret string `yaml:"webhook_secret"`
	AdminChatID   int64  `yaml:"admin_chat_id"`
	Debug         bool   `yaml:"debug"`
}

type LedgerConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ScheduleConfig struct {
	Timezone  string `yaml:"timezone"`
	FirstHour int    `yaml:"first_hour"`
	LastHour  int    `yaml:"last_hour"`
	Capacity  int    `yaml:"capacity"`
}

// Location часовой пояс расписания. Validate гарантирует, что он загружается.
func (c ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type AdmissionConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type BotConfig struct {
	Workers           int           `yaml:"workers"`
	AddressMinLength  int           `yaml:"address_min_length"`
	BulkMinPhotos     int           `yaml:"bulk_min_photos"`
	RateLimitMessages int           `yaml:"rate_limit_messages"`
	RateLimitWindow   int           `yaml:"rate_limit_window"`
	ConversationTTL   time.Duration `yaml:"conversation_ttl"`
	PaymentPhone      string        `yaml:"payment_phone"`
	PaymentBank       string        `yaml:"payment_bank"`
	AdminContactURL   string        `yaml:"admin_contact_url"`
	ProductsPath      string        `yaml:"products_path"`
}

type ReportConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Time        string `yaml:"time"`
	ExportsPath string `yaml:"exports_path"`
}

// Clock разбирает время отправки отчёта в формате ЧЧ:ММ.
func (c ReportConfig) Clock() (hour, minute int, err error) {
	parts := strings.Split(c.Time, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid report time %q", c.Time)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid report hour %q", c.Time)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid report minute %q", c.Time)
	}
	return hour, minute, nil
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	OrdersSpreadSheetID   string `yaml:"orders_spreadsheet_id"`
	OrdersSheetName       string `yaml:"orders_sheet_name"`
}

func (c GoogleConfig) Enabled() bool {
	return c.GoogleCredentialsFile != "" && c.OrdersSpreadSheetID != ""
}

type BrokerConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

func (c BrokerConfig) Enabled() bool {
	return c.URL != ""
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}
	if c.Telegram.WebhookURL != "" && c.Telegram.WebhookSecret == "" {
		return errors.New("telegram webhook secret is required in webhook mode")
	}

	switch c.Ledger.Driver {
	case LedgerDriverFile, LedgerDriverSQLite:
	default:
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}
	if c.Ledger.Path == "" {
		return errors.New("ledger path is required")
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule timezone: %w", err)
	}
	if c.Schedule.FirstHour < 0 || c.Schedule.LastHour > 23 || c.Schedule.FirstHour > c.Schedule.LastHour {
		return fmt.Errorf("invalid schedule hours %d..%d", c.Schedule.FirstHour, c.Schedule.LastHour)
	}
	if c.Schedule.Capacity <= 0 {
		return errors.New("schedule capacity must be positive")
	}

	if c.Report.Enabled {
		if _, _, err := c.Report.Clock(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = LedgerDriverFile
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 10000
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = models.DefaultTimezone
	}
	if c.Schedule.FirstHour == 0 && c.Schedule.LastHour == 0 {
		c.Schedule.FirstHour = models.DefaultFirstHour
		c.Schedule.LastHour = models.DefaultLastHour
	}
	if c.Schedule.Capacity == 0 {
		c.Schedule.Capacity = models.DefaultSlotCapacity
	}
	if c.Admission.Timeout == 0 {
		c.Admission.Timeout = 5 * time.Second
	}

	// Bot defaults
	if c.Bot.Workers == 0 {
		c.Bot.Workers = models.DefaultDispatchWorkers
	}
	if c.Bot.AddressMinLength == 0 {
		c.Bot.AddressMinLength = models.DefaultAddressMinLength
	}
	if c.Bot.BulkMinPhotos == 0 {
		c.Bot.BulkMinPhotos = models.DefaultBulkMinPhotos
	}
	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = models.RateLimitMessages
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = models.RateLimitWindow
	}
	if c.Bot.PaymentBank == "" {
		c.Bot.PaymentBank = "Тинькофф"
	}
	if c.Bot.ProductsPath == "" {
		c.Bot.ProductsPath = "configs/products.yaml"
	}

	if c.Report.Time == "" {
		c.Report.Time = "21:00"
	}
	if c.Report.ExportsPath == "" {
		c.Report.ExportsPath = "data/exports"
	}
	if c.Google.OrdersSheetName == "" {
		c.Google.OrdersSheetName = "Orders"
	}
	if c.Broker.Queue == "" {
		c.Broker.Queue = "vyvoz.orders"
	}
}
