package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // timezone names resolve without a system zoneinfo

	"playchrono/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Auth       AuthConfig       `yaml:"auth"`
	Booking    BookingConfig    `yaml:"booking"`
	Grounds    []models.Ground  `yaml:"grounds"`
	Google     GoogleConfig     `yaml:"google"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// APIAuthConfig guards the gRPC kiosk API with static keys.
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

// AuthConfig covers user sessions issued by the HTTP API.
type AuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	LoginAttempts      int           `yaml:"login_attempts"`
	LoginAttemptWindow time.Duration `yaml:"login_attempt_window"`
	Admin              AdminConfig   `yaml:"admin"`
}

// AdminConfig describes the account created at startup when absent.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Username string `yaml:"username"`
}

type BookingConfig struct {
	MaxAdvanceDays int           `yaml:"max_advance_days"`
	WindowDays     int           `yaml:"window_days"`
	Purposes       []string      `yaml:"purposes"`
	Sports         []string      `yaml:"sports"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

// Location resolves the configured timezone, UTC when unset.
func (a AppConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(a.Timezone)
}

type TelegramConfig struct {
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	Debug    bool    `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
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

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
	BookingsSheetName     string `yaml:"bookings_sheet_name"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

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
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("invalid app.timezone: %w", err)
	}
	if c.Auth.Admin.Email != "" && len(c.Auth.Admin.Password) < 8 {
		return errors.New("auth.admin.password must be at least 8 characters")
	}

	return ValidateGrounds(c.Grounds)
}

// ValidateGrounds checks ids, slot times and weekdays of configured grounds.
func ValidateGrounds(grounds []models.Ground) error {
	if len(grounds) == 0 {
		return errors.New("at least one ground is required")
	}

	groundIDs := make(map[string]bool)
	for _, g := range grounds {
		if g.ID == "" {
			return fmt.Errorf("ground '%s' has empty id", g.Name)
		}
		if groundIDs[g.ID] {
			return fmt.Errorf("duplicate ground id found: %s", g.ID)
		}
		groundIDs[g.ID] = true

		if len(g.Sports) == 0 {
			return fmt.Errorf("ground %s serves no sports", g.ID)
		}

		slotIDs := make(map[string]bool)
		for _, s := range g.Slots {
			if s.ID == "" {
				return fmt.Errorf("ground %s: slot %s has empty id", g.ID, s.Label())
			}
			if slotIDs[s.ID] {
				return fmt.Errorf("ground %s: duplicate slot id %s", g.ID, s.ID)
			}
			slotIDs[s.ID] = true

			start, err := time.Parse("15:04", s.Start)
			if err != nil {
				return fmt.Errorf("ground %s slot %s: invalid start %q", g.ID, s.ID, s.Start)
			}
			end, err := time.Parse("15:04", s.End)
			if err != nil {
				return fmt.Errorf("ground %s slot %s: invalid end %q", g.ID, s.ID, s.End)
			}
			if !start.Before(end) {
				return fmt.Errorf("ground %s slot %s: start must precede end", g.ID, s.ID)
			}
		}

		for _, day := range g.ClosedWeekdays {
			if !isWeekday(day) {
				return fmt.Errorf("ground %s: unknown weekday %q", g.ID, day)
			}
		}
	}
	return nil
}

func isWeekday(s string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "playchrono"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 7 * 24 * time.Hour
	}
	if c.Auth.LoginAttempts == 0 {
		c.Auth.LoginAttempts = 5
	}
	if c.Auth.LoginAttemptWindow == 0 {
		c.Auth.LoginAttemptWindow = 15 * time.Minute
	}
	if c.Auth.Admin.Email != "" && c.Auth.Admin.Username == "" {
		c.Auth.Admin.Username = "Administrator"
	}

	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = 30
	}
	if c.Booking.WindowDays == 0 {
		c.Booking.WindowDays = 7
	}
	if len(c.Booking.Purposes) == 0 {
		c.Booking.Purposes = append([]string(nil), models.DefaultPurposes...)
	}
	if len(c.Booking.Sports) == 0 {
		c.Booking.Sports = append([]string(nil), models.DefaultSports...)
	}
	if c.Booking.CacheTTL == 0 {
		c.Booking.CacheTTL = 5 * time.Minute
	}

	if c.Google.BookingsSheetName == "" {
		c.Google.BookingsSheetName = "Bookings"
	}

	// Slots are listed in start order.
	for i := range c.Grounds {
		slots := c.Grounds[i].Slots
		sort.SliceStable(slots, func(a, b int) bool { return slots[a].Start < slots[b].Start })
	}
}
