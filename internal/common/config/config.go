// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Template      TemplateConfig     `mapstructure:"template"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NotificationConfig holds the per-channel delivery settings. Every channel
// is optional: missing credentials put that channel into a log-only degraded
// mode rather than failing startup.
type NotificationConfig struct {
	Push       PushConfig       `mapstructure:"push"`
	SMS        SMSConfig        `mapstructure:"sms"`
	WhatsApp   WhatsAppConfig   `mapstructure:"whatsapp"`
	Attendance AttendanceConfig `mapstructure:"attendance"`
}

type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type SMSConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Gateway selects the provider: "sns" or "http".
	Gateway            string `mapstructure:"gateway"`
	AWSRegion          string `mapstructure:"aws_region"`
	SenderID           string `mapstructure:"sender_id"`
	GatewayURL         string `mapstructure:"gateway_url"`
	GatewayAPIKey      string `mapstructure:"gateway_api_key"`
	DefaultCountryCode string `mapstructure:"default_country_code"`
}

type WhatsAppConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	APIURL             string `mapstructure:"api_url"`
	PhoneNumberID      string `mapstructure:"phone_number_id"`
	AccessToken        string `mapstructure:"access_token"`
	DefaultCountryCode string `mapstructure:"default_country_code"`
}

// AttendanceConfig holds the deployment-wide channel switch for attendance
// notifications. SMS and WhatsApp are mutually exclusive; when both are off
// the dispatcher falls back to the legacy plain-SMS composer.
type AttendanceConfig struct {
	ViaSMS      bool `mapstructure:"via_sms"`
	ViaWhatsApp bool `mapstructure:"via_whatsapp"`
}

// TemplateConfig holds settings for the message template registry.
type TemplateConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
