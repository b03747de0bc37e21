package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/icodeforyou/bessquote/logging"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
	// Max time spent computing a single quote request, default: 30s
	RequestTimeout *int `mapstructure:"request_timeout_sec"`
}

func (a AppConfigApi) GetRequestTimeout() time.Duration {
	if a.RequestTimeout == nil {
		return 30 * time.Second
	}
	return time.Duration(*a.RequestTimeout) * time.Second
}

type AppConfigDatabase struct {
	Path string
	// How many days authenticated quotes should be stored before they get purged
	QuoteRetentionDays *int `mapstructure:"quote_retention_days"`
	// How many days daily backup files should be stored before they get deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetQuoteRetentionDays() int {
	if d.QuoteRetentionDays == nil {
		return 365
	}
	return *d.QuoteRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 90
	}
	return *d.BackupRetentionDays
}

type AppConfigMqtt struct {
	// Empty host disables publishing of quote summaries
	Host     string
	Port     int16
	Username string
	Password string
	Topic    string `mapstructure:"topic"`
}

func (m AppConfigMqtt) Enabled() bool {
	return m.Host != ""
}

func (m AppConfigMqtt) GetTopic() string {
	if m.Topic == "" {
		return "bessquote/quotes"
	}
	return m.Topic
}

type AppConfigMaintenance struct {
	RunAt string `mapstructure:"run_at"` // cron expression, default: "30 2 * * *"
}

func (m AppConfigMaintenance) GetRunAt() string {
	if m.RunAt == "" {
		return "30 2 * * *"
	}
	return m.RunAt
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for database console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelOrInfo(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return logging.LogAttrFormatJSON
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelOrInfo(l.ConsoleLevel)
}

type AppConfig struct {
	Api         AppConfigApi
	Database    AppConfigDatabase
	Mqtt        AppConfigMqtt        `mapstructure:"mqtt"`
	Maintenance AppConfigMaintenance `mapstructure:"maintenance"`
	Logging     AppConfigLogging     `mapstructure:"logging"`
	Engine      AppConfigEngine      `mapstructure:"engine"`
}

// Load reads the config file on top of the engine defaults, so keys missing
// from the file keep their documented default value.
func Load(path string) (*AppConfig, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath("config")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetDefault("engine.authenticator.signing_key", "")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	return unmarshal()
}

// Watch calls onChange with the new config each time the file loaded by
// Load changes. A file that does not load or validate is logged and the
// previous config stays in use.
func Watch(onChange func(*AppConfig)) {
	logger := slog.Default().With("module", "config")
	viper.OnConfigChange(func(e fsnotify.Event) {
		c, err := unmarshal()
		if err != nil {
			logger.Error("ignoring changed config", slog.String("file", e.Name), slog.Any("error", err))
			return
		}
		logger.Info("config reloaded", slog.String("file", e.Name))
		onChange(c)
	})
	viper.WatchConfig()
}

func unmarshal() (*AppConfig, error) {
	c := AppConfig{Engine: DefaultEngine()}

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	if err := c.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	return &c, nil
}
