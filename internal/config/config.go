package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/semmidev/oraexport/internal/domain"
)

type Config struct {
	App           AppConfig        `mapstructure:"app"`
	Oracle        OracleConfig     `mapstructure:"oracle"`
	SQL           SQLConfig        `mapstructure:"sql"`
	Export        ExportConfig     `mapstructure:"export"`
	Credential    CredentialConfig `mapstructure:"credential"`
	Notify        NotifyConfig     `mapstructure:"notify"`
	Retention     RetentionConfig  `mapstructure:"retention"`
	Lock          LockConfig       `mapstructure:"lock"`
	UploadTargets []UploadTarget   `mapstructure:"upload_targets"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type OracleConfig struct {
	Oratab       string `mapstructure:"oratab"`
	TNSAdmin     string `mapstructure:"tns_admin"`
	CheckRunning bool   `mapstructure:"check_running"`
	ProcRoot     string `mapstructure:"proc_root"`
}

type SQLConfig struct {
	// Driver is "sqlplus" or "godror".
	Driver string `mapstructure:"driver"`
}

type ExportConfig struct {
	WorkDir         string `mapstructure:"work_dir"`
	DirectoryObject string `mapstructure:"directory_object"`
	Parallelism     int    `mapstructure:"parallelism"`
	Compression     string `mapstructure:"compression"`
	Consistent      bool   `mapstructure:"consistent"`
	Compress        bool   `mapstructure:"compress"`
}

type CredentialConfig struct {
	Account           string `mapstructure:"account"`
	DefaultTablespace string `mapstructure:"default_tablespace"`
	GrantDBA          bool   `mapstructure:"grant_dba"`
	PasswordAttempts  int    `mapstructure:"password_attempts"`
	AccountAttempts   int    `mapstructure:"account_attempts"`
}

type NotifyConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	OnSuccess bool           `mapstructure:"on_success"`
	Email     EmailConfig    `mapstructure:"email"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
}

type EmailConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	SMTPHost   string   `mapstructure:"smtp_host"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"recipients"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type RetentionConfig struct {
	Days     int    `mapstructure:"days"`
	LogDir   string `mapstructure:"log_dir"`
	Schedule string `mapstructure:"schedule"`
}

type LockConfig struct {
	// Backend is "file", "redis" or "none".
	Backend string          `mapstructure:"backend"`
	Dir     string          `mapstructure:"dir"`
	Redis   RedisLockConfig `mapstructure:"redis"`
}

type RedisLockConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadTarget struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// Local mirror
	Path string `mapstructure:"path"`

	// Google Drive
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

const DefaultPath = "/etc/oraexport/config.yaml"

// flagKeys maps command line flags onto configuration keys. A flag given on
// the command line wins over the file and the environment.
var flagKeys = map[string]string{
	"tns-admin": "oracle.tns_admin",
	"dir":       "export.work_dir",
	"compress":  "export.compress",
}

// Load reads path when it exists and layers ORAEXPORT_* environment variables
// and the flags in flagKeys over the defaults. A missing file at the default
// location is not an error, so the tool runs with no configuration at all.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	v.SetEnvPrefix("ORAEXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.Is(err, os.ErrNotExist) || errors.As(err, &notFound)
			if !(path == DefaultPath && missing) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "oraexport")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "/var/log/oraexport/oraexport.log")

	v.SetDefault("oracle.oratab", "/etc/oratab")
	v.SetDefault("oracle.check_running", true)
	v.SetDefault("oracle.proc_root", "/proc")

	v.SetDefault("sql.driver", "sqlplus")

	v.SetDefault("export.work_dir", "/u01/app/oracle/export")
	v.SetDefault("export.directory_object", "ORAEXPORT_DIR")
	v.SetDefault("export.parallelism", domain.DefaultParallelism)
	v.SetDefault("export.consistent", true)

	v.SetDefault("credential.account", "EXPDP_EPHEMERAL")
	v.SetDefault("credential.default_tablespace", "USERS")
	v.SetDefault("credential.grant_dba", false)
	v.SetDefault("credential.password_attempts", 1000)
	v.SetDefault("credential.account_attempts", 3)

	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.email.smtp_port", 25)

	v.SetDefault("retention.days", 7)
	v.SetDefault("retention.schedule", "0 30 3 * * *")

	v.SetDefault("lock.backend", "file")
	v.SetDefault("lock.dir", "/tmp")
	v.SetDefault("lock.redis.ttl", 12*time.Hour)
}

func (c *Config) Validate() error {
	switch c.SQL.Driver {
	case "sqlplus", "godror":
	default:
		return fmt.Errorf("sql.driver must be sqlplus or godror, got %q", c.SQL.Driver)
	}

	if err := domain.ValidateParallelism(c.Export.Parallelism); err != nil {
		return fmt.Errorf("export.parallelism: %w", err)
	}
	if c.Export.WorkDir == "" {
		return fmt.Errorf("export.work_dir is required")
	}
	if err := domain.ValidateIdentifier("directory object", c.Export.DirectoryObject); err != nil {
		return fmt.Errorf("export.directory_object: %w", err)
	}
	switch strings.ToUpper(c.Export.Compression) {
	case "", "ALL", "DATA_ONLY", "METADATA_ONLY", "NONE":
	default:
		return fmt.Errorf("export.compression must be ALL, DATA_ONLY, METADATA_ONLY or NONE")
	}

	if err := domain.ValidateIdentifier("account", c.Credential.Account); err != nil {
		return fmt.Errorf("credential.account: %w", err)
	}
	if err := domain.ValidateIdentifier("tablespace", c.Credential.DefaultTablespace); err != nil {
		return fmt.Errorf("credential.default_tablespace: %w", err)
	}
	if c.Credential.PasswordAttempts < 1 {
		return fmt.Errorf("credential.password_attempts must be positive")
	}
	if c.Credential.AccountAttempts < 1 {
		return fmt.Errorf("credential.account_attempts must be positive")
	}

	if c.Notify.Email.Enabled {
		if c.Notify.Email.SMTPHost == "" {
			return fmt.Errorf("notify.email.smtp_host is required when email is enabled")
		}
		if c.Notify.Email.From == "" {
			return fmt.Errorf("notify.email.from is required when email is enabled")
		}
		if len(c.Notify.Email.Recipients) == 0 {
			return fmt.Errorf("notify.email.recipients is required when email is enabled")
		}
	}
	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("notify.telegram.bot_token and chat_id are required when telegram is enabled")
	}

	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must not be negative")
	}

	switch c.Lock.Backend {
	case "file":
		if c.Lock.Dir == "" {
			return fmt.Errorf("lock.dir is required for the file lock backend")
		}
	case "redis":
		if c.Lock.Redis.Addr == "" {
			return fmt.Errorf("lock.redis.addr is required for the redis lock backend")
		}
		if c.Lock.Redis.TTL < 3*time.Second {
			return fmt.Errorf("lock.redis.ttl must be at least 3s")
		}
	case "none":
	default:
		return fmt.Errorf("lock.backend must be file, redis or none, got %q", c.Lock.Backend)
	}

	for i, t := range c.UploadTargets {
		if t.Type == "" {
			return fmt.Errorf("upload_targets[%d]: type is required", i)
		}
	}

	return nil
}

func (c *Config) GetEnabledUploadTargets() []UploadTarget {
	var enabled []UploadTarget
	for _, target := range c.UploadTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}
