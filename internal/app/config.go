package app

import (
	"errors"
	"fmt"
	"net/mail"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g.
// AUTHWATCH_LOG_PATH for log.path.
const EnvPrefix = "AUTHWATCH"

// RequiredKeys must be present in the config file or the environment.
var RequiredKeys = []string{
	"log.path",
	"store.snapshot_path",
	"store.index_path",
	"rotate.max_bytes",
	"detect.threshold",
	"poll.interval",
	"alert.admin_email",
}

const (
	DetectSourceFile    = "file"
	DetectSourceJournal = "journal"
)

// Config is the immutable runtime configuration handed to constructors.
type Config struct {
	LogPath  string
	Location *time.Location

	ArchiveDir     string
	RotateMaxBytes int64
	RotateInterval time.Duration
	BackupFiles    []string

	SnapshotPath string
	IndexPath    string
	CacheSize    int

	ErrorsPath string
	Denylist   string

	DetectThreshold int
	DetectSource    string
	JournalUnit     string
	PollInterval    time.Duration

	Bans BansConfig

	AdminEmail  string
	JournalPath string
	SMTP        SMTPConfig

	MetricsEnabled bool
	MetricsAddr    string

	LogLevel  string
	LogFormat string
}

type BansConfig struct {
	Enabled      bool
	Command      string
	Jail         string
	Timeout      time.Duration
	AlertOnClear bool
	StatePath    string
}

type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	RequireTLS bool
}

// ConfigValidationError describes one setting with an unusable value.
type ConfigValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s = %v - %s", e.Field, e.Value, e.Reason)
}

// NewViper builds the configuration source: defaults, then the YAML file,
// then AUTHWATCH_* environment variables. An explicit cfgFile must exist;
// without one, authwatch.yaml is looked up in . and /etc/authwatch.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("authwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/authwatch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("parse.timezone", "Local")
	v.SetDefault("parse.denylist", `(?i)^fail2ban ban list`)
	v.SetDefault("rotate.interval", "10m")
	v.SetDefault("backup.files", []string{"/etc/passwd", "/etc/shadow", "/etc/ssh/sshd_config"})
	v.SetDefault("store.cache_size", 4096)
	v.SetDefault("detect.source", DetectSourceFile)
	v.SetDefault("detect.journal_unit", "ssh.service")
	v.SetDefault("bans.enabled", true)
	v.SetDefault("bans.command", "fail2ban-client")
	v.SetDefault("bans.jail", "sshd")
	v.SetDefault("bans.timeout", "10s")
	v.SetDefault("bans.alert_on_clear", false)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.require_tls", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads and validates every setting. All missing and invalid settings
// are reported together in one *domain.ConfigError.
func Load(v *viper.Viper) (Config, error) {
	cerr := &domain.ConfigError{}
	for _, key := range RequiredKeys {
		if !v.IsSet(key) || strings.TrimSpace(v.GetString(key)) == "" {
			cerr.Missing = append(cerr.Missing, key)
		}
	}
	invalid := func(field string, value interface{}, reason string) {
		cerr.Invalid = append(cerr.Invalid, &ConfigValidationError{Field: field, Value: value, Reason: reason})
	}
	present := func(key string) bool { return v.IsSet(key) && v.GetString(key) != "" }

	cfg := Config{
		LogPath:      v.GetString("log.path"),
		ArchiveDir:   v.GetString("archive.dir"),
		BackupFiles:  v.GetStringSlice("backup.files"),
		SnapshotPath: v.GetString("store.snapshot_path"),
		IndexPath:    v.GetString("store.index_path"),
		CacheSize:    v.GetInt("store.cache_size"),
		ErrorsPath:   v.GetString("parse.errors_path"),
		Denylist:     v.GetString("parse.denylist"),
		DetectSource: strings.ToLower(v.GetString("detect.source")),
		JournalUnit:  v.GetString("detect.journal_unit"),
		Bans: BansConfig{
			Enabled:      v.GetBool("bans.enabled"),
			Command:      v.GetString("bans.command"),
			Jail:         v.GetString("bans.jail"),
			AlertOnClear: v.GetBool("bans.alert_on_clear"),
			StatePath:    v.GetString("bans.state_path"),
		},
		AdminEmail:  v.GetString("alert.admin_email"),
		JournalPath: v.GetString("alert.journal_path"),
		SMTP: SMTPConfig{
			Host:       v.GetString("smtp.host"),
			Port:       v.GetInt("smtp.port"),
			User:       v.GetString("smtp.user"),
			Password:   v.GetString("smtp.password"),
			From:       v.GetString("smtp.from"),
			RequireTLS: v.GetBool("smtp.require_tls"),
		},
		MetricsEnabled: v.GetBool("metrics.enabled"),
		MetricsAddr:    v.GetString("metrics.addr"),
		LogLevel:       strings.ToLower(v.GetString("logging.level")),
		LogFormat:      strings.ToLower(v.GetString("logging.format")),
	}

	tz := v.GetString("parse.timezone")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		invalid("parse.timezone", tz, "unknown time zone")
	}
	cfg.Location = loc

	if present("rotate.max_bytes") {
		raw := v.GetString("rotate.max_bytes")
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			n = int64(v.GetSizeInBytes("rotate.max_bytes"))
		}
		if n <= 0 {
			invalid("rotate.max_bytes", raw, "must be a positive size")
		}
		cfg.RotateMaxBytes = n
	}

	if present("detect.threshold") {
		raw := v.GetString("detect.threshold")
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			invalid("detect.threshold", raw, "must be a positive integer")
		}
		cfg.DetectThreshold = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"poll.interval", &cfg.PollInterval},
		{"rotate.interval", &cfg.RotateInterval},
		{"bans.timeout", &cfg.Bans.Timeout},
	}
	for _, d := range durations {
		if !present(d.key) {
			continue
		}
		raw := v.GetString(d.key)
		dur, err := parseInterval(raw)
		if err != nil || dur <= 0 {
			invalid(d.key, raw, "must be a positive duration (e.g. 30s) or a number of seconds")
		}
		*d.dst = dur
	}

	if cfg.AdminEmail != "" {
		if _, err := mail.ParseAddress(cfg.AdminEmail); err != nil {
			invalid("alert.admin_email", cfg.AdminEmail, "not a valid address")
		}
	}
	if cfg.DetectSource != DetectSourceFile && cfg.DetectSource != DetectSourceJournal {
		invalid("detect.source", cfg.DetectSource, "must be file or journal")
	}
	if cfg.SMTP.Port < 1 || cfg.SMTP.Port > 65535 {
		invalid("smtp.port", cfg.SMTP.Port, "must be between 1 and 65535")
	}
	if cfg.CacheSize < 0 {
		invalid("store.cache_size", cfg.CacheSize, "must not be negative")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid("logging.level", cfg.LogLevel, "must be debug, info, warn or error")
	}

	if cfg.ArchiveDir == "" && cfg.LogPath != "" {
		cfg.ArchiveDir = filepath.Join(filepath.Dir(cfg.LogPath), "archive")
	}
	if cfg.ErrorsPath == "" && cfg.LogPath != "" {
		cfg.ErrorsPath = cfg.LogPath + ".errors"
	}
	if cfg.Bans.StatePath == "" && cfg.SnapshotPath != "" {
		cfg.Bans.StatePath = filepath.Join(filepath.Dir(cfg.SnapshotPath), "banstate.db")
	}

	if len(cerr.Missing) > 0 || len(cerr.Invalid) > 0 {
		return Config{}, cerr
	}
	return cfg, nil
}

// parseInterval accepts a Go duration or a bare number of seconds.
func parseInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return time.ParseDuration(raw)
}
