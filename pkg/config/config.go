package config

import (
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "config.yaml"
	envPrefix         = "TINYOPDS_"
)

type Config struct {
	AuthorizedClients         string        `koanf:"authorized_clients"`
	BanClients                bool          `koanf:"ban_clients"`
	ConvertorPath             string        `koanf:"convertor_path"`
	CoverCacheMB              int           `koanf:"cover_cache_mb" default:"64"`
	Credentials               string        `koanf:"credentials"`
	CyrillicFirst             bool          `koanf:"cyrillic_first"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`
	HttpPrefix                string        `koanf:"http_prefix" default:"web"`
	ItemsPerOPDSPage          int           `koanf:"items_per_opds_page" default:"50"`
	ItemsPerWebPage           int           `koanf:"items_per_web_page" default:"30"`
	Language                  string        `koanf:"language" default:"en"`
	LibraryPath               string        `koanf:"library_path"`
	NewBooksPeriodDays        int           `koanf:"new_books_period_days" default:"14"`
	OPDSStructure             string        `koanf:"opds_structure"`
	RememberClients           bool          `koanf:"remember_clients"`
	RootPrefix                string        `koanf:"root_prefix" default:"opds"`
	ScanIntervalMinutes       int           `koanf:"scan_interval_minutes" default:"60"`
	ServerHost                string        `koanf:"server_host" default:"0.0.0.0"`
	ServerName                string        `koanf:"server_name" default:"TinyOPDS server"`
	ServerPort                int           `koanf:"server_port" default:"8085"`
	UseAbsoluteUri            bool          `koanf:"use_absolute_uri"`
	UseHTTPAuth               bool          `koanf:"use_http_auth"`
	WorkerProcesses           int           `koanf:"worker_processes" default:"2"`
	WrongAttemptsCount        int           `koanf:"wrong_attempts_count" default:"3"`
}

// New loads the config in three layers: struct-tag defaults, then the YAML
// file named by CONFIG_FILE (config.yaml when unset; a missing file is fine),
// then TINYOPDS_-prefixed environment variables.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	path := os.Getenv(configFileENV)
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load config file %s", path)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if cfg.DatabaseFilePath == "" {
		return nil, missingConfigErr("DatabaseFilePath")
	}

	return cfg, nil
}

// NewForTest returns a config with defaults applied and no file or
// environment loading, so tests stay hermetic.
func NewForTest() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	return cfg
}

func missingConfigErr(field string) error {
	key := toSnakeCase(field)
	return errors.Errorf("missing required config: %s%s (%s)", envPrefix, strings.ToUpper(key), key)
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
