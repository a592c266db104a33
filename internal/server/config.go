package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
)

// Duration is a time.Duration read from "24h"-style strings.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Config struct {
	Addr        string   `json:"addr" env:"ADDR"`
	Port        int      `json:"port" env:"PORT"`
	DBStr       string   `json:"db_str" env:"DB_STR"`
	MigratePath string   `json:"migrate_path" env:"MIGRATE_PATH"`
	JWTSecret   string   `json:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL    Duration `json:"token_ttl" env:"TOKEN_TTL"`
	Env         string   `json:"env" env:"ENV"`
	LogLevel    string   `json:"log_level" env:"LOG_LEVEL"`
	RedisAddr   string   `json:"redis_addr" env:"REDIS_ADDR"`
	RedisDB     int      `json:"redis_db" env:"REDIS_DB"`
	CORSOrigins []string `json:"cors_origins" env:"CORS_ORIGINS"`
	Gzip        bool     `json:"gzip" env:"GZIP"`
}

const (
	defaultAddr     = "0.0.0.0"
	defaultPort     = 8080
	defaultDBStr    = "postgresql://shouldbeinVaultuser:shouldbeinVaultpassword@db:5432/tasks?sslmode=disable"
	defaultTokenTTL = 24 * time.Hour
	defaultEnv      = "development"
	defaultLogLevel = "info"
	devJWTSecret    = "shouldbeinVaultsecret"
)

// DefaultConfig returns the built-in values every other layer starts from.
// An empty MigratePath selects the migrations embedded in the binary.
func DefaultConfig() *Config {
	return &Config{
		Addr:        defaultAddr,
		Port:        defaultPort,
		DBStr:       defaultDBStr,
		TokenTTL:    Duration(defaultTokenTTL),
		Env:         defaultEnv,
		LogLevel:    defaultLogLevel,
		CORSOrigins: []string{"*"},
		Gzip:        true,
	}
}

type cliFlags struct {
	addr        *string
	port        *int
	dbstr       *string
	dbdsn       *string
	migratePath *string
	configFile  *string
	env         *string
	logLevel    *string
	redisAddr   *string
}

func bindFlags(set *flag.FlagSet) *cliFlags {
	return &cliFlags{
		addr:        set.String("addr", defaultAddr, "server listen address"),
		port:        set.Int("port", defaultPort, "server port"),
		dbstr:       set.String("dbstr", defaultDBStr, "database connection string"),
		dbdsn:       set.String("dbdsn", "", "database DSN (takes precedence over -dbstr)"),
		migratePath: set.String("migratepath", "", "directory with migration files (embedded migrations when empty)"),
		configFile:  set.String("c", "", "path to a JSON config file"),
		env:         set.String("env", defaultEnv, "deployment environment (production hides error details)"),
		logLevel:    set.String("loglevel", defaultLogLevel, "log level: trace, debug, info, warn, error"),
		redisAddr:   set.String("redis", "", "redis address for the credential denylist"),
	}
}

var (
	flagsOnce sync.Once
	flags     *cliFlags
)

// ReadConfig layers defaults, an optional JSON file, the environment (with
// .env loaded first) and explicitly set command-line flags, in that order.
func ReadConfig() (*Config, error) {
	flagsOnce.Do(func() {
		flags = bindFlags(flag.CommandLine)
		flag.Parse()
	})

	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w .env: %w", errors.ErrConfigFileReadFailed, err)
	}
	return loadConfig(flag.CommandLine, flags, envconfig.OsLookuper())
}

func loadConfig(fset *flag.FlagSet, cli *cliFlags, lookup envconfig.Lookuper) (*Config, error) {
	cfg := DefaultConfig()

	path := *cli.configFile
	if path == "" {
		path, _ = lookup.Lookup("CONFIG")
	}
	if path != "" {
		if err := loadJSONConfig(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg, lookup); err != nil {
		return nil, err
	}
	applyFlagOverrides(cfg, fset, cli)

	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devJWTSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadJSONConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w %s: %w", errors.ErrConfigFileReadFailed, path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrConfigParseFailed, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config, lookup envconfig.Lookuper) error {
	err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:           cfg,
		Lookuper:         lookup,
		DefaultOverwrite: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrConfigInvalidFormat, err)
	}

	if _, set := lookup.Lookup("DB_STR"); !set && cfg.DBStr == defaultDBStr {
		if dsn, ok := dsnFromParts(lookup); ok {
			cfg.DBStr = dsn
		}
	}
	return nil
}

func dsnFromParts(lookup envconfig.Lookuper) (string, bool) {
	parts := make(map[string]string, 5)
	for _, key := range []string{"DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME"} {
		v, _ := lookup.Lookup(key)
		if v == "" {
			return "", false
		}
		parts[key] = v
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
		parts["DB_USER"], parts["DB_PASSWORD"], parts["DB_HOST"], parts["DB_PORT"], parts["DB_NAME"]), true
}

// applyFlagOverrides only touches values whose flag was given on the command line.
func applyFlagOverrides(cfg *Config, fset *flag.FlagSet, cli *cliFlags) {
	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *cli.addr
		case "port":
			cfg.Port = *cli.port
		case "dbstr":
			if *cli.dbdsn == "" {
				cfg.DBStr = *cli.dbstr
			}
		case "dbdsn":
			cfg.DBStr = *cli.dbdsn
		case "migratepath":
			cfg.MigratePath = *cli.migratePath
		case "env":
			cfg.Env = *cli.env
		case "loglevel":
			cfg.LogLevel = *cli.logLevel
		case "redis":
			cfg.RedisAddr = *cli.redisAddr
		}
	})
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", errors.ErrConfigInvalidFormat, c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%w: token ttl must be positive", errors.ErrConfigInvalidFormat)
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.ErrMissingJWTSecret
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}
