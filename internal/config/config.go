package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Upsert   UpsertConfig   `mapstructure:"upsert"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	List     ListConfig     `mapstructure:"list"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

// MetadataConfig selects where entity definitions come from.
type MetadataConfig struct {
	Source string `mapstructure:"source"` // "files" or "db"
	Dir    string `mapstructure:"dir"`
}

type UpsertConfig struct {
	// Atomic wraps the scalar write and all relation buckets in one
	// transaction when the store supports it.
	Atomic bool `mapstructure:"atomic"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"` // empty disables the guard
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // "dev" or "prod"
}

type ListConfig struct {
	PerPage    int `mapstructure:"per_page"`
	MaxPerPage int `mapstructure:"max_per_page"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		if d.Name == ":memory:" {
			return ":memory:"
		}
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

// Load reads app.yaml (if present) and the environment. path overrides the
// config file location when non-empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("../..")
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.path", "./data")
	v.SetDefault("metadata.source", "files")
	v.SetDefault("metadata.dir", "./models")
	v.SetDefault("upsert.atomic", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("log.mode", "dev")
	v.SetDefault("list.per_page", 25)
	v.SetDefault("list.max_per_page", 100)
}
