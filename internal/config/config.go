// Package config loads the blog feed configuration from an optional YAML
// file and BLOGFEED_* environment variables.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. BLOGFEED_PRISMIC_ENDPOINT.
const EnvPrefix = "BLOGFEED"

// Config is the application configuration.
type Config struct {
	Prismic Prismic `mapstructure:"prismic"`
	Redis   Redis   `mapstructure:"redis"`
	Server  Server  `mapstructure:"server"`
	Log     Log     `mapstructure:"log"`
	Feed    Feed    `mapstructure:"feed"`
	Walk    Walk    `mapstructure:"walk"`
}

// Prismic configures the CMS repository.
type Prismic struct {
	Endpoint     string        `mapstructure:"endpoint" validate:"required,url"`
	AccessToken  string        `mapstructure:"access_token"`
	DocumentType string        `mapstructure:"document_type" validate:"required"`
	PageSize     int           `mapstructure:"page_size" validate:"min=1,max=100"`
	Orderings    string        `mapstructure:"orderings"`
	UserAgent    string        `mapstructure:"user_agent" validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"min=1,max=10"`
}

// Redis configures the shared cache. An empty Addr disables it.
type Redis struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0,max=15"`
}

// Server configures the HTTP server and the static build.
type Server struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port" validate:"min=1,max=65535"`
	OutDir string `mapstructure:"out_dir" validate:"required"`
}

// Log configures logging.
type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Pretty bool   `mapstructure:"pretty"`
}

// Feed configures the list controller.
type Feed struct {
	// Dedup drops posts already in the list when a page is appended.
	Dedup bool `mapstructure:"dedup"`
}

// Walk configures exports that collect every page.
type Walk struct {
	MaxPages    int           `mapstructure:"max_pages" validate:"min=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"min=1,max=32"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Addr returns the server listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return fld.Tag.Get("mapstructure")
		})
	})
	return validate
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("prismic.endpoint", "")
	v.SetDefault("prismic.access_token", "")
	v.SetDefault("prismic.document_type", "post")
	v.SetDefault("prismic.page_size", 2)
	v.SetDefault("prismic.orderings", "")
	v.SetDefault("prismic.user_agent", "spacetraveling-blogfeed/1.0")
	v.SetDefault("prismic.timeout", "15s")
	v.SetDefault("prismic.max_retries", 3)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.out_dir", "public")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("feed.dedup", false)

	v.SetDefault("walk.max_pages", 500)
	v.SetDefault("walk.concurrency", 4)
	v.SetDefault("walk.timeout", "15s")
}

// Loader reads and watches the configuration.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader. With an empty path it looks for
// blogfeed.yaml in the working directory and $HOME/.spacetraveling;
// a missing file is not an error.
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("blogfeed")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.spacetraveling")
	}
	return &Loader{v: v}
}

// Load reads the configuration file, if any, and returns the validated
// configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return l.decode()
}

// File returns the configuration file in use, empty when none was found.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch calls fn with the new configuration whenever the file changes.
// Invalid edits are reported to onErr and otherwise ignored.
func (l *Loader) Watch(fn func(*Config), onErr func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			onErr(err)
			return
		}
		fn(cfg)
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is NewLoader(path).Load().
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Validate checks the configuration and names the first invalid key.
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := fe.Namespace()
		if i := strings.IndexByte(key, '.'); i >= 0 {
			key = key[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", key, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
