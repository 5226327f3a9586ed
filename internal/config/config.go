package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const EnvPrefix = "SERVICECHECK"

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	LatencyConnect  = "connect"
	LatencyResponse = "response"
)

type APIConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	PublicKeys     []string `mapstructure:"public_keys"`
	AdminKeys      []string `mapstructure:"admin_keys"`
	RPM            int      `mapstructure:"rpm"`
	Burst          int      `mapstructure:"burst"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

type FeedConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type ProbeConfig struct {
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	Handshake       bool          `mapstructure:"handshake"`
	LatencyMode     string        `mapstructure:"latency_mode"`
	Concurrency     int           `mapstructure:"concurrency"`
	DNSServer       string        `mapstructure:"dns_server"`
}

type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Enabled  bool          `mapstructure:"enabled"`
}

type NotifyConfig struct {
	SlackWebhook string `mapstructure:"slack_webhook"`
	OnStartup    bool   `mapstructure:"on_startup"`
}

type LogConfig struct {
	Dir     string `mapstructure:"dir"`
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Log       LogConfig       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.addr", "127.0.0.1:8080")
	v.SetDefault("api.allowed_origins", []string{})
	v.SetDefault("api.public_keys", []string{})
	v.SetDefault("api.admin_keys", []string{})
	v.SetDefault("api.rpm", 120)
	v.SetDefault("api.burst", 30)

	v.SetDefault("registry.path", "ServerConfig.json")

	v.SetDefault("feed.enabled", true)
	v.SetDefault("feed.url", "https://ff14act.web.sdo.com/api/serverStatus/getServerStatus")
	v.SetDefault("feed.timeout", 10*time.Second)
	v.SetDefault("feed.user_agent", "servicecheck/1.0")

	v.SetDefault("probe.connect_timeout", 1000*time.Millisecond)
	v.SetDefault("probe.response_timeout", 5000*time.Millisecond)
	v.SetDefault("probe.handshake", false)
	v.SetDefault("probe.latency_mode", LatencyConnect)
	v.SetDefault("probe.concurrency", 0)
	v.SetDefault("probe.dns_server", "")

	v.SetDefault("scheduler.interval", 10*time.Second)
	v.SetDefault("scheduler.enabled", true)

	v.SetDefault("notify.slack_webhook", "")
	v.SetDefault("notify.on_startup", false)

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", LogLevelInfo)
	v.SetDefault("log.console", true)
}

// Load reads defaults, then servicecheck.yaml (or the explicit path), then
// SERVICECHECK_* environment variables, and validates the result. A missing
// config file is fine unless path was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("servicecheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
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
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.API.AllowedOrigins = splitList(cfg.API.AllowedOrigins)
	cfg.API.PublicKeys = splitList(cfg.API.PublicKeys)
	cfg.API.AdminKeys = splitList(cfg.API.AdminKeys)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// splitList flattens comma separated entries, which is how list values
// arrive from the environment.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.API, validation.By(func(value interface{}) error {
			a := value.(APIConfig)
			return validation.ValidateStruct(&a,
				validation.Field(&a.Addr, validation.Required, validation.By(validateHostPort)),
				validation.Field(&a.AllowedOrigins, validation.Each(validation.By(validateOrigin))),
				validation.Field(&a.RPM, validation.Min(1)),
				validation.Field(&a.Burst, validation.Min(1)),
			)
		})),
		validation.Field(&c.Registry, validation.By(func(value interface{}) error {
			r := value.(RegistryConfig)
			return validation.ValidateStruct(&r,
				validation.Field(&r.Path, validation.Required),
			)
		})),
		validation.Field(&c.Feed, validation.By(func(value interface{}) error {
			f := value.(FeedConfig)
			if !f.Enabled {
				return nil
			}
			return validation.ValidateStruct(&f,
				validation.Field(&f.URL, validation.Required, is.URL),
				validation.Field(&f.Timeout, validation.Min(time.Millisecond)),
			)
		})),
		validation.Field(&c.Probe, validation.By(func(value interface{}) error {
			p := value.(ProbeConfig)
			return validation.ValidateStruct(&p,
				validation.Field(&p.ConnectTimeout, validation.Min(time.Millisecond)),
				validation.Field(&p.ResponseTimeout, validation.Min(time.Millisecond)),
				validation.Field(&p.LatencyMode, validation.Required, validation.In(LatencyConnect, LatencyResponse)),
				validation.Field(&p.Concurrency, validation.Min(0)),
				validation.Field(&p.DNSServer, validation.By(validateDNSServer)),
			)
		})),
		validation.Field(&c.Scheduler, validation.By(func(value interface{}) error {
			s := value.(SchedulerConfig)
			return validation.ValidateStruct(&s,
				validation.Field(&s.Interval, validation.Min(time.Second)),
			)
		})),
		validation.Field(&c.Notify, validation.By(func(value interface{}) error {
			n := value.(NotifyConfig)
			return validation.ValidateStruct(&n,
				validation.Field(&n.SlackWebhook, is.URL),
			)
		})),
		validation.Field(&c.Log, validation.By(func(value interface{}) error {
			l := value.(LogConfig)
			return validation.ValidateStruct(&l,
				validation.Field(&l.Dir, validation.Required),
				validation.Field(&l.Level, validation.Required,
					validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)),
			)
		})),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}
	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}
	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}
	return nil
}

func validateOrigin(value interface{}) error {
	s, _ := value.(string)
	if s == "*" {
		return nil
	}
	return is.URL.Validate(s)
}

// validateDNSServer accepts a host or host:port; empty means the system resolver.
func validateDNSServer(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	if err := is.Host.Validate(host); err != nil {
		return validation.NewError("validation_invalid_dns_server", "must be a host or host:port")
	}
	return nil
}
