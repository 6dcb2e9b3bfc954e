package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/viper"

	"github.com/mkarlsen/gatehouse/internal/journal"
	"github.com/mkarlsen/gatehouse/internal/logger"
	"github.com/mkarlsen/gatehouse/internal/process"
	"github.com/mkarlsen/gatehouse/internal/router"
)

// FileConfig mirrors the top-level TOML structure.
type FileConfig struct {
	GracePeriod    time.Duration `toml:"grace_period" mapstructure:"grace_period"`
	HealthInterval time.Duration `toml:"health_interval" mapstructure:"health_interval"`
	LogLevel       string        `toml:"log_level" mapstructure:"log_level"`
	MetricsListen  string        `toml:"metrics_listen" mapstructure:"metrics_listen"`
	ControlListen  string        `toml:"control_listen" mapstructure:"control_listen"`
	Log            *LogConfig    `toml:"log" mapstructure:"log"`
	Journal        JournalConfig `toml:"journal" mapstructure:"journal"`
	Services       []SvcConfig   `toml:"services" mapstructure:"services"`
	Router         RouterConfig  `toml:"router" mapstructure:"router"`
}

type LogConfig struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	Stdout     string `toml:"stdout" mapstructure:"stdout"`
	Stderr     string `toml:"stderr" mapstructure:"stderr"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type JournalConfig struct {
	Type string `toml:"type" mapstructure:"type"`
	Path string `toml:"path" mapstructure:"path"`
	DSN  string `toml:"dsn" mapstructure:"dsn"`
}

type SvcConfig struct {
	Name            string        `toml:"name" mapstructure:"name"`
	Command         string        `toml:"command" mapstructure:"command"`
	WorkDir         string        `toml:"workdir" mapstructure:"workdir"`
	Env             []string      `toml:"env" mapstructure:"env"`
	AutoRestart     bool          `toml:"autorestart" mapstructure:"autorestart"`
	MaxStartRetries int           `toml:"max_start_retries" mapstructure:"max_start_retries"`
	ReadinessDelay  time.Duration `toml:"readiness_delay" mapstructure:"readiness_delay"`
	Critical        *bool         `toml:"critical" mapstructure:"critical"`
	Log             *LogConfig    `toml:"log" mapstructure:"log"`
}

type RouterConfig struct {
	Listen            string            `toml:"listen" mapstructure:"listen"`
	ConnectTimeout    time.Duration     `toml:"connect_timeout" mapstructure:"connect_timeout"`
	ClientAddrHeaders []string          `toml:"client_addr_headers" mapstructure:"client_addr_headers"`
	Upstreams         []router.Upstream `toml:"upstreams" mapstructure:"upstreams"`
	Routes            []RouteConfig     `toml:"routes" mapstructure:"routes"`
}

type RouteConfig struct {
	Kind     string `toml:"kind" mapstructure:"kind"`
	Prefix   string `toml:"prefix" mapstructure:"prefix"`
	Pattern  string `toml:"pattern" mapstructure:"pattern"`
	Upstream string `toml:"upstream" mapstructure:"upstream"`
	Dir      string `toml:"dir" mapstructure:"dir"`
}

// Load reads and decodes the TOML file without further interpretation.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Specs converts the service sections into supervisor descriptors.
// Per-service log settings override the top-level defaults; Critical
// defaults to true because the whole point of the entrypoint is that a dead
// member takes the container down.
func (fc *FileConfig) Specs() ([]process.Spec, error) {
	specs := make([]process.Spec, 0, len(fc.Services))
	for _, sc := range fc.Services {
		logCfg := mergeLog(fc.Log, sc.Log)
		critical := true
		if sc.Critical != nil {
			critical = *sc.Critical
		}
		s := process.Spec{
			Name:            sc.Name,
			Command:         sc.Command,
			WorkDir:         sc.WorkDir,
			Env:             sc.Env,
			AutoRestart:     sc.AutoRestart,
			MaxStartRetries: sc.MaxStartRetries,
			ReadinessDelay:  sc.ReadinessDelay,
			Critical:        critical,
			Log:             logCfg,
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// RouterOptions converts the router section into router.Options, compiling
// regex patterns and validating the route kinds.
func (fc *FileConfig) RouterOptions() (router.Options, error) {
	rc := fc.Router
	routes := make([]router.Route, 0, len(rc.Routes))
	for i, r := range rc.Routes {
		switch r.Kind {
		case "prefix", "":
			routes = append(routes, router.PrefixRoute{Prefix: r.Prefix, Upstream: r.Upstream})
		case "regex":
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return router.Options{}, fmt.Errorf("route %d: bad pattern %q: %w", i, r.Pattern, err)
			}
			routes = append(routes, router.RegexRoute{Pattern: re, Upstream: r.Upstream})
		case "static":
			routes = append(routes, router.StaticRoute{Prefix: r.Prefix, Dir: r.Dir})
		default:
			return router.Options{}, fmt.Errorf("route %d: unknown kind %q", i, r.Kind)
		}
	}
	return router.Options{
		Listen:            rc.Listen,
		ConnectTimeout:    rc.ConnectTimeout,
		ClientAddrHeaders: rc.ClientAddrHeaders,
		Upstreams:         rc.Upstreams,
		Routes:            routes,
	}, nil
}

// JournalOptions converts the journal section.
func (fc *FileConfig) JournalOptions() journal.Config {
	return journal.Config{Type: fc.Journal.Type, Path: fc.Journal.Path, DSN: fc.Journal.DSN}
}

func mergeLog(top, per *LogConfig) logger.Config {
	var out logger.Config
	if top != nil {
		out = logger.Config{
			Dir:        top.Dir,
			StdoutPath: top.Stdout,
			StderrPath: top.Stderr,
			MaxSizeMB:  top.MaxSizeMB,
			MaxBackups: top.MaxBackups,
			MaxAgeDays: top.MaxAgeDays,
			Compress:   top.Compress,
		}
	}
	if per == nil {
		return out
	}
	if per.Dir != "" {
		out.Dir = per.Dir
	}
	if per.Stdout != "" {
		out.StdoutPath = per.Stdout
	}
	if per.Stderr != "" {
		out.StderrPath = per.Stderr
	}
	if per.MaxSizeMB != 0 {
		out.MaxSizeMB = per.MaxSizeMB
	}
	if per.MaxBackups != 0 {
		out.MaxBackups = per.MaxBackups
	}
	if per.MaxAgeDays != 0 {
		out.MaxAgeDays = per.MaxAgeDays
	}
	if per.Compress {
		out.Compress = true
	}
	return out
}
