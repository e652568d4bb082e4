package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/certsync"
	gen "github.com/unkn0wn-root/certsync/genstore"
	logruslog "github.com/unkn0wn-root/certsync/log/logrus"
	sloglog "github.com/unkn0wn-root/certsync/log/slog"
	zaplog "github.com/unkn0wn-root/certsync/log/zap"
	pr "github.com/unkn0wn-root/certsync/provider"
	bcprov "github.com/unkn0wn-root/certsync/provider/bigcache"
	redisprov "github.com/unkn0wn-root/certsync/provider/redis"
	rprov "github.com/unkn0wn-root/certsync/provider/ristretto"
)

type Config struct {
	BaseURL string            `yaml:"base_url"`
	Locale  string            `yaml:"locale"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
	Log     LogConfig         `yaml:"log"`
	Cache   CacheConfig       `yaml:"cache"`
}

type LogConfig struct {
	Backend string `yaml:"backend"` // zap | logrus | slog
	Level   string `yaml:"level"`
}

type CacheConfig struct {
	Provider      string        `yaml:"provider"` // none | ristretto | bigcache | redis
	RedisAddr     string        `yaml:"redis_addr"`
	KeepUnusedFor time.Duration `yaml:"keep_unused_for"`
	Namespace     string        `yaml:"namespace"`
}

func defaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Log:     LogConfig{Backend: "zap", Level: "info"},
		Cache: CacheConfig{
			Provider:      "none",
			RedisAddr:     "localhost:6379",
			KeepUnusedFor: 60 * time.Second,
			Namespace:     "certificates",
		},
	}
}

// loadConfig reads filename over the defaults. An empty filename yields the
// defaults.
func loadConfig(filename string) (Config, error) {
	cfg := defaultConfig()
	if filename == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(filename)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", filename, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base_url is required")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	switch c.Log.Backend {
	case "zap", "logrus", "slog":
	default:
		return fmt.Errorf("unknown log backend %q", c.Log.Backend)
	}
	switch c.Cache.Provider {
	case "", "none", "ristretto", "bigcache", "redis":
	default:
		return fmt.Errorf("unknown cache provider %q", c.Cache.Provider)
	}
	return nil
}

// buildLogger returns the adapter for the configured backend and a flush
// func to run before exit.
func buildLogger(lc LogConfig, w io.Writer) (certsync.Logger, func(), error) {
	switch lc.Backend {
	case "zap":
		lvl, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, nil, err
		}
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
		return zaplog.New(zl), func() { _ = zl.Sync() }, nil
	case "logrus":
		lvl, err := logrus.ParseLevel(lc.Level)
		if err != nil {
			return nil, nil, err
		}
		ll := logrus.New()
		ll.SetOutput(w)
		ll.SetLevel(lvl)
		ll.SetFormatter(&logrus.JSONFormatter{})
		return logruslog.New(ll), func() {}, nil
	case "slog":
		l, err := newSlog(lc.Level, w)
		if err != nil {
			return nil, nil, err
		}
		return sloglog.New(l), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", lc.Backend)
	}
}

func newSlog(level string, w io.Writer) (*stdslog.Logger, error) {
	var lvl stdslog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return stdslog.New(stdslog.NewJSONHandler(w, &stdslog.HandlerOptions{Level: lvl})), nil
}

// buildCache returns a nil provider for "none". For redis both the provider
// and the generation store share one client, owned by the provider.
func buildCache(ctx context.Context, cc CacheConfig) (pr.Provider, gen.GenStore, error) {
	switch cc.Provider {
	case "", "none":
		return nil, nil, nil
	case "ristretto":
		p, err := rprov.New(rprov.Config{
			NumCounters: 10_000,
			MaxCost:     64 << 20,
			BufferItems: 64,
		})
		return p, nil, err
	case "bigcache":
		p, err := bcprov.New(ctx, bcprov.Config{
			LifeWindow:  cc.KeepUnusedFor,
			CleanWindow: cc.KeepUnusedFor,
		})
		return p, nil, err
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cc.RedisAddr})
		p, err := redisprov.New(redisprov.Config{Client: rdb, CloseClient: true})
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		gs, err := gen.NewRedis(gen.RedisConfig{
			Client:    rdb,
			Namespace: cc.Namespace,
			TTL:       24 * time.Hour,
		})
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return p, gs, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache provider %q", cc.Provider)
	}
}
