package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/newthinker/aitrader/internal/alert"
	"github.com/newthinker/aitrader/internal/collector/upbit"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/router"
	"github.com/newthinker/aitrader/internal/trend"
)

type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Log        LogConfig                 `mapstructure:"log"`
	Exchange   ExchangeConfig            `mapstructure:"exchange"`
	Trend      TrendConfig               `mapstructure:"trend"`
	Signals    SignalsConfig             `mapstructure:"signals"`
	Watchlist  []WatchlistItem           `mapstructure:"watchlist"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
	Router     RouterConfig              `mapstructure:"router"`
	Notifiers  map[string]NotifierConfig `mapstructure:"notifiers"`
	Ledger     LedgerConfig              `mapstructure:"ledger"`
	Publish    PublishConfig             `mapstructure:"publish"`
	PriceWatch PriceWatchConfig          `mapstructure:"pricewatch"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
	Alerts     AlertsConfig              `mapstructure:"alerts"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Development bool     `mapstructure:"development"`
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	Outputs     []string `mapstructure:"outputs"`
}

// ExchangeConfig points the Upbit client at its REST and WebSocket hosts.
type ExchangeConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	WebSocketURL string        `mapstructure:"websocket_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Quote        string        `mapstructure:"quote"`
}

// TrendConfig drives the trend aggregation job.
type TrendConfig struct {
	Enabled         bool             `mapstructure:"enabled"`
	Instruments     []string         `mapstructure:"instruments"`
	Timeframes      []core.Timeframe `mapstructure:"timeframes"`
	Count           int              `mapstructure:"count"`
	ShortWindow     int              `mapstructure:"short_window"`
	LongWindow      int              `mapstructure:"long_window"`
	Mode            string           `mapstructure:"mode"`
	MinDistance     int              `mapstructure:"min_distance"`
	Period          time.Duration    `mapstructure:"period"`
	Jitter          time.Duration    `mapstructure:"jitter"`
	PairDelay       time.Duration    `mapstructure:"pair_delay"`
	RetainOnFailure bool             `mapstructure:"retain_on_failure"`
	RunOnStart      bool             `mapstructure:"run_on_start"`
}

// Params converts the windows into trend parameters.
func (t TrendConfig) Params() trend.Params {
	return trend.Params{
		ShortWindow: t.ShortWindow,
		LongWindow:  t.LongWindow,
		Mode:        trend.ReversalMode(t.Mode),
		MinDistance: t.MinDistance,
	}
}

// Aggregator converts the section into an aggregator config.
func (t TrendConfig) Aggregator() trend.Config {
	return trend.Config{
		Instruments:     t.Instruments,
		Timeframes:      t.Timeframes,
		Count:           t.Count,
		Params:          t.Params(),
		PairDelay:       t.PairDelay,
		RetainOnFailure: t.RetainOnFailure,
	}
}

// SignalsConfig drives the watchlist analysis job.
type SignalsConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Period     time.Duration `mapstructure:"period"`
	Jitter     time.Duration `mapstructure:"jitter"`
	Count      int           `mapstructure:"count"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

type WatchlistItem struct {
	Symbol     string           `mapstructure:"symbol"`
	Timeframes []core.Timeframe `mapstructure:"timeframes"`
	Strategies []string         `mapstructure:"strategies"`
}

type StrategyConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Params  map[string]any `mapstructure:"params"`
}

type RouterConfig struct {
	Cooldown       time.Duration `mapstructure:"cooldown"`
	EnabledActions []string      `mapstructure:"enabled_actions"`
}

// Router converts the section into a router config.
func (r RouterConfig) Router() (router.Config, error) {
	cfg := router.Config{CooldownDuration: r.Cooldown}
	for _, s := range r.EnabledActions {
		a, err := core.ParseAction(s)
		if err != nil {
			return router.Config{}, err
		}
		cfg.EnabledActions = append(cfg.EnabledActions, a)
	}
	return cfg, nil
}

type NotifierConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Telegram
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
	// Webhook
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	// Paper ledger
	Account string `mapstructure:"account"`
}

type LedgerConfig struct {
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
	Account string `mapstructure:"account"`
	// InitialDeposit funds an empty paper account in the exchange quote.
	InitialDeposit string `mapstructure:"initial_deposit"`
}

type PublishConfig struct {
	Redis   RedisConfig   `mapstructure:"redis"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	Channel  string        `mapstructure:"channel"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
	// Retention prunes snapshots older than this; zero keeps everything.
	Retention time.Duration `mapstructure:"retention"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// PriceWatchConfig keeps a rolling price history per market, from the
// WebSocket stream or by polling every ticker of the quote currency.
type PriceWatchConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Depth   int           `mapstructure:"depth"`
	Stream  bool          `mapstructure:"stream"`
	Period  time.Duration `mapstructure:"period"`
}

// AlertsConfig holds threshold rules checked against every trend snapshot.
// Alerts go to the telegram and webhook notifiers.
type AlertsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	Rules    []alert.Rule  `mapstructure:"rules"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads an optional .env file next to the config, then the config file.
// Values of the form ${NAME} are expanded from the environment and
// AITRADER_SECTION_KEY variables override file values.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("AITRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, core.Errorf(core.ErrConfigInvalid, "reading config: %w", err)
	}

	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			v.Set(key, os.Getenv(strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.Errorf(core.ErrConfigInvalid, "unmarshaling config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return core.Errorf(core.ErrConfigInvalid, "loading %s: %w", path, err)
}

// normalize rewrites market codes to the exchange form, e.g. BTC/KRW to KRW-BTC.
func (c *Config) normalize() {
	for i, m := range c.Trend.Instruments {
		c.Trend.Instruments[i] = upbit.NormalizeMarket(m, c.Exchange.Quote)
	}
	for i := range c.Watchlist {
		c.Watchlist[i].Symbol = upbit.NormalizeMarket(c.Watchlist[i].Symbol, c.Exchange.Quote)
	}
	for _, r := range c.Alerts.Rules {
		for i, m := range r.Instruments {
			r.Instruments[i] = upbit.NormalizeMarket(m, c.Exchange.Quote)
		}
	}
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Exchange: ExchangeConfig{
			BaseURL:      "https://api.upbit.com",
			WebSocketURL: upbit.DefaultStreamURL,
			Timeout:      10 * time.Second,
			Quote:        "KRW",
		},
		Trend: TrendConfig{
			Enabled:         true,
			Instruments:     []string{"KRW-BTC", "KRW-ETH", "KRW-XRP"},
			Timeframes:      []core.Timeframe{core.Timeframe1h, core.Timeframe4h, core.Timeframe1d},
			Count:           200,
			ShortWindow:     3,
			LongWindow:      20,
			Mode:            string(trend.ReversalSign),
			MinDistance:     3,
			Period:          5 * time.Minute,
			Jitter:          30 * time.Second,
			PairDelay:       200 * time.Millisecond,
			RetainOnFailure: true,
			RunOnStart:      true,
		},
		Signals: SignalsConfig{
			Enabled: true,
			Period:  time.Minute,
			Jitter:  5 * time.Second,
			Count:   200,
		},
		Router: RouterConfig{
			Cooldown:       time.Hour,
			EnabledActions: []string{"buy", "sell"},
		},
		Ledger: LedgerConfig{
			Driver:  "memory",
			Account: "paper",
		},
		Publish: PublishConfig{
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Key:     "aitrader:trends:latest",
				Channel: "aitrader:trends",
				TTL:     time.Hour,
			},
			Archive: ArchiveConfig{Type: "localfs", Path: "data/archive"},
		},
		PriceWatch: PriceWatchConfig{
			Depth:  10,
			Period: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Alerts: AlertsConfig{Cooldown: 30 * time.Minute},
	}
}

func invalid(format string, args ...any) error {
	return core.Errorf(core.ErrConfigInvalid, format, args...)
}

func missing(format string, args ...any) error {
	return core.Errorf(core.ErrConfigMissing, format, args...)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if err := c.validateTrend(); err != nil {
		return err
	}

	for _, item := range c.Watchlist {
		if err := upbit.ValidateMarket(item.Symbol); err != nil {
			return invalid("watchlist: %v", err)
		}
		for _, tf := range item.Timeframes {
			if !tf.Valid() {
				return core.Errorf(core.ErrUnsupportedTimeframe, "watchlist %s: %q", item.Symbol, tf)
			}
		}
	}
	if c.Signals.Enabled && c.Signals.Period <= 0 {
		return invalid("signals.period must be positive")
	}

	if c.Router.Cooldown < 0 {
		return invalid("router.cooldown cannot be negative, got %s", c.Router.Cooldown)
	}
	if _, err := c.Router.Router(); err != nil {
		return invalid("router: %v", err)
	}

	switch c.Ledger.Driver {
	case "", "memory":
	case "sqlite", "postgres":
		if c.Ledger.DSN == "" {
			return missing("ledger.dsn required for driver %s", c.Ledger.Driver)
		}
	default:
		return invalid("unknown ledger driver %q", c.Ledger.Driver)
	}

	if n, ok := c.Notifiers["telegram"]; ok && n.Enabled && (n.BotToken == "" || n.ChatID == "") {
		return missing("telegram bot_token and chat_id are required")
	}
	if n, ok := c.Notifiers["webhook"]; ok && n.Enabled && n.URL == "" {
		return missing("webhook url is required")
	}

	if c.Publish.Redis.Enabled && c.Publish.Redis.Addr == "" {
		return missing("publish.redis.addr is required")
	}
	if a := c.Publish.Archive; a.Enabled {
		switch a.Type {
		case "localfs":
			if a.Path == "" {
				return missing("publish.archive.path is required for localfs")
			}
		case "s3":
			if a.S3.Bucket == "" {
				return missing("publish.archive.s3.bucket is required for s3")
			}
		default:
			return invalid("unknown archive type %q", a.Type)
		}
		if a.Retention < 0 {
			return invalid("publish.archive.retention must not be negative")
		}
	}

	if c.PriceWatch.Enabled && !c.PriceWatch.Stream && c.PriceWatch.Period <= 0 {
		return invalid("pricewatch.period must be positive when polling")
	}

	if c.Alerts.Enabled {
		if c.Alerts.Cooldown < 0 {
			return invalid("alerts.cooldown cannot be negative, got %s", c.Alerts.Cooldown)
		}
		for _, r := range c.Alerts.Rules {
			if err := r.Validate(); err != nil {
				if errors.Is(err, core.ErrUnsupportedTimeframe) {
					return err
				}
				return invalid("%v", err)
			}
		}
	}
	return nil
}

func (c *Config) validateTrend() error {
	t := c.Trend
	if err := t.Params().Validate(); err != nil {
		return invalid("trend: %v", err)
	}
	for _, tf := range t.Timeframes {
		if !tf.Valid() {
			return core.Errorf(core.ErrUnsupportedTimeframe, "trend timeframe %q", tf)
		}
	}
	for _, m := range t.Instruments {
		if err := upbit.ValidateMarket(m); err != nil {
			return invalid("trend: %v", err)
		}
	}
	if t.Count <= t.LongWindow {
		return invalid("trend.count must exceed long_window, got %d <= %d", t.Count, t.LongWindow)
	}
	if t.PairDelay < 0 || t.Jitter < 0 {
		return invalid("trend pair_delay and jitter cannot be negative")
	}
	if t.Enabled && t.Period <= 0 {
		return invalid("trend.period must be positive")
	}
	return nil
}
