package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/aitrader/internal/alert"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/trend"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestLoad_FromFile(t *testing.T) {
	cfgPath := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9090

trend:
  instruments: ["xrp/krw", "KRW-ETH"]
  timeframes: ["15m", "1h"]
  short_window: 5
  long_window: 30
  mode: extrema
  pair_delay: 500ms

watchlist:
  - symbol: SOL
    timeframes: ["1h"]
    strategies: ["vwma_cross"]

publish:
  archive:
    enabled: true
    type: localfs
    path: "/tmp/aitrader/archive"

alerts:
  enabled: true
  rules:
    - name: steep
      expr: "angle_degrees > 45"
      for: 10m
      severity: warning
      instruments: ["eth"]
      timeframes: ["1h"]
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if got := cfg.Trend.Instruments; len(got) != 2 || got[0] != "KRW-XRP" || got[1] != "KRW-ETH" {
		t.Errorf("unexpected instruments %v", got)
	}
	if got := cfg.Trend.Timeframes; len(got) != 2 || got[0] != core.Timeframe15m {
		t.Errorf("unexpected timeframes %v", got)
	}
	if cfg.Trend.PairDelay != 500*time.Millisecond {
		t.Errorf("expected pair delay 500ms, got %s", cfg.Trend.PairDelay)
	}
	if cfg.Trend.Period != 5*time.Minute {
		t.Errorf("expected default period to survive, got %s", cfg.Trend.Period)
	}
	if cfg.Watchlist[0].Symbol != "KRW-SOL" {
		t.Errorf("expected normalized watchlist symbol, got %s", cfg.Watchlist[0].Symbol)
	}
	if cfg.Publish.Archive.Type != "localfs" {
		t.Errorf("expected localfs, got %s", cfg.Publish.Archive.Type)
	}

	if len(cfg.Alerts.Rules) != 1 {
		t.Fatalf("expected 1 alert rule, got %d", len(cfg.Alerts.Rules))
	}
	rule := cfg.Alerts.Rules[0]
	if rule.For != 10*time.Minute || rule.Instruments[0] != "KRW-ETH" || rule.Timeframes[0] != core.Timeframe1h {
		t.Errorf("unexpected alert rule %+v", rule)
	}
	if cfg.Alerts.Cooldown != 30*time.Minute {
		t.Errorf("expected default alert cooldown, got %s", cfg.Alerts.Cooldown)
	}

	p := cfg.Trend.Params()
	if p.ShortWindow != 5 || p.LongWindow != 30 || p.Mode != trend.ReversalExtrema {
		t.Errorf("unexpected params %+v", p)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("AITRADER_TEST_BOT_TOKEN", "secret-token")
	cfgPath := writeConfig(t, `
notifiers:
  telegram:
    enabled: true
    bot_token: "${AITRADER_TEST_BOT_TOKEN}"
    chat_id: "42"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if got := cfg.Notifiers["telegram"].BotToken; got != "secret-token" {
		t.Errorf("expected expanded token, got %q", got)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	cfgPath := writeConfig(t, `
ledger:
  driver: postgres
  dsn: "${AITRADER_TEST_LEDGER_DSN}"
`)
	dotenv := filepath.Join(filepath.Dir(cfgPath), ".env")
	if err := os.WriteFile(dotenv, []byte("AITRADER_TEST_LEDGER_DSN=postgres://localhost/ledger\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("AITRADER_TEST_LEDGER_DSN") })

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Ledger.DSN != "postgres://localhost/ledger" {
		t.Errorf("expected dsn from .env, got %q", cfg.Ledger.DSN)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Fatalf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Router.Cooldown != time.Hour {
		t.Errorf("expected default cooldown 1h, got %s", cfg.Router.Cooldown)
	}
	if !cfg.Trend.RetainOnFailure {
		t.Error("expected retain_on_failure by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestRouterConfig_Router(t *testing.T) {
	rc, err := RouterConfig{Cooldown: time.Minute, EnabledActions: []string{"BUY", "sell"}}.Router()
	if err != nil {
		t.Fatal(err)
	}
	if rc.CooldownDuration != time.Minute || len(rc.EnabledActions) != 2 {
		t.Errorf("unexpected router config %+v", rc)
	}

	if _, err := (RouterConfig{EnabledActions: []string{"short"}}).Router(); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid config", func(*Config) {}, nil},
		{"invalid port - zero", func(c *Config) { c.Server.Port = 0 }, core.ErrConfigInvalid},
		{"invalid port - too high", func(c *Config) { c.Server.Port = 70000 }, core.ErrConfigInvalid},
		{"windows out of order", func(c *Config) { c.Trend.ShortWindow = 20; c.Trend.LongWindow = 5 }, core.ErrConfigInvalid},
		{"unknown mode", func(c *Config) { c.Trend.Mode = "zigzag" }, core.ErrConfigInvalid},
		{"count too small", func(c *Config) { c.Trend.Count = 10 }, core.ErrConfigInvalid},
		{"unsupported timeframe", func(c *Config) { c.Trend.Timeframes = []core.Timeframe{"2h"} }, core.ErrUnsupportedTimeframe},
		{"bad instrument", func(c *Config) { c.Trend.Instruments = []string{"bitcoin"} }, core.ErrConfigInvalid},
		{"negative pair delay", func(c *Config) { c.Trend.PairDelay = -time.Second }, core.ErrConfigInvalid},
		{"bad watchlist market", func(c *Config) { c.Watchlist = []WatchlistItem{{Symbol: "???"}} }, core.ErrConfigInvalid},
		{"negative cooldown", func(c *Config) { c.Router.Cooldown = -time.Minute }, core.ErrConfigInvalid},
		{"unknown action", func(c *Config) { c.Router.EnabledActions = []string{"short"} }, core.ErrConfigInvalid},
		{"unknown ledger driver", func(c *Config) { c.Ledger.Driver = "mongo" }, core.ErrConfigInvalid},
		{"sqlite without dsn", func(c *Config) { c.Ledger.Driver = "sqlite" }, core.ErrConfigMissing},
		{"telegram without token", func(c *Config) {
			c.Notifiers = map[string]NotifierConfig{"telegram": {Enabled: true, ChatID: "1"}}
		}, core.ErrConfigMissing},
		{"webhook without url", func(c *Config) {
			c.Notifiers = map[string]NotifierConfig{"webhook": {Enabled: true}}
		}, core.ErrConfigMissing},
		{"disabled webhook without url", func(c *Config) {
			c.Notifiers = map[string]NotifierConfig{"webhook": {}}
		}, nil},
		{"redis without addr", func(c *Config) { c.Publish.Redis.Enabled = true; c.Publish.Redis.Addr = "" }, core.ErrConfigMissing},
		{"s3 without bucket", func(c *Config) { c.Publish.Archive = ArchiveConfig{Enabled: true, Type: "s3"} }, core.ErrConfigMissing},
		{"unknown archive type", func(c *Config) { c.Publish.Archive = ArchiveConfig{Enabled: true, Type: "ftp"} }, core.ErrConfigInvalid},
		{"pricewatch polling without period", func(c *Config) {
			c.PriceWatch = PriceWatchConfig{Enabled: true}
		}, core.ErrConfigInvalid},
		{"alert with unknown value", func(c *Config) {
			c.Alerts = AlertsConfig{Enabled: true, Rules: []alert.Rule{{Name: "x", Expr: "rsi > 70"}}}
		}, core.ErrConfigInvalid},
		{"alert with bad timeframe", func(c *Config) {
			c.Alerts = AlertsConfig{Enabled: true, Rules: []alert.Rule{{Name: "x", Expr: "slope > 0", Timeframes: []core.Timeframe{"2h"}}}}
		}, core.ErrUnsupportedTimeframe},
		{"disabled alerts are not checked", func(c *Config) {
			c.Alerts = AlertsConfig{Rules: []alert.Rule{{Expr: "nonsense"}}}
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}
