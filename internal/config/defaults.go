package config

import "strings"

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9991"
	defaultAppLogPath  = "/data/logs/bracket.log"
	defaultProfilePath = "configs/profile.yaml"

	defaultBinanceTimeout = 15

	defaultTradingSymbol       = "BTCUSDT"
	defaultTradingLeverage     = 10
	defaultTradingMarginUSD    = 2000
	defaultTradingTPOffset     = 1000
	defaultTradingSLOffset     = 300
	defaultTradingWorkingType  = "MARK_PRICE"
	defaultTradingPollInterval = 5
	defaultTradingExecOffset   = 0.005

	defaultReconcilerInterval = 10

	defaultJournalCapacity = 200
	defaultJournalBackfill = 50
	defaultJournalBuffer   = 64
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Binance.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Reconciler.applyDefaults(keys)
	c.Journal.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
	c.Metrics.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.profile_path", &a.ProfilePath, defaultProfilePath),
	)
}

func (b *BinanceConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	b.Proxy.normalize()
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "binance.timeout_seconds",
			need:  func() bool { return b.TimeoutSeconds <= 0 },
			apply: func() { b.TimeoutSeconds = defaultBinanceTimeout },
		},
	)
	b.RESTBaseURL = strings.TrimSpace(b.RESTBaseURL)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("trading.symbol", &t.Symbol, defaultTradingSymbol),
		stringFieldDefault("trading.working_type", &t.WorkingType, defaultTradingWorkingType),
		fieldDefault{
			key:   "trading.leverage",
			need:  func() bool { return t.Leverage <= 0 },
			apply: func() { t.Leverage = defaultTradingLeverage },
		},
		fieldDefault{
			key:   "trading.margin_usd",
			need:  func() bool { return t.MarginUSD <= 0 },
			apply: func() { t.MarginUSD = defaultTradingMarginUSD },
		},
		fieldDefault{
			key:   "trading.tp_offset",
			need:  func() bool { return t.TPOffset <= 0 },
			apply: func() { t.TPOffset = defaultTradingTPOffset },
		},
		fieldDefault{
			key:   "trading.sl_offset",
			need:  func() bool { return t.SLOffset <= 0 },
			apply: func() { t.SLOffset = defaultTradingSLOffset },
		},
		fieldDefault{
			key:   "trading.poll_interval_seconds",
			need:  func() bool { return t.PollIntervalSeconds <= 0 },
			apply: func() { t.PollIntervalSeconds = defaultTradingPollInterval },
		},
		fieldDefault{
			key:   "trading.exec_offset_pct",
			need:  func() bool { return t.ExecOffsetPct <= 0 },
			apply: func() { t.ExecOffsetPct = defaultTradingExecOffset },
		},
	)
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	t.WorkingType = strings.ToUpper(strings.TrimSpace(t.WorkingType))
	if t.FillTimeoutSeconds < 0 {
		t.FillTimeoutSeconds = 0
	}
}

func (r *ReconcilerConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("reconciler.enabled", &r.Enabled, true),
		fieldDefault{
			key:   "reconciler.interval_seconds",
			need:  func() bool { return r.IntervalSeconds <= 0 },
			apply: func() { r.IntervalSeconds = defaultReconcilerInterval },
		},
	)
}

func (j *JournalConfig) applyDefaults(keys keySet) {
	if j == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "journal.capacity",
			need:  func() bool { return j.Capacity <= 0 },
			apply: func() { j.Capacity = defaultJournalCapacity },
		},
		fieldDefault{
			key:   "journal.backfill",
			need:  func() bool { return j.Backfill <= 0 },
			apply: func() { j.Backfill = defaultJournalBackfill },
		},
		fieldDefault{
			key:   "journal.subscriber_buffer",
			need:  func() bool { return j.SubscriberBuffer <= 0 },
			apply: func() { j.SubscriberBuffer = defaultJournalBuffer },
		},
	)
	if j.Backfill > j.Capacity {
		j.Backfill = j.Capacity
	}
}

func (n *NotifyConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	if len(n.Telegram.Levels) == 0 {
		n.Telegram.Levels = []string{"ERROR", "SUCCESS"}
		return
	}
	for i, lv := range n.Telegram.Levels {
		n.Telegram.Levels[i] = strings.ToUpper(strings.TrimSpace(lv))
	}
}

func (m *MetricsConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("metrics.enabled", &m.Enabled, true),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
