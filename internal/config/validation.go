package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Binance.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Reconciler.validate(); err != nil {
		return err
	}
	if err := c.Journal.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %s", a.LogLevel)
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (b *BinanceConfig) validate() error {
	// 密钥允许为空：启动时可由环境变量兜底，缺失在网关构造时报错。
	if b.Proxy.Enabled && b.Proxy.RESTURL == "" {
		return fmt.Errorf("binance.proxy enabled but no rest_url")
	}
	if b.TimeoutSeconds <= 0 {
		return fmt.Errorf("binance.timeout_seconds must be > 0")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trading.symbol cannot be empty")
	}
	if t.Leverage < 1 || t.Leverage > 125 {
		return fmt.Errorf("trading.leverage must be in [1,125]")
	}
	if t.MarginUSD <= 0 {
		return fmt.Errorf("trading.margin_usd must be > 0")
	}
	if t.TPOffset <= 0 {
		return fmt.Errorf("trading.tp_offset must be > 0")
	}
	if t.SLOffset <= 0 {
		return fmt.Errorf("trading.sl_offset must be > 0")
	}
	switch t.WorkingType {
	case "MARK_PRICE", "CONTRACT_PRICE":
	default:
		return fmt.Errorf("trading.working_type must be MARK_PRICE or CONTRACT_PRICE, got %s", t.WorkingType)
	}
	if t.PollIntervalSeconds <= 0 {
		return fmt.Errorf("trading.poll_interval_seconds must be > 0")
	}
	if t.ExecOffsetPct <= 0 || t.ExecOffsetPct >= 1 {
		return fmt.Errorf("trading.exec_offset_pct must be in (0,1)")
	}
	return nil
}

func (r *ReconcilerConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	if r.IntervalSeconds <= 0 {
		return fmt.Errorf("reconciler.interval_seconds must be > 0")
	}
	return nil
}

func (j *JournalConfig) validate() error {
	if j.Capacity < 1 || j.Capacity > 100000 {
		return fmt.Errorf("journal.capacity must be in [1,100000]")
	}
	if j.Backfill < 0 || j.Backfill > j.Capacity {
		return fmt.Errorf("journal.backfill must be in [0,capacity]")
	}
	if j.SubscriberBuffer < 1 {
		return fmt.Errorf("journal.subscriber_buffer must be >= 1")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	for _, lv := range n.Telegram.Levels {
		switch lv {
		case "INFO", "WARN", "SUCCESS", "ERROR":
		default:
			return fmt.Errorf("notify.telegram.levels contains unknown level: %s", lv)
		}
	}
	return nil
}
