package config

import (
	"strings"
	"time"
)

// Config 是 bracket 服务的主配置载体。
type Config struct {
	App        AppConfig        `toml:"app"`
	Binance    BinanceConfig    `toml:"binance"`
	Trading    TradingConfig    `toml:"trading"`
	Reconciler ReconcilerConfig `toml:"reconciler"`
	Journal    JournalConfig    `toml:"journal"`
	Notify     NotifyConfig     `toml:"notify"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

type AppConfig struct {
	Env         string `toml:"env"`
	LogLevel    string `toml:"log_level"`
	HTTPAddr    string `toml:"http_addr"`
	LogPath     string `toml:"log_path"`
	ProfilePath string `toml:"profile_path"`
}

// BinanceConfig 描述 USDT 本位合约网关的访问方式。
type BinanceConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	// Testnet 为 true 时使用官方测试网；rest_base_url 非空时优先生效。
	Testnet        bool        `toml:"testnet"`
	RESTBaseURL    string      `toml:"rest_base_url"`
	TimeoutSeconds int         `toml:"timeout_seconds"`
	Proxy          ProxyConfig `toml:"proxy"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
}

// TradingConfig 控制默认下单参数与成交轮询节奏。
// margin_usd/tp_offset/sl_offset 是请求字段缺省时的回退值。
type TradingConfig struct {
	Symbol              string  `toml:"symbol"`
	Leverage            int     `toml:"leverage"`
	MarginUSD           float64 `toml:"margin_usd"`
	TPOffset            float64 `toml:"tp_offset"`
	SLOffset            float64 `toml:"sl_offset"`
	WorkingType         string  `toml:"working_type"` // MARK_PRICE | CONTRACT_PRICE
	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
	FillTimeoutSeconds  int     `toml:"fill_timeout_seconds"` // 0 = 无限等待
	ExecOffsetPct       float64 `toml:"exec_offset_pct"`
}

func (t TradingConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalSeconds) * time.Second
}

// FillTimeout 返回等待成交的总时限，0 表示不设限。
func (t TradingConfig) FillTimeout() time.Duration {
	if t.FillTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(t.FillTimeoutSeconds) * time.Second
}

type ReconcilerConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds"`
}

func (r ReconcilerConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

type JournalConfig struct {
	Capacity         int `toml:"capacity"`
	Backfill         int `toml:"backfill"`
	SubscriberBuffer int `toml:"subscriber_buffer"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool     `toml:"enabled"`
	BotToken string   `toml:"bot_token"`
	ChatID   string   `toml:"chat_id"`
	Levels   []string `toml:"levels"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
