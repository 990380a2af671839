package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	brcfg "bracket/internal/config"
	cfgloader "bracket/internal/config/loader"
	"bracket/internal/desk"
	"bracket/internal/gateway/binance"
	"bracket/internal/gateway/exchange"
	"bracket/internal/gateway/notifier"
	"bracket/internal/journal"
	"bracket/internal/logger"
	"bracket/internal/metrics"
	"bracket/internal/reconciler"
	apihttp "bracket/internal/transport/http/api"
)

type AppBuilder struct {
	cfg *brcfg.Config

	gatewayFn    func(brcfg.BinanceConfig) (exchange.Gateway, error)
	profilesFn   func(string) (*cfgloader.ProfileLoader, error)
	httpServerFn func(apihttp.ServerConfig) (*apihttp.Server, error)

	journalOverride *journal.Journal
	gatewayOverride exchange.Gateway
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:          cfg,
		gatewayFn:    buildBinanceGateway,
		profilesFn:   cfgloader.NewProfileLoader,
		httpServerFn: apihttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildBinanceGateway(cfg brcfg.BinanceConfig) (exchange.Gateway, error) {
	return binance.New(binance.Config{
		APIKey:       cfg.APIKey,
		APISecret:    cfg.APISecret,
		RESTBaseURL:  cfg.RESTBaseURL,
		Testnet:      cfg.Testnet,
		HTTPTimeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		ProxyEnabled: cfg.Proxy.Enabled,
		RESTProxyURL: cfg.Proxy.RESTURL,
	})
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	var metricsSvc *metrics.Metrics
	if cfg.Metrics.Enabled {
		metricsSvc = metrics.New()
	}

	j := b.journalOverride
	if j == nil {
		// 接口持有带类型的 nil 指针会绕过 nil 判断，只有真实例才能当 observer。
		var obs journal.Observer
		if metricsSvc != nil {
			obs = metricsSvc
		}
		j = journal.New(journal.Config{
			Capacity: cfg.Journal.Capacity,
			Backfill: cfg.Journal.Backfill,
			Buffer:   cfg.Journal.SubscriberBuffer,
		}, obs)
	}

	gw := b.gatewayOverride
	if gw == nil {
		built, err := b.gatewayFn(cfg.Binance)
		if err != nil {
			return nil, fmt.Errorf("初始化交易所网关失败: %w", err)
		}
		gw = built
	}
	logger.Infof("✓ 交易所网关就绪: %s", gw.Name())

	profiles, err := b.loadProfiles(cfg)
	if err != nil {
		return nil, err
	}

	var profileSrc desk.ProfileSource
	if profiles != nil {
		profileSrc = profiles
	}
	d := desk.New(ctx, gw, j, metricsSvc, profileSrc, cfg.Trading)

	var rec *reconciler.Reconciler
	if cfg.Reconciler.Enabled {
		rec = reconciler.New(gw, j, metricsSvc, cfg.Trading.Symbol, cfg.Reconciler.Interval())
		logger.Infof("✓ 持仓对账已启用，间隔 %s", cfg.Reconciler.Interval())
	}

	var tg *notifier.Telegram
	if cfg.Notify.Telegram.Enabled {
		tg = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID, cfg.Notify.Telegram.Levels)
		logger.Infof("✓ Telegram 通知已启用 (levels: %s)", strings.Join(cfg.Notify.Telegram.Levels, ", "))
	}

	srv, err := b.httpServerFn(apihttp.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Desk:    d,
		Metrics: metricsSvc,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	return &App{
		cfg:        cfg,
		journal:    j,
		desk:       d,
		reconciler: rec,
		telegram:   tg,
		apiHTTP:    srv,
		metricsSvc: metricsSvc,
		Summary:    buildStartupSummary(cfg, gw, profiles),
	}, nil
}

// loadProfiles 读取交易档位配置。配置缺失不阻断启动，下单回退 trading 默认值。
func (b *AppBuilder) loadProfiles(cfg *brcfg.Config) (*cfgloader.ProfileLoader, error) {
	path := strings.TrimSpace(cfg.App.ProfilePath)
	if path == "" {
		return nil, nil
	}
	pl, err := b.profilesFn(path)
	if err != nil {
		logger.Warnf("加载 profile 配置失败，使用 trading 默认值: %v", err)
		return nil, nil
	}
	snap := pl.Snapshot()
	logger.Infof("✓ 已加载 %d 个交易档位 (active: %s)", len(snap.Profiles), orDash(snap.Active))
	return pl, nil
}

func WithGateway(gw exchange.Gateway) AppBuilderOption {
	return func(b *AppBuilder) {
		if gw != nil {
			b.gatewayOverride = gw
		}
	}
}

func WithJournal(j *journal.Journal) AppBuilderOption {
	return func(b *AppBuilder) {
		if j != nil {
			b.journalOverride = j
		}
	}
}

func WithProfileLoader(fn func(string) (*cfgloader.ProfileLoader, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.profilesFn = fn
		}
	}
}

func WithHTTPServer(fn func(apihttp.ServerConfig) (*apihttp.Server, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.httpServerFn = fn
		}
	}
}
