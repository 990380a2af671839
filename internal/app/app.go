package app

import (
	"context"
	"fmt"

	brcfg "bracket/internal/config"
	"bracket/internal/desk"
	"bracket/internal/gateway/notifier"
	"bracket/internal/journal"
	"bracket/internal/logger"
	"bracket/internal/metrics"
	"bracket/internal/reconciler"
	apihttp "bracket/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP、对账与通知服务。
type App struct {
	cfg        *brcfg.Config
	journal    *journal.Journal
	desk       *desk.Desk
	reconciler *reconciler.Reconciler
	telegram   *notifier.Telegram
	apiHTTP    *apihttp.Server
	metricsSvc *metrics.Metrics
	Summary    *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务、持仓对账与 Telegram 中继，阻塞到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.apiHTTP == nil {
		return fmt.Errorf("http server not initialized")
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.apiHTTP.Start(ctx); err != nil {
			return fmt.Errorf("api http server error: %w", err)
		}
		return nil
	})

	if a.reconciler != nil {
		group.Go(func() error {
			a.reconciler.Run(ctx)
			return nil
		})
	}

	if a.telegram != nil {
		group.Go(func() error {
			a.telegram.Run(ctx, a.journal)
			return nil
		})
	}

	a.journal.Infof("Service started: %s %dx, margin %.0f USDT, listening on %s",
		a.cfg.Trading.Symbol, a.cfg.Trading.Leverage, a.cfg.Trading.MarginUSD, a.apiHTTP.Addr())

	return group.Wait()
}

// Desk exposes the order desk instance (for testing/replay harnesses).
func (a *App) Desk() *desk.Desk {
	if a == nil {
		return nil
	}
	return a.desk
}

// Journal exposes the shared journal instance.
func (a *App) Journal() *journal.Journal {
	if a == nil {
		return nil
	}
	return a.journal
}
