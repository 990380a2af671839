package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	brcfg "bracket/internal/config"
	cfgloader "bracket/internal/config/loader"
	"bracket/internal/gateway/exchange"
)

type StartupSummary struct {
	Trading    TradingSummary
	Venue      VenueSummary
	Reconciler ReconcilerSummary
	Journal    JournalSummary
	Profiles   ProfilesSummary
	HTTPAddr   string
}

type TradingSummary struct {
	Symbol      string
	Leverage    int
	MarginUSD   float64
	TPOffset    float64
	SLOffset    float64
	WorkingType string
	PollEvery   time.Duration
	FillTimeout time.Duration // 0 表示不设限
	ExecOffset  float64
}

type VenueSummary struct {
	Name    string
	BaseURL string
	Testnet bool
	Proxy   string
}

type ReconcilerSummary struct {
	Enabled  bool
	Interval time.Duration
}

type JournalSummary struct {
	Capacity int
	Backfill int
}

type ProfilesSummary struct {
	Path   string
	Active string
	Names  []string
}

func buildStartupSummary(cfg *brcfg.Config, gw exchange.Gateway, profiles *cfgloader.ProfileLoader) *StartupSummary {
	venue := VenueSummary{Testnet: cfg.Binance.Testnet}
	if gw != nil {
		venue.Name = gw.Name()
		if b, ok := gw.(interface{ BaseURL() string }); ok {
			venue.BaseURL = b.BaseURL()
		}
	}
	if cfg.Binance.Proxy.Enabled {
		venue.Proxy = cfg.Binance.Proxy.RESTURL
	}

	prof := ProfilesSummary{Path: cfg.App.ProfilePath}
	if profiles != nil {
		snap := profiles.Snapshot()
		prof.Active = snap.Active
		for name := range snap.Profiles {
			prof.Names = append(prof.Names, name)
		}
		sort.Strings(prof.Names)
	}

	return &StartupSummary{
		Trading: TradingSummary{
			Symbol:      cfg.Trading.Symbol,
			Leverage:    cfg.Trading.Leverage,
			MarginUSD:   cfg.Trading.MarginUSD,
			TPOffset:    cfg.Trading.TPOffset,
			SLOffset:    cfg.Trading.SLOffset,
			WorkingType: cfg.Trading.WorkingType,
			PollEvery:   cfg.Trading.PollInterval(),
			FillTimeout: cfg.Trading.FillTimeout(),
			ExecOffset:  cfg.Trading.ExecOffsetPct,
		},
		Venue: venue,
		Reconciler: ReconcilerSummary{
			Enabled:  cfg.Reconciler.Enabled,
			Interval: cfg.Reconciler.Interval(),
		},
		Journal: JournalSummary{
			Capacity: cfg.Journal.Capacity,
			Backfill: cfg.Journal.Backfill,
		},
		Profiles: prof,
		HTTPAddr: cfg.App.HTTPAddr,
	}
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[交易参数 (TRADING)]")
	fmt.Printf("  交易对:   %s\n", s.Trading.Symbol)
	fmt.Printf("  杠杆:     %dx\n", s.Trading.Leverage)
	fmt.Printf("  保证金:   %.0f USDT\n", s.Trading.MarginUSD)
	fmt.Printf("  止盈偏移: +%.0f\n", s.Trading.TPOffset)
	fmt.Printf("  止损偏移: -%.0f\n", s.Trading.SLOffset)
	fmt.Printf("  触发价格: %s\n", s.Trading.WorkingType)
	fmt.Printf("  轮询间隔: %s\n", s.Trading.PollEvery)
	if s.Trading.FillTimeout > 0 {
		fmt.Printf("  成交时限: %s\n", s.Trading.FillTimeout)
	} else {
		fmt.Println("  成交时限: 不限")
	}
	fmt.Printf("  吃单偏移: %.2f%%\n", s.Trading.ExecOffset*100)
	fmt.Println()

	fmt.Println("[交易所 (VENUE)]")
	fmt.Printf("  网关:     %s\n", orDash(s.Venue.Name))
	fmt.Printf("  REST:     %s\n", orDash(s.Venue.BaseURL))
	fmt.Printf("  测试网:   %s\n", yesNo(s.Venue.Testnet))
	fmt.Printf("  代理:     %s\n", orDash(s.Venue.Proxy))
	fmt.Println()

	fmt.Println("[持仓对账 (RECONCILER)]")
	if s.Reconciler.Enabled {
		fmt.Println("  状态:     启用")
		fmt.Printf("  间隔:     %s\n", s.Reconciler.Interval)
	} else {
		fmt.Println("  状态:     停用")
	}
	fmt.Println()

	fmt.Println("[事件日志 (JOURNAL)]")
	fmt.Printf("  容量:     %d 条\n", s.Journal.Capacity)
	fmt.Printf("  回放:     %d 条\n", s.Journal.Backfill)
	fmt.Println()

	fmt.Println("[交易档位 (PROFILES)]")
	if len(s.Profiles.Names) == 0 {
		fmt.Println("  (未配置，使用 trading 默认值)")
	} else {
		fmt.Printf("  配置文件: %s\n", s.Profiles.Path)
		fmt.Printf("  生效档位: %s\n", orDash(s.Profiles.Active))
		fmt.Printf("  可用档位: %s\n", strings.Join(s.Profiles.Names, ", "))
	}
	fmt.Println()

	fmt.Println("[服务 (SERVER)]")
	fmt.Printf("  HTTP:     %s\n", s.HTTPAddr)
	fmt.Println(strings.Repeat("=", 80))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return "否"
}
