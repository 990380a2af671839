package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"bracket/internal/app"
	brcfg "bracket/internal/config"
	"bracket/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()

	// .env 为可选文件，缺失时静默跳过。
	_ = godotenv.Load()

	cfgPath := os.Getenv("BRACKET_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := brcfg.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	applyEnvCredentials(cfg)

	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，交易对=%s）", cfg.App.Env, cfg.Trading.Symbol)

	app, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	if err := app.Run(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}

// applyEnvCredentials 用环境变量兜底配置文件里缺失的密钥。
func applyEnvCredentials(cfg *brcfg.Config) {
	if cfg.Binance.APIKey == "" {
		cfg.Binance.APIKey = strings.TrimSpace(os.Getenv("BINANCE_API_KEY"))
	}
	if cfg.Binance.APISecret == "" {
		cfg.Binance.APISecret = strings.TrimSpace(os.Getenv("BINANCE_API_SECRET"))
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
