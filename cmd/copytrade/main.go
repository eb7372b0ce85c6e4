package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/copytrade/internal/controlplane/server"
	"github.com/betbot/copytrade/internal/copytrade"
	"github.com/betbot/copytrade/internal/dashboard"
	"github.com/betbot/copytrade/internal/execution"
	"github.com/betbot/copytrade/internal/ledger"
	"github.com/betbot/copytrade/internal/metrics"
	"github.com/betbot/copytrade/pkg/cache"
	"github.com/betbot/copytrade/pkg/config"
	"github.com/betbot/copytrade/pkg/logger"
	"github.com/betbot/copytrade/pkg/persistence"
	"github.com/betbot/copytrade/pkg/secretstore"
	"github.com/betbot/copytrade/pkg/shutdown"
)

const (
	markPriceTTL    = 5 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	// .env 可选，不存在时只用真实环境变量
	_ = godotenv.Load()

	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）")
	listen := flag.String("listen", "", "控制面监听地址，覆盖配置中的 control_plane.listen")
	tui := flag.Bool("tui", false, "启用终端看板（日志只写文件）")
	dryRun := flag.Bool("dry-run", false, "从账户使用纸交易客户端，不真实下单")
	metricsAddr := flag.String("metrics", "", "expvar/pprof 监听地址（如 127.0.0.1:6060），为空则不启用")
	flag.Parse()

	if err := run(*configPath, *listen, *tui, *dryRun, *metricsAddr); err != nil {
		logrus.Errorf("❌ %v", err)
		_ = logger.Close()
		os.Exit(1)
	}
}

func run(configPath, listen string, tui, dryRun bool, metricsAddr string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.ControlPlane.Listen = listen
	}
	if dryRun {
		cfg.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
		NoColor:    tui,
	}
	if tui {
		// 看板占用终端，日志只写文件
		logCfg.Stdout = io.Discard
	}
	if err := logger.Init(logCfg); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sm := shutdown.NewManager()
	started := false
	defer func() {
		// 启动中途失败时释放已打开的资源
		if !started {
			sm.Shutdown(context.Background())
		}
	}()

	// 1) 凭证
	if cfg.SecretStore.Path != "" {
		key, err := secretstore.ParseKey(cfg.SecretStore.Key)
		if err != nil {
			return fmt.Errorf("SECRET_STORE_KEY 无效: %w", err)
		}
		ss, err := secretstore.Open(secretstore.OpenOptions{Path: cfg.SecretStore.Path, EncryptionKey: key})
		if err != nil {
			return fmt.Errorf("打开 secret store 失败: %w", err)
		}
		err = fillCredentials(cfg, ss)
		_ = ss.Close()
		if err != nil {
			return err
		}
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}

	// 2) 复制账本
	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	sm.OnShutdown("ledger", func(ctx context.Context) error { return led.Close() })

	// 3) 交易所客户端与从账户
	primary := newExchangeClient(cfg, cfg.Primary)
	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("构建从账户失败: %w", err)
	}
	strat, err := buildStrategy(cfg)
	if err != nil {
		return fmt.Errorf("构建跟单策略失败: %w", err)
	}
	engine, err := execution.NewEngine(registry, decimal.NewFromFloat(cfg.CopyMultiplier), led, execution.Options{
		RoundQuantity:     cfg.QuantityPrecision >= 0,
		QuantityPrecision: int32(cfg.QuantityPrecision),
		AccountTimeout:    cfg.AccountTimeout(),
	})
	if err != nil {
		return fmt.Errorf("构建复制引擎失败: %w", err)
	}

	// 4) 编排器
	hub := server.NewHub()
	deps := copytrade.Deps{
		Primary:    primary,
		Registry:   registry,
		Strategy:   strat,
		Engine:     engine,
		Ledger:     led,
		Reporter:   hub,
		PriceCache: cache.NewPriceCache(markPriceTTL, primary.MarkPrice),
	}
	if cfg.SnapshotDir != "" {
		scope := cfg.Symbol
		if scope == "" {
			scope = "all"
		}
		deps.SnapshotStore = persistence.NewJSONFileService(cfg.SnapshotDir).NewStore("monitor", cfg.Primary.Name, scope)
	}
	orc, err := copytrade.New(deps, copytrade.Options{
		PollInterval: cfg.PollInterval(),
		Enabled:      cfg.EnableCopying,
		Symbol:       cfg.Symbol,
		TraderID:     cfg.Strategy.TraderID,
	})
	if err != nil {
		return err
	}

	// 5) 控制面
	api := server.NewWithHub(server.Config{Token: cfg.ControlPlane.Token, AllowedOrigins: cfg.ControlPlane.AllowedOrigins}, orc, hub)
	httpSrv := &http.Server{
		Addr:              cfg.ControlPlane.Listen,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logrus.Infof("🌐 [控制面] 监听 %s", cfg.ControlPlane.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("❌ [控制面] HTTP 服务异常: %v", err)
		}
	}()
	sm.OnShutdown("controlplane", func(ctx context.Context) error {
		_ = api.Close()
		return httpSrv.Shutdown(ctx)
	})

	if metricsAddr != "" {
		if _, err := metrics.StartAsync(ctx, metricsAddr); err != nil {
			logrus.Warnf("⚠️ [metrics] 启动失败: %v", err)
		}
	}

	// 6) 启动跟单；编排器最后注册，最先停止
	if err := orc.Start(ctx); err != nil {
		return err
	}
	sm.OnShutdown("copytrade", orc.Stop)
	started = true

	logrus.Infof("🚀 [跟单] 主账户=%s 从账户=%s 策略=%s 倍数=%s dry_run=%v",
		cfg.Primary.Name, strings.Join(registry.Names(), ","), strat.Name(), engine.Multiplier(), cfg.DryRun)

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	if tui {
		go func() {
			if err := dashboard.Run(ctx, orc, time.Second); err != nil {
				logrus.Warnf("⚠️ [看板] 退出: %v", err)
			}
		}()
	}
	sig := <-stopCh
	logrus.Infof("🛑 收到信号 %s，开始优雅关闭", sig)

	cancel()
	sdCtx, sdCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer sdCancel()
	sm.Shutdown(sdCtx)
	logrus.Infof("👋 已退出")
	return nil
}
