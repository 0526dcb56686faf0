package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sampmon/internal/api"
	"sampmon/internal/buildinfo"
	"sampmon/internal/config"
	"sampmon/internal/events"
	"sampmon/internal/logger"
	"sampmon/internal/monitor"
	"sampmon/internal/notifier"
	"sampmon/internal/query"
	"sampmon/internal/scheduler"
	"sampmon/internal/state"
	"sampmon/internal/storage"
)

func main() {
	configFile := flag.String("config", "monitor_config.json", "配置文件路径（JSON 或 YAML）")
	createConfig := flag.Bool("create-config", false, "生成示例配置文件后退出")
	flag.Parse()

	if *createConfig {
		if err := config.WriteSample(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "生成示例配置失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("示例配置已写入 %s，请填写 discord_webhook 与服务器列表\n", *configFile)
		return
	}

	os.Exit(run(*configFile))
}

func run(configFile string) int {
	logger.Info("main", "SA-MP Server Monitor 启动",
		"version", buildinfo.GetVersion(),
		"git_commit", buildinfo.GetGitCommit(),
		"build_time", buildinfo.GetBuildTime())

	// .env 仅用于本地开发，不覆盖已有环境变量
	if err := config.LoadDotenvFromConfigDir(configFile, false); err != nil {
		logger.Warn("main", "加载 .env 失败", "error", err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(configFile)
	if err != nil {
		logger.Error("main", "无法加载配置", "error", err)
		return 1
	}

	logger.Info("main", "配置加载完成",
		"servers", len(cfg.Servers),
		"check_interval", cfg.CheckIntervalDuration,
		"query_timeout", cfg.Query.TimeoutDuration,
		"webhook", cfg.HasWebhook())

	// 历史存储失败不影响巡检，降级为不持久化
	history, err := storage.New(&cfg.Storage)
	if err == nil {
		err = history.Init()
	}
	if err != nil {
		logger.Error("main", "初始化存储失败，历史记录已禁用", "type", cfg.Storage.Type, "error", err)
		history = storage.NopStorage{}
	}
	defer history.Close()

	storageType := cfg.Storage.Type
	if storageType == "" {
		storageType = "sqlite"
	}
	logger.Info("main", "存储已就绪", "type", storageType)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := state.NewStore()
	notif := notifier.New(cfg)
	svc := events.NewService(store, notif, history)
	prober := monitor.NewProber(query.NewClient(), cfg.Query.TimeoutDuration)

	sched := scheduler.New(prober, svc, store, cfg)
	if err := sched.Start(ctx); err != nil {
		logger.Error("main", "调度器启动失败", "error", err)
		return 1
	}

	var cleaner *storage.Cleaner
	if storageType != "none" {
		cleaner = storage.NewCleaner(history, cfg.Storage.RetentionDays)
		go cleaner.Start(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var server *api.Server
	if cfg.API.IsEnabled() {
		server = api.NewServer(store, history, notif, cfg)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("main", "HTTP服务器错误", "error", err)
				select {
				case sigChan <- syscall.SIGTERM:
				default:
				}
			}
		}()
	}

	if cfg.WatchConfig {
		watcher, err := config.NewWatcher(loader, configFile, func(newCfg *config.AppConfig) {
			sched.UpdateConfig(newCfg)
			if server != nil {
				server.UpdateConfig(newCfg)
			}
			// 已移除的服务器在下一周期开始时从状态表清理
			sched.TriggerNow()
		})
		if err != nil {
			logger.Warn("main", "配置监听器创建失败，热更新功能不可用", "error", err)
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("main", "配置监听器启动失败，热更新功能不可用", "error", err)
		} else {
			defer watcher.Stop()
			logger.Info("main", "配置热更新已启用（webhook 变更需重启）")
		}
	}

	sig := <-sigChan
	logger.Info("main", "收到关闭信号，正在优雅退出", "signal", sig.String())

	sched.Stop()
	cancel()

	if cleaner != nil {
		cleaner.Stop()
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Warn("main", "HTTP服务器关闭错误", "error", err)
		}
	}

	logger.Info("main", "服务已安全退出")
	return 0
}
