package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"sampmon/internal/config"
	"sampmon/internal/monitor"
	"sampmon/internal/notifier"
	"sampmon/internal/query"
	"sampmon/internal/storage"
)

func main() {
	configFile := flag.String("config", "monitor_config.json", "Config file path")
	name := flag.String("name", "", "Server name (optional, defaults to all servers)")
	testAlert := flag.Bool("test-alert", false, "Send a status embed to the webhook after probing")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	if err := config.LoadDotenvFromConfigDir(*configFile, *verbose); err != nil {
		fmt.Printf("⚠️  %v\n", err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(*configFile)
	if err != nil {
		fmt.Printf("❌ 加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if lastErr := loader.LastError(); lastErr != nil {
		fmt.Printf("⚠️  使用内置默认配置: %v\n", lastErr)
	}

	targets := cfg.Servers
	if *name != "" {
		srv := cfg.FindServer(*name)
		if srv == nil {
			fmt.Printf("❌ 未找到服务器: %s\n", *name)
			os.Exit(1)
		}
		targets = []config.ServerConfig{*srv}
	}

	if *verbose {
		fmt.Printf("📋 查询超时: %s, 服务器数: %d\n", cfg.Query.TimeoutDuration, len(targets))
	}

	prober := monitor.NewProber(query.NewClient(), cfg.Query.TimeoutDuration)
	ctx := context.Background()

	snapshots := make([]*storage.Snapshot, 0, len(targets))
	offline := 0
	for i := range targets {
		srv := &targets[i]
		fmt.Printf("🔍 探测 %s (%s)\n", srv.Name, srv.Address())

		snap := prober.Probe(ctx, srv)
		snapshots = append(snapshots, snap)
		if !snap.Online {
			offline++
		}
	}

	out, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		fmt.Printf("❌ 序列化结果失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if *testAlert {
		if !cfg.HasWebhook() {
			fmt.Println("⚠️  未配置 discord_webhook，跳过测试告警")
		} else {
			n := notifier.New(cfg)
			for _, snap := range snapshots {
				sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
				err := n.Notify(sendCtx, notifier.StatusEmbed(snap))
				cancel()
				if err != nil {
					fmt.Printf("❌ 发送 %s 状态失败: %v\n", snap.Name, err)
					os.Exit(1)
				}
				fmt.Printf("✅ 已发送 %s 状态\n", snap.Name)
			}
		}
	}

	if offline > 0 {
		fmt.Printf("❌ %d/%d 台服务器离线\n", offline, len(snapshots))
		os.Exit(2)
	}
	fmt.Printf("✅ 全部 %d 台服务器在线\n", len(snapshots))
}
