package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	manager "liuproxy_checker/checker"
	"liuproxy_checker/checker/stats"
	"liuproxy_checker/internal/app"
	"liuproxy_checker/internal/shared/config"
	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/internal/shared/types"
)

// consoleDisplay prints every counter sample on one line.
type consoleDisplay struct {
	checked *color.Color
	good    *color.Color
	bad     *color.Color
}

func newConsoleDisplay() *consoleDisplay {
	return &consoleDisplay{
		checked: color.New(color.FgHiCyan),
		good:    color.New(color.FgHiGreen),
		bad:     color.New(color.FgHiRed),
	}
}

func (d *consoleDisplay) Update(s stats.Snapshot) {
	fmt.Fprintf(color.Output, "%s  %s  %s\n",
		d.checked.Sprintf("Checked: %d", s.Checked),
		d.good.Sprintf("Good: %d", s.Good),
		d.bad.Sprintf("Bad: %d", s.Bad),
	)
}

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	proxyType := flag.String("type", "", "Proxy type to check: http, socks4 or socks5 (headless run)")
	inputPath := flag.String("in", "", "Proxy input file, one host:port per line")
	outputPath := flag.String("out", "good.txt", "Proxy output file, good proxies are appended")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "checker.ini")

	// 1. 加载 .ini 行为配置, 文件不存在时使用默认值
	cfg := types.DefaultConfig()
	if _, err := os.Stat(iniPath); err != nil {
		config.ApplyEnv(cfg)
	} else if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	// 2. 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 无头模式: 命令行给出了协议和输入文件
	var start *manager.StartRequest
	if *proxyType != "" || *inputPath != "" {
		start = &manager.StartRequest{Protocol: *proxyType, InputPath: *inputPath, OutputPath: *outputPath}
	}

	appServer := app.New(cfg, newConsoleDisplay())
	if err := appServer.Run(ctx, start); err != nil {
		if errors.Is(err, manager.ErrInvalidStart) {
			color.Red("Nothing to do: %v", err)
			os.Exit(2)
		}
		logger.Fatal().Err(err).Msg("Checker failed")
	}
}
