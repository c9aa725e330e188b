package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"xhsrelay/internal/config"
	"xhsrelay/internal/logger"
	"xhsrelay/pkg/api"
)

const appName = "xhsrelay"

var (
	appVersion = "dev"
	configPath string
)

func main() {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Relay authenticated site calls through a logged-in browser session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("XHSRELAY_CONFIG"), "path to the yaml config file")

	root.AddCommand(serveCMD(), callCMD(), statusCMD(), historyCMD(), settingsCMD())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newService 读取配置并创建服务
func newService() (api.Service, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	l := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Writers:    cfg.Log.Writer,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}).With("app", appName)
	svc, err := api.NewService(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	return svc, l, nil
}
