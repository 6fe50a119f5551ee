// Package main 离线命令行：提取简历文本、识别联系方式、解析JD、评分
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"resume-screener/internal/config"
	"resume-screener/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "screener",
	Short:         "简历筛选离线工具",
	Long:          "对本地文件执行简历文本提取、联系方式识别、JD需求解析和评分，使用与 HTTP 服务相同的配置。",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_, err := logger.Init(logger.Config{Level: "warn", Format: "pretty"})
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	return cfg, nil
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
