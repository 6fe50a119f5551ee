package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"resume-screener/internal/bootstrap"
	"resume-screener/internal/logger"
)

var (
	extractNoOCR   bool
	extractTimeout time.Duration
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "提取简历文本 (pdf/docx/doc/jpg/png)",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractNoOCR, "no-ocr", false, "禁用OCR")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 2*time.Minute, "提取超时")
	rootCmd.AddCommand(extractCmd)
}

// extractFile 用配置中的提取引擎处理本地文件
func extractFile(ctx context.Context, path string, disableOCR bool) (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if disableOCR {
		cfg.Extraction.OCREnabled = false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}
	eng, err := bootstrap.NewExtractor(ctx, cfg, logger.Component("extractor"))
	if err != nil {
		return "", err
	}
	return eng.Extract(ctx, data, filepath.Base(path))
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), extractTimeout)
	defer cancel()

	text, err := extractFile(ctx, args[0], extractNoOCR)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
