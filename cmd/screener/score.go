package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"resume-screener/internal/bootstrap"
	"resume-screener/internal/logger"
)

var (
	scoreJDFile string
	scoreMode   string
)

var scoreCmd = &cobra.Command{
	Use:   "score <resume>",
	Short: "按JD为简历评分",
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreJDFile, "jd", "j", "", "JD 文本文件 (必填)")
	scoreCmd.Flags().StringVar(&scoreMode, "mode", "", "覆盖评分模式: rule_based | ai")
	_ = scoreCmd.MarkFlagRequired("jd")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if scoreMode != "" {
		cfg.Scoring.Mode = scoreMode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	jobText, err := readText(cmd, scoreJDFile)
	if err != nil {
		return fmt.Errorf("读取JD失败: %w", err)
	}
	resumeText, err := readText(cmd, args[0])
	if err != nil {
		return err
	}

	completer, err := bootstrap.NewCompleter(cfg, logger.Component("llm"))
	if err != nil {
		return err
	}
	reqs, err := bootstrap.NewParser(cfg, completer, logger.Component("requirements")).ParseJD(cmd.Context(), jobText)
	if err != nil {
		return err
	}
	scorer, err := bootstrap.NewScorer(cfg, completer, logger.Component("scoring"))
	if err != nil {
		return err
	}
	result, err := scorer.Score(cmd.Context(), jobText, resumeText, reqs)
	if err != nil {
		return err
	}
	return writeJSON(cmd, result)
}
