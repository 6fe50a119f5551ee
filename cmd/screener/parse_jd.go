package main

import (
	"github.com/spf13/cobra"

	"resume-screener/internal/bootstrap"
	"resume-screener/internal/logger"
)

var parseJDCmd = &cobra.Command{
	Use:   "parse-jd <file>",
	Short: "解析JD中的技能、学历、年限、关键词和证书",
	Args:  cobra.ExactArgs(1),
	RunE:  runParseJD,
}

func init() {
	rootCmd.AddCommand(parseJDCmd)
}

func runParseJD(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	text, err := readText(cmd, args[0])
	if err != nil {
		return err
	}
	completer, err := bootstrap.NewCompleter(cfg, logger.Component("llm"))
	if err != nil {
		return err
	}
	reqs, err := bootstrap.NewParser(cfg, completer, logger.Component("requirements")).ParseJD(cmd.Context(), text)
	if err != nil {
		return err
	}
	return writeJSON(cmd, reqs)
}
