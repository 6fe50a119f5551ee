package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"resume-screener/internal/textclean"
)

var contactCmd = &cobra.Command{
	Use:   "contact <file>",
	Short: "识别简历中的邮箱、电话、LinkedIn 和 GitHub",
	Long:  "纯文本文件(.txt/.md)直接识别，其他格式先提取文本。",
	Args:  cobra.ExactArgs(1),
	RunE:  runContact,
}

func init() {
	rootCmd.AddCommand(contactCmd)
}

// readText 纯文本直接读取，其他格式走提取引擎
func readText(cmd *cobra.Command, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("读取文件失败: %w", err)
		}
		return string(data), nil
	default:
		return extractFile(cmd.Context(), path, false)
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runContact(cmd *cobra.Command, args []string) error {
	text, err := readText(cmd, args[0])
	if err != nil {
		return err
	}
	return writeJSON(cmd, textclean.ExtractContactInfo(text))
}
