package extractor

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// 同一行内两个文本块间距超过字号的该比例时补一个空格
const wordGapRatio = 0.15

// extractPDFLayout 按行读取文本块，根据横向间距恢复单词与列之间的空格
func extractPDFLayout(ctx context.Context, data []byte, _ string) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", err
		}
		for _, row := range rows {
			line := joinRow(row.Content)
			if strings.TrimSpace(line) == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func joinRow(texts []pdf.Text) string {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var sb strings.Builder
	var prevEnd float64
	for i, t := range sorted {
		if i > 0 {
			gap := t.X - prevEnd
			if gap > t.FontSize*wordGapRatio && !strings.HasSuffix(sb.String(), " ") && !strings.HasPrefix(t.S, " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	return sb.String()
}
