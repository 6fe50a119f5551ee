package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"resume-screener/internal/types"
)

// ErrInvalidSheetURL 无法从链接中识别表格ID
var ErrInvalidSheetURL = errors.New("无效的 Google Sheets 链接")

// DefaultSheetRange 未指定范围时读取的工作表
const DefaultSheetRange = "Sheet1"

var spreadsheetIDRe = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)

// ExtractSpreadsheetID 支持 /spreadsheets/d/ID/edit、/spreadsheets/d/ID 以及裸ID
func ExtractSpreadsheetID(link string) (string, bool) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", false
	}
	if m := spreadsheetIDRe.FindStringSubmatch(link); m != nil {
		return m[1], true
	}
	if driveBareIDRe.MatchString(link) {
		return link, true
	}
	return "", false
}

// SheetReader 按链接读取在线表格
type SheetReader interface {
	ReadRows(ctx context.Context, link, rangeName string) ([]types.SheetRow, error)
}

// SheetsReader 通过 Sheets v4 接口读取表格
type SheetsReader struct {
	svc *sheets.Service
}

// NewSheetsReader 使用服务账号凭据创建读取器；opts 追加在凭据之后
func NewSheetsReader(ctx context.Context, credentialsPath string, opts ...option.ClientOption) (*SheetsReader, error) {
	var clientOpts []option.ClientOption
	if credentialsPath != "" {
		clientOpts = append(clientOpts,
			option.WithCredentialsFile(credentialsPath),
			option.WithScopes(sheets.SpreadsheetsReadonlyScope))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("初始化 Google Sheets 服务失败: %w", err)
	}
	return &SheetsReader{svc: svc}, nil
}

// ReadRows 读取指定范围，第一行为表头，列映射与上传表格一致
func (r *SheetsReader) ReadRows(ctx context.Context, link, rangeName string) ([]types.SheetRow, error) {
	id, ok := ExtractSpreadsheetID(link)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSheetURL, link)
	}
	if rangeName == "" {
		rangeName = DefaultSheetRange
	}

	resp, err := r.svc.Spreadsheets.Values.Get(id, rangeName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("读取表格失败 (%s, %s): %w", id, rangeName, err)
	}

	records := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		record := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				record[j] = fmt.Sprint(v)
			}
		}
		records[i] = record
	}
	return RowsFromRecords(records)
}
