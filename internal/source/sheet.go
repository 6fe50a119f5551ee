package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"resume-screener/internal/types"
)

var (
	// ErrUnsupportedSheet 支持 CSV 与 XLSX
	ErrUnsupportedSheet = errors.New("请上传 Excel (.xlsx) 或 CSV 文件")
	// ErrMissingResumeColumn 找不到简历链接列
	ErrMissingResumeColumn = errors.New("找不到简历链接列，请确认表头包含 Resume Link、Resume、Drive Link 或 CV Link")
	// ErrEmptySheet 表格没有表头
	ErrEmptySheet = errors.New("表格为空")
)

// 各字段可接受的表头(规范化后)，按优先级排列
var columnSynonyms = map[string][]string{
	"name":         {"name", "candidate_name", "full_name", "candidate"},
	"email":        {"email", "email_address", "e-mail", "mail"},
	"phone":        {"phone", "phone_no", "phone_number", "mobile", "contact"},
	"experience":   {"experience", "exp", "years_of_experience", "experience_years", "work_experience"},
	"expected_ctc": {"expected_ctc", "expected_salary", "ctc", "salary_expectation", "expected_package"},
	"resume_link":  {"resume_link", "resume", "resume_url", "drive_link", "cv_link", "cv", "resume_drive_link"},
}

// NormalizeHeader 小写、去首尾空白、空格转下划线、去掉点号
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	return strings.ReplaceAll(h, ".", "")
}

// ParseSheet 按扩展名解析上传的候选人表格(.csv / .xlsx / .xlsm)
func ParseSheet(filename string, data []byte) ([]types.SheetRow, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(data)
	case ".xlsx", ".xlsm":
		records, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSheet, filename)
	}
	if err != nil {
		return nil, err
	}
	return RowsFromRecords(records)
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for line := 1; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("解析第 %d 行失败: %w", line, err)
		}
		records = append(records, record)
	}
}

// readXLSX 读取第一个工作表
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("打开 Excel 文件失败: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("读取工作表 %s 失败: %w", sheets[0], err)
	}
	return records, nil
}

// RowsFromRecords 第一行为表头，数据行号从 2 开始；全空的行被跳过，缺少姓名时记为 "Unknown"
func RowsFromRecords(records [][]string) ([]types.SheetRow, error) {
	if len(records) == 0 {
		return nil, ErrEmptySheet
	}

	header := records[0]
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := NormalizeHeader(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	columns := make(map[string]int, len(columnSynonyms))
	for field, names := range columnSynonyms {
		for _, n := range names {
			if i, ok := index[n]; ok {
				columns[field] = i
				break
			}
		}
	}
	if _, ok := columns["resume_link"]; !ok {
		return nil, ErrMissingResumeColumn
	}

	var rows []types.SheetRow
	for i, record := range records[1:] {
		if blankRecord(record) {
			continue
		}
		cell := func(field string) string {
			c, ok := columns[field]
			if !ok || c >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[c])
		}
		row := types.SheetRow{
			RowNumber:   i + 2,
			Name:        cell("name"),
			Email:       cell("email"),
			Phone:       cell("phone"),
			Experience:  cell("experience"),
			ExpectedCTC: cell("expected_ctc"),
			ResumeLink:  cell("resume_link"),
		}
		if row.Name == "" {
			row.Name = "Unknown"
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
