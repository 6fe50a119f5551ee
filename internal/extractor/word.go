package extractor

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// extractWord 先输出所有正文段落(每段一行)，再输出表格(同行单元格以空格分隔，每行一行)
// 没有OCR兜底，旧版二进制 .doc 会在读取容器时失败
func (e *Engine) extractWord(data []byte, filename string) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", newFailedError(filename, "word", "无法读取Word文档容器", err)
	}
	defer doc.Close()

	text, err := documentText(doc.Editable().GetContent())
	if err != nil {
		return "", newFailedError(filename, "word", "document.xml 解析失败", err)
	}
	return text, nil
}

// documentText 遍历 WordprocessingML，分别收集正文段落和表格行
func documentText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))

	var (
		paragraphs []string
		rows       []string
		cells      []string
		para       strings.Builder
		cell       strings.Builder
		tblDepth   int
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
			case "tr":
				if tblDepth == 1 {
					cells = cells[:0]
				}
			case "tc":
				if tblDepth == 1 {
					cell.Reset()
				}
			case "t":
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br", "cr":
				para.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := para.String()
				para.Reset()
				if tblDepth == 0 {
					paragraphs = append(paragraphs, text)
				} else if strings.TrimSpace(text) != "" {
					if cell.Len() > 0 {
						cell.WriteString(" ")
					}
					cell.WriteString(strings.TrimSpace(text))
				}
			case "tc":
				if tblDepth == 1 {
					cells = append(cells, cell.String())
				}
			case "tr":
				if tblDepth == 1 {
					rows = append(rows, strings.Join(cells, " "))
				}
			case "tbl":
				tblDepth--
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}

	var sb strings.Builder
	for _, p := range paragraphs {
		sb.WriteString(p)
		sb.WriteString("\n")
	}
	for _, r := range rows {
		sb.WriteString(r)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
