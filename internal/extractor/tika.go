package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// tikaClient 基于Apache Tika服务器的PDF提取
type tikaClient struct {
	serverURL string
	client    *http.Client
}

func newTikaClient(serverURL string, timeout time.Duration) *tikaClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &tikaClient{
		serverURL: strings.TrimRight(serverURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}
}

func (t *tikaClient) Strategy() PDFStrategy {
	return PDFStrategy{Name: "tika", Extract: t.extract}
}

// extract 以纯文本模式调用 PUT /tika
func (t *tikaClient) extract(ctx context.Context, data []byte, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "text/plain")
	if filename != "" {
		req.Header.Set("X-Tika-Resource-Name", filename)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Tika响应失败: %w", err)
	}
	return string(body), nil
}
