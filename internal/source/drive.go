// Package source 批量导入的数据来源：候选人表格与 Google Drive 上的简历文件
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// ErrInvalidDriveLink 无法从链接中识别文件ID
var ErrInvalidDriveLink = errors.New("无效的 Google Drive 链接")

// DefaultMaxDownloadBytes 单个简历下载上限
const DefaultMaxDownloadBytes = 10 * 1024 * 1024

var (
	drivePathIDRe  = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
	driveQueryIDRe = regexp.MustCompile(`id=([a-zA-Z0-9_-]+)`)
	driveBareIDRe  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ExtractDriveFileID 支持 /file/d/ID/view、open?id=ID、uc?id=ID、/document/d/ID/edit 以及裸ID
func ExtractDriveFileID(link string) (string, bool) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", false
	}
	if m := drivePathIDRe.FindStringSubmatch(link); m != nil {
		return m[1], true
	}
	if m := driveQueryIDRe.FindStringSubmatch(link); m != nil {
		return m[1], true
	}
	if driveBareIDRe.MatchString(link) {
		return link, true
	}
	return "", false
}

// Downloader 按链接下载简历，返回内容与文件名
type Downloader interface {
	Download(ctx context.Context, link string) ([]byte, string, error)
}

// DriveDownloader 通过 Drive v3 接口下载文件
type DriveDownloader struct {
	svc      *drive.Service
	maxBytes int64
}

// NewDriveDownloader 使用服务账号凭据创建下载器；opts 追加在凭据之后，可覆盖 endpoint 等
func NewDriveDownloader(ctx context.Context, credentialsPath string, opts ...option.ClientOption) (*DriveDownloader, error) {
	var clientOpts []option.ClientOption
	if credentialsPath != "" {
		clientOpts = append(clientOpts,
			option.WithCredentialsFile(credentialsPath),
			option.WithScopes(drive.DriveReadonlyScope))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("初始化 Google Drive 服务失败: %w", err)
	}
	return &DriveDownloader{svc: svc, maxBytes: DefaultMaxDownloadBytes}, nil
}

// Download 先读取元数据获得文件名，再下载内容；元数据没有名称时使用 <id>.pdf
func (d *DriveDownloader) Download(ctx context.Context, link string) ([]byte, string, error) {
	fileID, ok := ExtractDriveFileID(link)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrInvalidDriveLink, link)
	}

	meta, err := d.svc.Files.Get(fileID).Fields("name, mimeType, size").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, "", fmt.Errorf("获取文件元数据失败 (%s): %w", fileID, err)
	}
	filename := meta.Name
	if filename == "" {
		filename = fileID + ".pdf"
	}

	resp, err := d.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, "", fmt.Errorf("下载文件失败 (%s): %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("读取文件内容失败 (%s): %w", fileID, err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, "", fmt.Errorf("文件 %s 超过大小上限 %d 字节", filename, d.maxBytes)
	}
	return data, filename, nil
}

// SetMaxBytes 调整下载上限
func (d *DriveDownloader) SetMaxBytes(n int64) {
	if n > 0 {
		d.maxBytes = n
	}
}
