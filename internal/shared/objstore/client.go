// Package objstore 在 MinIO 中保存生成的报表 CSV
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"library-admin/internal/config"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("object not found")

// DefaultBucket 未配置 bucket 时使用
const DefaultBucket = "library-reports"

const reportPrefix = "reports/"

// ReportKey 报表文件的对象键
func ReportKey(reportID string) string {
	return reportPrefix + reportID + ".csv"
}

// Client 报表文件存储
type Client struct {
	mc     *minio.Client
	bucket string
}

// NewClient 校验配置并创建客户端，不访问网络
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	switch {
	case cfg.Endpoint == "":
		return nil, fmt.Errorf("minio endpoint is required")
	case cfg.AccessKey == "" || cfg.SecretKey == "":
		return nil, fmt.Errorf("MINIO_ROOT_USER and MINIO_ROOT_PASSWORD are required for %s", cfg.Endpoint)
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	c := &Client{mc: mc, bucket: cfg.Bucket}
	if c.bucket == "" {
		c.bucket = DefaultBucket
	}
	return c, nil
}

// Open 创建客户端并确保 bucket 存在
func Open(ctx context.Context, cfg config.MinIOConfig) (*Client, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Bucket 当前 bucket 名称
func (c *Client) Bucket() string {
	return c.bucket
}

// EnsureBucket bucket 不存在时创建
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Upload 写入报表文件，size 必须准确
func (c *Client) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if opts.ContentType == "" {
		opts.ContentType = "text/csv"
	}
	if _, err := c.mc.PutObject(ctx, c.bucket, key, r, size, opts); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Download 读取报表文件，调用方负责 Close
func (c *Client) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	// 错误延迟到首次读取，先 Stat
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	return obj, nil
}

// Delete 删除报表文件，不存在视为成功
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.mc.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
