package objstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-admin/internal/config"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(config.MinIOConfig{})
	assert.Error(t, err)

	_, err = NewClient(config.MinIOConfig{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "MINIO_ROOT_USER")

	c, err := NewClient(config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBucket, c.Bucket())
}

func TestReportKey(t *testing.T) {
	assert.Equal(t, "reports/rpt-abc.csv", ReportKey("rpt-abc"))
}

// 需要本地 MinIO：MINIO_TEST_ENDPOINT=localhost:9000
func TestUploadDownload(t *testing.T) {
	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set")
	}
	ctx := context.Background()
	c, err := Open(ctx, config.MinIOConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ROOT_USER"),
		SecretKey: os.Getenv("MINIO_ROOT_PASSWORD"),
		Bucket:    "library-test",
	})
	require.NoError(t, err)

	data := []byte("type,date\nBORROW,2026-01-01\n")
	key := ReportKey("rpt-test")
	require.NoError(t, c.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "text/csv"))
	t.Cleanup(func() { c.Delete(context.Background(), key) })

	rc, err := c.Download(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = c.Download(ctx, ReportKey("missing"))
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.NoError(t, c.Delete(ctx, ReportKey("missing")))
}
