package coverage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"git.home.luguber.info/inful/matrixci/internal/config"
)

// objectClient is the subset of the minio client the uploader needs.
type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, key, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Uploader stores reports in an S3-compatible bucket.
type S3Uploader struct {
	client objectClient
	bucket string
	prefix string
	region string
}

// NewS3Uploader creates a minio-backed uploader. Credentials come from the
// environment variables named in cfg.
func NewS3Uploader(cfg config.S3Config) (*S3Uploader, error) {
	if strings.Contains(cfg.Endpoint, "://") {
		return nil, fmt.Errorf("s3 endpoint must not include scheme: %q", cfg.Endpoint)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv(cfg.AccessKeyEnv), os.Getenv(cfg.SecretKeyEnv), ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, region: cfg.Region}, nil
}

func (u *S3Uploader) Kind() config.UploaderKind { return config.UploaderS3 }

// ObjectKey returns <prefix>/<run>/<entry>/<file>.
func ObjectKey(prefix, runID, entryID, file string) string {
	return path.Join(strings.Trim(prefix, "/"), runID, entryID, filepath.Base(file))
}

func (u *S3Uploader) Upload(ctx context.Context, req Request) (string, error) {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return "", fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
			return "", fmt.Errorf("create bucket %s: %w", u.bucket, err)
		}
	}

	key := ObjectKey(u.prefix, req.RunID, req.EntryID, req.File)
	contentType := "application/octet-stream"
	if strings.HasSuffix(req.File, ".xml") {
		contentType = "application/xml"
	}
	if _, err := u.client.FPutObject(ctx, u.bucket, key, req.File, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
