package ratingarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/bank-support/internal/domain/support"
)

// Config locates the bucket ratings are mirrored to.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
}

// S3Archive writes every rating as a JSON object to an S3-compatible bucket
// (MinIO, R2, S3), one object per rating.
type S3Archive struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger

	bucketMu    sync.Mutex
	bucketReady bool
}

// NewS3Archive constructs the archive. The bucket is created lazily on the
// first write.
func NewS3Archive(cfg Config, logger *slog.Logger) (*S3Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("rating archive bucket cannot be empty")
	}
	client, err := minio.New(sanitizeEndpoint(cfg.Endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       strings.HasPrefix(strings.ToLower(strings.TrimSpace(cfg.Endpoint)), "https"),
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init rating archive client: %w", err)
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "ratings"
	}
	return &S3Archive{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		logger: logger.With("component", "ratingarchive.s3"),
	}, nil
}

// Archive uploads rating as JSON.
func (a *S3Archive) Archive(ctx context.Context, rating support.Rating) error {
	if err := a.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", a.bucket, err)
	}
	payload, err := json.Marshal(rating)
	if err != nil {
		return err
	}
	key := objectKey(a.prefix, rating)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType:      "application/json",
		DisableMultipart: true,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	a.logger.Debug("rating archived", "key", key)
	return nil
}

func (a *S3Archive) ensureBucket(ctx context.Context) error {
	a.bucketMu.Lock()
	defer a.bucketMu.Unlock()
	if a.bucketReady {
		return nil
	}
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil || !exists {
		err = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
			return err
		}
	}
	a.bucketReady = true
	return nil
}

// objectKey partitions ratings by day: <prefix>/2006/01/02/<id>.json.
func objectKey(prefix string, rating support.Rating) string {
	return fmt.Sprintf("%s/%s/%s.json", prefix, rating.CreatedAt.UTC().Format("2006/01/02"), rating.ID)
}

// sanitizeEndpoint strips scheme and path, which minio.New rejects.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

var _ support.RatingArchive = (*S3Archive)(nil)
