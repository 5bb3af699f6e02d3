// Package storage uploads exports to S3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"

	"emperror.dev/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/takak2166/zotero2brain/internal/logger"
	"github.com/takak2166/zotero2brain/internal/translator"
)

const contentType = "text/plain; charset=utf-8"

var ErrInvalidTarget = errors.New("invalid s3 target")

type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Target is the bucket and object an export is written to.
type Target struct {
	Bucket string
	Key    string
}

func (t Target) String() string {
	return "s3://" + t.Bucket + "/" + t.Key
}

// IsTarget reports whether an output name points to object storage.
func IsTarget(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// ParseTarget splits s3://bucket/path/to/key.
func ParseTarget(s string) (Target, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "%s: %v", s, err)
	}
	if u.Scheme != "s3" {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "%s: scheme must be s3", s)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "%s: need s3://bucket/key", s)
	}
	return Target{Bucket: u.Host, Key: key}, nil
}

// objectStore is the part of *minio.Client the sink needs
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Sink collects the rendered export and uploads it as one object on Close.
type S3Sink struct {
	s3     objectStore
	target Target
	buf    bytes.Buffer
	text   *translator.TextSink
}

func NewS3Sink(ctx context.Context, cfg Config, target Target) (*S3Sink, error) {
	s3, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to s3 instance %s", cfg.Endpoint)
	}
	return newSink(s3, target), nil
}

func newSink(s3 objectStore, target Target) *S3Sink {
	s := &S3Sink{s3: s3, target: target}
	s.text = translator.NewTextSink(&s.buf)
	return s
}

func (s *S3Sink) WriteRecord(ctx context.Context, rec *translator.Record) error {
	return s.text.WriteRecord(ctx, rec)
}

// Close uploads everything written so far, creating the bucket if needed.
func (s *S3Sink) Close(ctx context.Context) error {
	found, err := s.s3.BucketExists(ctx, s.target.Bucket)
	if err != nil {
		return errors.Wrapf(err, "cannot check bucket %s", s.target.Bucket)
	}
	if !found {
		logger.Info("Creating bucket", map[string]interface{}{"bucket": s.target.Bucket})
		if err := s.s3.MakeBucket(ctx, s.target.Bucket, minio.MakeBucketOptions{}); err != nil {
			return errors.Wrapf(err, "cannot create bucket %s", s.target.Bucket)
		}
	}

	size := int64(s.buf.Len())
	info, err := s.s3.PutObject(ctx, s.target.Bucket, s.target.Key, bytes.NewReader(s.buf.Bytes()), size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrapf(err, "cannot upload %s", s.target)
	}
	logger.Info("Uploaded export", map[string]interface{}{
		"target": s.target.String(),
		"size":   info.Size,
	})
	return nil
}
