// Package storage publishes rendered outputs to S3 or an S3-compatible
// service.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"dosecast/pkg/config"
)

// Uploader stores one object
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// putter is the part of the S3 client used here
type putter interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// Disabled accepts and discards every upload
type Disabled struct{}

// Upload does nothing
func (Disabled) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}

// S3Uploader puts objects into one bucket under a key prefix
type S3Uploader struct {
	client  putter
	bucket  string
	prefix  string
	timeout time.Duration
	verbose bool
}

// New returns an uploader for the storage section of cfg, or Disabled when
// no bucket is configured
func New(cfg *config.Config) (Uploader, error) {
	if cfg.Storage.Bucket == "" {
		return Disabled{}, nil
	}
	return NewS3Uploader(cfg)
}

// NewS3Uploader creates an S3 session from the storage configuration.
// Static credentials are taken from S3_ACCESS_KEY and S3_SECRET_KEY when
// both are set.
func NewS3Uploader(cfg *config.Config) (*S3Uploader, error) {
	st := cfg.Storage
	if st.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is not configured")
	}

	awsCfg := &aws.Config{
		Region: aws.String(st.Region),
	}
	if key, secret := os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_SECRET_KEY"); key != "" && secret != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(key, secret, "")
	}
	if st.Endpoint != "" {
		awsCfg.Endpoint = aws.String(st.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	timeout := time.Duration(st.UploadTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &S3Uploader{
		client:  s3.New(sess),
		bucket:  st.Bucket,
		prefix:  st.Prefix,
		timeout: timeout,
		verbose: cfg.Output.Verbose,
	}, nil
}

// Key returns the object key for name under the configured prefix
func (u *S3Uploader) Key(name string) string {
	prefix := strings.Trim(u.prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Upload puts data at the prefixed key
func (u *S3Uploader) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	key = u.Key(key)
	size := int64(len(data))
	_, err := u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	if u.verbose {
		log.Printf("Uploaded %s to s3://%s (%d bytes)", key, u.bucket, size)
	}
	return nil
}

// ContentType guesses the MIME type of a file from its extension
func ContentType(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// UploadFiles uploads each file under its base name and stops at the first
// failure
func UploadFiles(ctx context.Context, u Uploader, paths ...string) error {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		if err := u.Upload(ctx, filepath.Base(p), data, ContentType(p)); err != nil {
			return err
		}
	}
	return nil
}
