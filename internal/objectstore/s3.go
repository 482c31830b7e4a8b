// Package objectstore keeps the original resume bytes in an S3-compatible
// bucket (AWS S3, Cloudflare R2, MinIO).
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"skillsync/internal/config"
)

// ErrObjectExists is returned by Put when the key is already taken.
var ErrObjectExists = errors.New("object already exists")

type Store struct {
	client     *s3.Client
	bucket     string
	namespace  string
	endpoint   string
	region     string
	publicBase string
}

func New(ctx context.Context, cfg config.ObjectStorageConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("object storage bucket is not configured")
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &Store{
		client:     client,
		bucket:     cfg.Bucket,
		namespace:  strings.Trim(cfg.Namespace, "/"),
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		region:     cfg.Region,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Key builds {namespace}/{userID}/{unixMillis}-{fileName}.
func (s *Store) Key(userID int64, at time.Time, fileName string) string {
	return objectKey(s.namespace, userID, at, fileName)
}

func objectKey(namespace string, userID int64, at time.Time, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" {
		name = "resume"
	}
	parts := []string{strconv.FormatInt(userID, 10), fmt.Sprintf("%d-%s", at.UnixMilli(), name)}
	if namespace != "" {
		parts = append([]string{namespace}, parts...)
	}
	return strings.Join(parts, "/")
}

// Put uploads body under key and fails with ErrObjectExists instead of
// overwriting.
func (s *Store) Put(ctx context.Context, key, contentType string, body []byte) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		IfNoneMatch:   aws.String("*"),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("put %s: %w", key, ErrObjectExists)
		}
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// URL returns the public retrieval URL for key.
func (s *Store) URL(key string) string {
	return publicURL(s.publicBase, s.endpoint, s.bucket, s.region, key)
}

func publicURL(publicBase, endpoint, bucket, region, key string) string {
	escaped := escapeKey(key)
	switch {
	case publicBase != "":
		return publicBase + "/" + escaped
	case endpoint != "":
		return endpoint + "/" + bucket + "/" + escaped
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, escaped)
	}
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
