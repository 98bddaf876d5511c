package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const s3Backend = "s3"

// S3Options configures the S3 backend.
type S3Options struct {
	Endpoint  string
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// S3 stores entries as objects named <prefix>/<scope>/<fingerprint>.json in
// an S3-compatible bucket. Object PUTs are atomic, so concurrent writers of
// the same key never produce a mixed entry.
type S3 struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	mu    sync.Mutex
	ready bool
}

// NewS3 creates an S3 store for scope. The bucket is created on first use
// if it does not exist.
func NewS3(opts S3Options, scope Scope) (*S3, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}

	var creds *credentials.Credentials
	if opts.AccessKey != "" || opts.SecretKey != "" {
		creds = credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.Secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3{
		client: client,
		bucket: bucket,
		region: region,
		prefix: objectPrefix(opts.Prefix, scope),
	}, nil
}

// ensureBucket checks for the bucket and creates it if needed. Only success
// is remembered, so a transient failure is retried by the next call.
func (s *S3) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

func (s *S3) Get(ctx context.Context, fp string) (string, bool, error) {
	if err := checkFingerprint(s3Backend, "get", fp); err != nil {
		return "", false, err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", false, &Error{Op: "get", Backend: s3Backend, Fingerprint: fp, Err: fmt.Errorf("ensure bucket: %w", err)}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(fp), minio.GetObjectOptions{})
	if err != nil {
		return "", false, &Error{Op: "get", Backend: s3Backend, Fingerprint: fp, Err: err}
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, &Error{Op: "get", Backend: s3Backend, Fingerprint: fp, Err: err}
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false, &Error{Op: "get", Backend: s3Backend, Fingerprint: fp, Err: fmt.Errorf("corrupt cache entry: %w", err)}
	}
	return entry.Analysis, true, nil
}

func (s *S3) Put(ctx context.Context, fp, analysis string) error {
	if err := checkFingerprint(s3Backend, "put", fp); err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return &Error{Op: "put", Backend: s3Backend, Fingerprint: fp, Err: fmt.Errorf("ensure bucket: %w", err)}
	}
	if existing, ok, err := s.Get(ctx, fp); err == nil && ok && existing == analysis {
		return nil
	}

	data, err := json.Marshal(Entry{Fingerprint: fp, Analysis: analysis, CreatedAt: time.Now().UTC()})
	if err != nil {
		return &Error{Op: "put", Backend: s3Backend, Fingerprint: fp, Err: fmt.Errorf("marshaling cache entry: %w", err)}
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.objectKey(fp), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return &Error{Op: "put", Backend: s3Backend, Fingerprint: fp, Err: err}
	}
	return nil
}

func (s *S3) objectKey(fp string) string {
	return s.prefix + fp + ".json"
}

func objectPrefix(prefix string, scope Scope) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return scope.Name() + "/"
	}
	return path.Join(prefix, scope.Name()) + "/"
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
