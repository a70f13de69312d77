package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store implements ObjectStore against any S3-compatible service via the
// minio SDK. All keys are namespaced under a fixed prefix inside one bucket.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// S3Config carries the connection settings for an S3 target.
type S3Config struct {
	Endpoint  string // host[:port], required
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// NewS3 creates an S3-backed store.
func NewS3(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// NewS3FromEnv builds an S3 store from an "s3://bucket/prefix" target URI.
// Endpoint and credentials come from the environment: OPAMSNAP_S3_ENDPOINT
// (default s3.amazonaws.com), OPAMSNAP_S3_ACCESS_KEY, OPAMSNAP_S3_SECRET_KEY,
// OPAMSNAP_S3_REGION, OPAMSNAP_S3_INSECURE.
func NewS3FromEnv(target string) (*S3Store, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset target %q: %w", target, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return nil, fmt.Errorf("invalid dataset target %q: want s3://bucket/prefix", target)
	}

	endpoint := os.Getenv("OPAMSNAP_S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	return NewS3(S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("OPAMSNAP_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("OPAMSNAP_S3_SECRET_KEY"),
		Region:    os.Getenv("OPAMSNAP_S3_REGION"),
		UseSSL:    os.Getenv("OPAMSNAP_S3_INSECURE") == "",
		Bucket:    u.Host,
		Prefix:    u.Path,
	})
}

// Get reads the object at key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classify(err, key)
	}
	return data, nil
}

// Put writes data at key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

// List returns all keys under prefix, sorted, with the store prefix
// stripped back off.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		key := obj.Key
		if s.prefix != "" {
			key = strings.TrimPrefix(key, s.prefix+"/")
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *S3Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// classify maps minio errors onto the store's taxonomy.
func classify(err error, key string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}

var _ ObjectStore = (*S3Store)(nil)
