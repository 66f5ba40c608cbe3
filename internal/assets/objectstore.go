package assets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultPresignExpiry is used when ObjectStoreConfig.PresignExpiry is zero.
const DefaultPresignExpiry = 15 * time.Minute

// ObjectStoreConfig holds the bucket connection settings.
type ObjectStoreConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	Region        string
	Bucket        string
	Prefix        string
	PresignExpiry time.Duration
}

// ObjectStore is the part of *minio.Client the object store source uses.
type ObjectStore interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// NewMinioClient connects to the configured S3-compatible endpoint.
func NewMinioClient(cfg ObjectStoreConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("object store endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// ObjectStoreSource serves galleries straight from a bucket laid out as
// <prefix>/<gemID>/<kinds>/<file>, handing out presigned GET URLs.
type ObjectStoreSource struct {
	store  ObjectStore
	bucket string
	prefix string
	expiry time.Duration
}

// NewObjectStoreSource creates an ObjectStoreSource.
func NewObjectStoreSource(store ObjectStore, cfg ObjectStoreConfig) (*ObjectStoreSource, error) {
	if store == nil {
		return nil, errors.New("object store client is nil")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("object store bucket is required")
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return &ObjectStoreSource{
		store:  store,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		expiry: expiry,
	}, nil
}

// URLs implements Source. Objects are returned in key order.
func (s *ObjectStoreSource) URLs(ctx context.Context, gemID string, kind Kind) ([]string, error) {
	if strings.ContainsAny(gemID, "/\\") || gemID == "" || gemID == "." || gemID == ".." {
		return nil, fmt.Errorf("invalid gem id %q", gemID)
	}
	prefix := path.Join(s.prefix, gemID, kind.Plural()) + "/"

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	urls := []string{}
	for obj := range s.store.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s objects: %w", kind, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		u, err := s.store.PresignedGetObject(ctx, s.bucket, obj.Key, s.expiry, nil)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", obj.Key, err)
		}
		urls = append(urls, u.String())
	}
	return urls, nil
}
