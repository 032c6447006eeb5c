package cli

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/vecmatch/blobstore"
	miniostore "github.com/hupe1980/vecmatch/blobstore/minio"
	s3store "github.com/hupe1980/vecmatch/blobstore/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Supported reference schemes.
const (
	schemeDir   = "dir"
	schemeS3    = "s3"
	schemeMinIO = "minio"
)

// storeRef addresses a blob store location and, optionally, a collection
// inside it:
//
//	dir://path/to/root[/name]
//	s3://bucket[/prefix][/name]
//	minio://bucket[/prefix][/name]
type storeRef struct {
	Scheme string
	// Location is the directory for dir:// and the bucket otherwise.
	Location string
	Prefix   string
	Name     string
}

func isStoreRef(ref string) bool {
	for _, s := range []string{schemeDir, schemeS3, schemeMinIO} {
		if strings.HasPrefix(ref, s+"://") {
			return true
		}
	}
	return false
}

// parseStoreRef parses ref. With named set, the last path element is the
// collection name.
func parseStoreRef(ref string, named bool) (storeRef, error) {
	scheme, rest, ok := strings.Cut(ref, "://")
	if !ok || !isStoreRef(ref) {
		return storeRef{}, fmt.Errorf("unsupported store reference %q (want dir://, s3:// or minio://)", ref)
	}

	r := storeRef{Scheme: scheme}
	if named {
		rest = strings.TrimSuffix(rest, "/")
		i := strings.LastIndex(rest, "/")
		if i < 0 || i == len(rest)-1 {
			return storeRef{}, fmt.Errorf("store reference %q has no collection name", ref)
		}
		rest, r.Name = rest[:i], rest[i+1:]
	}

	if scheme == schemeDir {
		if rest == "" {
			return storeRef{}, fmt.Errorf("store reference %q has no directory", ref)
		}
		r.Location = filepath.FromSlash(rest)
		return r, nil
	}

	rest = strings.Trim(rest, "/")
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return storeRef{}, fmt.Errorf("store reference %q has no bucket", ref)
	}
	r.Location = bucket
	if prefix != "" {
		r.Prefix = path.Clean(prefix) + "/"
	}
	return r, nil
}

func (r storeRef) String() string {
	s := r.Scheme + "://" + filepath.ToSlash(r.Location)
	if r.Prefix != "" {
		s += "/" + strings.TrimSuffix(r.Prefix, "/")
	}
	if r.Name != "" {
		s += "/" + r.Name
	}
	return s
}

// openStore connects to the blob store addressed by r.
func openStore(ctx context.Context, r storeRef, cfg StorageConfig) (blobstore.Store, error) {
	switch r.Scheme {
	case schemeDir:
		return blobstore.NewLocalStore(r.Location), nil
	case schemeS3:
		var optFns []func(*config.LoadOptions) error
		if cfg.S3.Region != "" {
			optFns = append(optFns, config.WithRegion(cfg.S3.Region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
				o.UsePathStyle = true
			}
		})
		return s3store.NewStore(client, r.Location, r.Prefix), nil
	case schemeMinIO:
		if cfg.MinIO.Endpoint == "" {
			return nil, fmt.Errorf("minio endpoint is required, use --minio-endpoint")
		}
		client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		return miniostore.NewStore(client, r.Location, r.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported scheme %q", r.Scheme)
	}
}
