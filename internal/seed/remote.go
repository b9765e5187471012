package seed

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"

	"sql-sandbox/internal/config"
)

// Compile-time checks: every remote fetcher implements Fetcher.
var _ Fetcher = (*S3Fetcher)(nil)
var _ Fetcher = (*GCSFetcher)(nil)
var _ Fetcher = (*AzureFetcher)(nil)

// S3Fetcher reads seed scripts from S3-compatible object storage.
// It uses the AWS SDK v2 with path-style addressing.
type S3Fetcher struct {
	client *s3.Client
}

// NewS3Fetcher creates a fetcher from the KEY_ID/SECRET/ENDPOINT/REGION settings.
func NewS3Fetcher(cfg *config.Config) (*S3Fetcher, error) {
	if !cfg.HasS3Config() {
		return nil, fmt.Errorf("S3 config is incomplete: KEY_ID, SECRET, ENDPOINT and REGION are required for s3:// seeds")
	}

	endpoint := *cfg.S3Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	client := s3.New(s3.Options{
		Region: *cfg.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			*cfg.S3KeyID, *cfg.S3Secret, "",
		),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})
	return &S3Fetcher{client: client}, nil
}

// Fetch downloads the object at an s3://bucket/key location.
func (f *S3Fetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3Path(location)
	if err != nil {
		return nil, err
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", location, err)
	}
	return out.Body, nil
}

// GCSFetcher reads seed scripts from Google Cloud Storage.
type GCSFetcher struct {
	client *storage.Client
}

// NewGCSFetcher creates a GCS fetcher. With GCS_KEY_FILE set the service
// account file is used; otherwise application default credentials apply.
func NewGCSFetcher(ctx context.Context, cfg *config.Config) (*GCSFetcher, error) {
	var opts []option.ClientOption
	if cfg.GCSKeyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.GCSKeyFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSFetcher{client: client}, nil
}

// Fetch opens a reader on the object at a gs://bucket/key location.
func (f *GCSFetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseGCSPath(location)
	if err != nil {
		return nil, err
	}
	r, err := f.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object %q: %w", location, err)
	}
	return r, nil
}

// AzureFetcher reads seed scripts from Azure Blob Storage.
// Only account-key authentication is supported.
type AzureFetcher struct {
	client *azblob.Client
}

// NewAzureFetcher creates a fetcher from AZURE_ACCOUNT_NAME/AZURE_ACCOUNT_KEY.
func NewAzureFetcher(cfg *config.Config) (*AzureFetcher, error) {
	if !cfg.HasAzureConfig() {
		return nil, fmt.Errorf("Azure config is incomplete: AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY are required")
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureFetcher{client: client}, nil
}

// Fetch downloads the blob at an az://, abfss:// or https:// location.
func (f *AzureFetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	container, key, err := ParseAzurePath(location)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		return nil, fmt.Errorf("download blob %q: %w", location, err)
	}
	return resp.Body, nil
}

// ParseS3Path extracts bucket and key from an "s3://bucket/path/to/file" URI.
func ParseS3Path(s3Path string) (bucket, key string, err error) {
	return parseBucketPath(s3Path, "s3", "S3")
}

// ParseGCSPath extracts bucket and key from a "gs://bucket/path/to/file" URI.
func ParseGCSPath(path string) (bucket, key string, err error) {
	return parseBucketPath(path, "gs", "GCS")
}

func parseBucketPath(path, wantScheme, label string) (bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("parse %s path %q: %w", label, path, err)
	}
	if u.Scheme != wantScheme {
		return "", "", fmt.Errorf("expected %s:// scheme, got %q in %q", wantScheme, u.Scheme, path)
	}
	bucket = u.Host
	if bucket == "" {
		return "", "", fmt.Errorf("empty bucket in %s path %q", label, path)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("empty key in %s path %q", label, path)
	}
	return bucket, key, nil
}

// ParseAzurePath extracts container and key from an Azure storage URI.
//
// Supported formats:
//
//	abfss://container@account.dfs.core.windows.net/path/to/file
//	az://container/path/to/file
//	https://account.blob.core.windows.net/container/path/to/file
func ParseAzurePath(path string) (container, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("parse Azure path %q: %w", path, err)
	}

	switch u.Scheme {
	case "abfss":
		// Go's url.Parse treats "container" as userinfo and the account as host.
		if u.User == nil {
			return "", "", fmt.Errorf("abfss path %q missing container@account component", path)
		}
		container = u.User.Username()
		key = strings.TrimPrefix(u.Path, "/")

	case "az":
		container = u.Host
		key = strings.TrimPrefix(u.Path, "/")

	case "https":
		if !strings.Contains(u.Host, ".blob.core.windows.net") {
			return "", "", fmt.Errorf("unrecognized Azure HTTPS host %q in path %q", u.Host, path)
		}
		container, key, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")

	default:
		return "", "", fmt.Errorf("unrecognized Azure path scheme %q in %q", u.Scheme, path)
	}

	if container == "" {
		return "", "", fmt.Errorf("empty container in Azure path %q", path)
	}
	if key == "" {
		return "", "", fmt.Errorf("empty key in Azure path %q", path)
	}
	return container, key, nil
}
