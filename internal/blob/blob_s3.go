package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/openmined/sitesync/internal/utils"
)

const retentionMetaKey = "retention"

// S3Store keeps blobs in a bucket under "<prefix>/blobs/<sha256>". Identical content is
// uploaded once.
type S3Store struct {
	client *s3.Client
	config *S3Config
}

func NewS3Store(client *s3.Client, cfg *S3Config) *S3Store {
	return &S3Store{client: client, config: cfg}
}

// NewS3StoreWithConfig builds the S3 client from static credentials.
func NewS3StoreWithConfig(ctx context.Context, cfg *S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 60 * time.Second,
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	slog.Debug("s3 blob store", "bucket", cfg.BucketName, "region", cfg.Region, "endpoint", cfg.Endpoint, "accessKey", utils.MaskSecret(cfg.AccessKey))
	return NewS3Store(client, cfg), nil
}

func (s *S3Store) Put(ctx context.Context, params *PutParams) (*Ref, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	address := ContentAddress(params.Data)
	key := s.config.key(address)
	ref := &Ref{ContentID: s.config.BucketName + "/" + key, ContentAddress: address}
	expires := time.Now().Add(params.Retention).UTC()

	head, err := s.head(ctx, key)
	if err != nil {
		return nil, err
	}
	if head != nil {
		if current, ok := headExpires(head); ok && !current.Before(expires) {
			slog.Debug("blob exists", "key", key)
			ref.ContentID = withVersion(ref.ContentID, aws.ToString(head.VersionId))
			return ref, nil
		}
		version, err := s.refresh(ctx, key, head, params, expires)
		if err != nil {
			return nil, err
		}
		ref.ContentID = withVersion(ref.ContentID, version)
		slog.Debug("blob retention extended", "key", key, "expires", expires)
		return ref, nil
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(params.Data),
		ContentLength: aws.Int64(int64(len(params.Data))),
		Expires:       aws.Time(expires),
		Metadata:      map[string]string{retentionMetaKey: params.Retention.String()},
	}
	if params.ContentType != "" {
		input.ContentType = aws.String(params.ContentType)
	}

	resp, err := s.client.PutObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}
	ref.ContentID = withVersion(ref.ContentID, aws.ToString(resp.VersionId))

	slog.Debug("blob put", "key", key, "size", len(params.Data))
	return ref, nil
}

// refresh copies an object onto itself with a later Expires and returns the new version id.
func (s *S3Store) refresh(ctx context.Context, key string, head *s3.HeadObjectOutput, params *PutParams, expires time.Time) (string, error) {
	contentType := params.ContentType
	if contentType == "" {
		contentType = aws.ToString(head.ContentType)
	}

	input := &s3.CopyObjectInput{
		Bucket:            aws.String(s.config.BucketName),
		Key:               aws.String(key),
		CopySource:        aws.String(s.config.BucketName + "/" + key),
		MetadataDirective: types.MetadataDirectiveReplace,
		Expires:           aws.Time(expires),
		Metadata:          map[string]string{retentionMetaKey: params.Retention.String()},
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	resp, err := s.client.CopyObject(ctx, input)
	if err != nil {
		return "", fmt.Errorf("refresh object %s: %w", key, err)
	}
	return aws.ToString(resp.VersionId), nil
}

// head returns nil, nil when the object does not exist.
func (s *S3Store) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.BucketName),
		Key:    aws.String(key),
	})
	if err == nil {
		return out, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("head object %s: %w", key, err)
}

func headExpires(head *s3.HeadObjectOutput) (time.Time, bool) {
	raw := aws.ToString(head.ExpiresString)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func withVersion(contentID, version string) string {
	if version == "" {
		return contentID
	}
	return contentID + "?versionId=" + version
}
