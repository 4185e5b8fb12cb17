package external

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/htsget-drs-server/internal/domain"
)

// presignExpiry bounds how long a handed-out object URL stays valid.
const presignExpiry = time.Hour

// S3Client resolves DRS access IDs into presigned object URLs. Credentials
// come from the request itself, or from the issuer when the caller did not
// supply any; public buckets skip signing entirely.
type S3Client struct {
	issuer domain.CredentialIssuer
}

// NewS3Client creates a presigner backed by the given credential issuer.
// The issuer may be nil, in which case only explicit or public access works.
func NewS3Client(issuer domain.CredentialIssuer) *S3Client {
	return &S3Client{issuer: issuer}
}

// GetS3URL presigns a GET for endpoint/bucket/object and stats the object
// so callers get size and etag alongside the URL. A public bucket yields a
// bare unsigned URL.
func (s *S3Client) GetS3URL(ctx context.Context, endpoint, bucket, object, accessKey, secretKey, region string, public bool) (*domain.S3Object, error) {
	host, secure := splitEndpoint(endpoint)

	if public {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		return &domain.S3Object{
			URL: fmt.Sprintf("%s://%s/%s/%s", scheme, host, bucket, object),
		}, nil
	}

	if accessKey == "" {
		if s.issuer == nil {
			return nil, fmt.Errorf("no credentials for %s/%s: %w", endpoint, bucket, domain.ErrNotFound)
		}
		var err error
		accessKey, secretKey, err = s.issuer.GetCredential(ctx, host, bucket)
		if err != nil {
			return nil, err
		}
	} else if s.issuer != nil {
		// remember caller-supplied keys so later requests can omit them
		if err := s.issuer.StoreCredential(ctx, host, bucket, accessKey, secretKey); err != nil {
			return nil, err
		}
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client for %s: %w", host, err)
	}

	stat, err := client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.StatusCode == 404 {
			return nil, fmt.Errorf("object %s/%s: %w", bucket, object, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("statting object %s/%s: %w", bucket, object, domain.ErrUpstream)
	}

	signed, err := client.PresignedGetObject(ctx, bucket, object, presignExpiry, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("presigning object %s/%s: %w", bucket, object, domain.ErrUpstream)
	}

	return &domain.S3Object{
		URL:  signed.String(),
		ETag: stat.ETag,
		Size: stat.Size,
	}, nil
}

// splitEndpoint strips the scheme off an endpoint spelling and reports
// whether it implies TLS. A bare host defaults to https.
func splitEndpoint(endpoint string) (host string, secure bool) {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), false
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), true
	default:
		return endpoint, true
	}
}
