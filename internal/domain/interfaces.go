package domain

import "context"

// PolicyClient is the interface the core consumes from the external policy
// decision point.
type PolicyClient interface {
	IsActionAllowedForProgram(ctx context.Context, token, method, path, program string) (bool, error)
	GetAuthorizedCohorts(ctx context.Context, token string) ([]string, error)
	IsSiteAdmin(ctx context.Context, token string) (bool, error)
	VerifyServiceToken(ctx context.Context, service, token string) (bool, error)
}

// S3URLProvider resolves presigned GET URLs for S3-compatible stores.
type S3URLProvider interface {
	// GetS3URL presigns a GET for endpoint/bucket/object. When accessKey is
	// empty and public is false, credentials are obtained from the issuer.
	GetS3URL(ctx context.Context, endpoint, bucket, object, accessKey, secretKey, region string, public bool) (*S3Object, error)
}

// S3Object is the result of an access-URL resolution.
type S3Object struct {
	URL  string `json:"url"`
	ETag string `json:"etag,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// CredentialIssuer hands out S3 credentials for an endpoint/bucket pair.
type CredentialIssuer interface {
	GetCredential(ctx context.Context, endpoint, bucket string) (access, secret string, err error)
	StoreCredential(ctx context.Context, endpoint, bucket, access, secret string) error
}
