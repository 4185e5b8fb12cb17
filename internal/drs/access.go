package drs

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/htsget-drs-server/internal/domain"
)

// accessID grammar: endpoint/bucket/object_name[?access=K&secret=K[&public=true]]
// The endpoint may carry an http(s) scheme; the object name may itself
// contain slashes.
var accessIDRe = regexp.MustCompile(`^((?:https?://)?[^/]+)/([^/?]+)/([^?]+)(?:\?(.+))?$`)

// parsedAccessID is a decomposed access_id.
type parsedAccessID struct {
	Endpoint string
	Bucket   string
	Object   string
	Access   string
	Secret   string
	Public   bool
}

// parseAccessID splits an access_id into its endpoint, bucket, object and
// optional inline credentials.
func parseAccessID(accessID string) (*parsedAccessID, error) {
	m := accessIDRe.FindStringSubmatch(accessID)
	if m == nil {
		return nil, fmt.Errorf("malformed access_id %q: should be endpoint/bucket/object: %w",
			accessID, domain.ErrBadRequest)
	}
	parsed := &parsedAccessID{Endpoint: m[1], Bucket: m[2], Object: m[3]}

	if m[4] != "" {
		query, err := url.ParseQuery(m[4])
		if err != nil {
			return nil, fmt.Errorf("malformed access_id query %q: %w", m[4], domain.ErrBadRequest)
		}
		parsed.Access = query.Get("access")
		parsed.Secret = query.Get("secret")
		parsed.Public = query.Get("public") == "true"
	}
	return parsed, nil
}

// GetAccessURL resolves an access_id into a presigned (or public) URL for
// the underlying object.
func (s *Service) GetAccessURL(ctx context.Context, accessID string) (*domain.S3Object, error) {
	parsed, err := parseAccessID(accessID)
	if err != nil {
		return nil, err
	}
	obj, err := s.s3.GetS3URL(ctx, parsed.Endpoint, parsed.Bucket, parsed.Object,
		parsed.Access, parsed.Secret, "", parsed.Public)
	if err != nil {
		return nil, err
	}
	return obj, nil
}
