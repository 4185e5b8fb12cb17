package authz

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// fakePolicy is a canned policy decision point.
type fakePolicy struct {
	admin        bool
	allowed      bool
	cohorts      []string
	serviceOK    bool
	err          error
	lastProgram  string
	lastMethod   string
	lastPath     string
	adminChecked bool
}

func (f *fakePolicy) IsActionAllowedForProgram(ctx context.Context, token, method, path, program string) (bool, error) {
	f.lastMethod, f.lastPath, f.lastProgram = method, path, program
	return f.allowed, f.err
}

func (f *fakePolicy) GetAuthorizedCohorts(ctx context.Context, token string) ([]string, error) {
	return f.cohorts, f.err
}

func (f *fakePolicy) IsSiteAdmin(ctx context.Context, token string) (bool, error) {
	f.adminChecked = true
	return f.admin, f.err
}

func (f *fakePolicy) VerifyServiceToken(ctx context.Context, service, token string) (bool, error) {
	return f.serviceOK, f.err
}

func newAuthorizer(policy *fakePolicy, testKey string) *Authorizer {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(policy, testKey, logger)
}

func TestToken(t *testing.T) {
	assert.Equal(t, "abc", Token("Bearer abc"))
	assert.Equal(t, "abc", Token("abc"))
	assert.Equal(t, "", Token(""))
}

func TestIsTesting(t *testing.T) {
	auth := newAuthorizer(&fakePolicy{}, "testtesttest")
	assert.True(t, auth.IsTesting("Bearer testtesttest"))
	assert.True(t, auth.IsTesting("testtesttest"))
	assert.False(t, auth.IsTesting("Bearer other"))

	// no configured key means no bypass, ever
	auth = newAuthorizer(&fakePolicy{}, "")
	assert.False(t, auth.IsTesting(""))
}

func TestIsAuthed(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		header string
		policy *fakePolicy
		want   int
	}{
		{"no header", "", &fakePolicy{allowed: true}, http.StatusUnauthorized},
		{"test key", "Bearer testtesttest", &fakePolicy{}, http.StatusOK},
		{"site admin", "Bearer tok", &fakePolicy{admin: true}, http.StatusOK},
		{"allowed", "Bearer tok", &fakePolicy{allowed: true}, http.StatusOK},
		{"denied", "Bearer tok", &fakePolicy{}, http.StatusForbidden},
		{"policy error fails closed", "Bearer tok", &fakePolicy{err: errors.New("opa down")}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := newAuthorizer(tt.policy, "testtesttest")
			assert.Equal(t, tt.want, auth.IsAuthed(ctx, tt.header, "GET", "/ga4gh/drs/v1/objects"))
		})
	}
}

func TestIsCohortAuthorized(t *testing.T) {
	ctx := context.Background()

	policy := &fakePolicy{allowed: true}
	auth := newAuthorizer(policy, "testtesttest")
	assert.True(t, auth.IsCohortAuthorized(ctx, "Bearer tok", "GET", "/htsget/v1/variants/x", "pilot"))
	assert.Equal(t, "pilot", policy.lastProgram)
	assert.Equal(t, "GET", policy.lastMethod)

	// test key never reaches the policy engine
	policy = &fakePolicy{}
	auth = newAuthorizer(policy, "testtesttest")
	assert.True(t, auth.IsCohortAuthorized(ctx, "Bearer testtesttest", "GET", "/x", "pilot"))
	assert.False(t, policy.adminChecked)

	auth = newAuthorizer(&fakePolicy{err: errors.New("opa down")}, "")
	assert.False(t, auth.IsCohortAuthorized(ctx, "Bearer tok", "GET", "/x", "pilot"))
}

func TestGetAuthorizedCohorts(t *testing.T) {
	ctx := context.Background()

	auth := newAuthorizer(&fakePolicy{cohorts: []string{"pilot", "rare-disease"}}, "")
	assert.Equal(t, []string{"pilot", "rare-disease"}, auth.GetAuthorizedCohorts(ctx, "Bearer tok"))

	// failures and nil results both collapse to the empty set
	auth = newAuthorizer(&fakePolicy{err: errors.New("opa down")}, "")
	assert.Equal(t, []string{}, auth.GetAuthorizedCohorts(ctx, "Bearer tok"))

	auth = newAuthorizer(&fakePolicy{}, "")
	assert.Equal(t, []string{}, auth.GetAuthorizedCohorts(ctx, "Bearer tok"))
}

func TestIsTrustedServiceToken(t *testing.T) {
	ctx := context.Background()

	auth := newAuthorizer(&fakePolicy{serviceOK: true}, "")
	assert.True(t, auth.IsTrustedServiceToken(ctx, "svc-secret"))

	auth = newAuthorizer(&fakePolicy{}, "")
	assert.False(t, auth.IsTrustedServiceToken(ctx, "svc-secret"))
	assert.False(t, auth.IsTrustedServiceToken(ctx, ""))

	// the test key doubles as a service token
	auth = newAuthorizer(&fakePolicy{}, "testtesttest")
	assert.True(t, auth.IsTrustedServiceToken(ctx, "testtesttest"))

	// verifier failures read as untrusted
	auth = newAuthorizer(&fakePolicy{err: errors.New("opa down")}, "")
	assert.False(t, auth.IsTrustedServiceToken(ctx, "svc-secret"))
}

func TestVerifyServiceToken(t *testing.T) {
	ctx := context.Background()

	auth := newAuthorizer(&fakePolicy{serviceOK: true}, "")
	assert.True(t, auth.VerifyServiceToken(ctx, "query", "svc-token"))

	auth = newAuthorizer(&fakePolicy{}, "testtesttest")
	assert.True(t, auth.VerifyServiceToken(ctx, "query", "testtesttest"))
	assert.False(t, auth.VerifyServiceToken(ctx, "query", "other"))
}
