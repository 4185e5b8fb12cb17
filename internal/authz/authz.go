package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/htsget-drs-server/internal/domain"
)

// Authorizer is the single gate every handler consults before touching
// data. It wraps the external policy client with the test-mode bypass and
// the fail-closed defaults the handlers rely on: a policy error never
// widens access, it only narrows it.
type Authorizer struct {
	policy  domain.PolicyClient
	testKey string
	log     *logrus.Logger
}

// New creates an Authorizer. When testKey is non-empty, requests bearing
// exactly that key skip the policy engine entirely.
func New(policy domain.PolicyClient, testKey string, log *logrus.Logger) *Authorizer {
	return &Authorizer{policy: policy, testKey: testKey, log: log}
}

// Token strips the Bearer prefix off an Authorization header value.
func Token(authHeader string) string {
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// IsTesting reports whether the request carries the configured test key.
func (a *Authorizer) IsTesting(authHeader string) bool {
	return a.testKey != "" && Token(authHeader) == a.testKey
}

// IsAuthed decides whether the bearer may perform method+path at all and
// returns the HTTP status the handler should use: 200 to proceed, 401 when
// no token was presented, 403 otherwise.
func (a *Authorizer) IsAuthed(ctx context.Context, authHeader, method, path string) int {
	if authHeader == "" {
		return http.StatusUnauthorized
	}
	if a.IsTesting(authHeader) {
		return http.StatusOK
	}
	token := Token(authHeader)

	admin, err := a.policy.IsSiteAdmin(ctx, token)
	if err != nil {
		a.log.WithError(err).Warn("Site admin check failed")
	} else if admin {
		return http.StatusOK
	}

	allowed, err := a.policy.IsActionAllowedForProgram(ctx, token, method, path, "")
	if err != nil {
		a.log.WithError(err).Warn("Policy check failed")
		return http.StatusForbidden
	}
	if !allowed {
		return http.StatusForbidden
	}
	return http.StatusOK
}

// IsCohortAuthorized reports whether the bearer may perform method+path
// against one specific cohort. Test mode authorizes everything.
func (a *Authorizer) IsCohortAuthorized(ctx context.Context, authHeader, method, path, cohort string) bool {
	if a.IsTesting(authHeader) {
		return true
	}
	token := Token(authHeader)

	if admin, err := a.policy.IsSiteAdmin(ctx, token); err == nil && admin {
		return true
	}
	allowed, err := a.policy.IsActionAllowedForProgram(ctx, token, method, path, cohort)
	if err != nil {
		a.log.WithError(err).WithField("cohort", cohort).Warn("Cohort policy check failed")
		return false
	}
	return allowed
}

// IsSiteAdmin reports whether the bearer holds the site-admin role.
func (a *Authorizer) IsSiteAdmin(ctx context.Context, authHeader string) bool {
	if a.IsTesting(authHeader) {
		return true
	}
	admin, err := a.policy.IsSiteAdmin(ctx, Token(authHeader))
	if err != nil {
		a.log.WithError(err).Warn("Site admin check failed")
		return false
	}
	return admin
}

// GetAuthorizedCohorts returns the cohorts the bearer may read. Any policy
// failure yields the empty set, so searches silently narrow to nothing
// rather than erroring out or over-sharing.
func (a *Authorizer) GetAuthorizedCohorts(ctx context.Context, authHeader string) []string {
	cohorts, err := a.policy.GetAuthorizedCohorts(ctx, Token(authHeader))
	if err != nil {
		a.log.WithError(err).Warn("Authorized cohort lookup failed")
		return []string{}
	}
	if cohorts == nil {
		cohorts = []string{}
	}
	return cohorts
}

// Internal services that may authenticate with X-Service-Token instead
// of a bearer token.
var trustedServices = []string{"query", "candig-ingest"}

// IsTrustedServiceToken reports whether token authenticates any of the
// recognized internal services.
func (a *Authorizer) IsTrustedServiceToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	if a.testKey != "" && token == a.testKey {
		return true
	}
	for _, service := range trustedServices {
		if a.VerifyServiceToken(ctx, service, token) {
			return true
		}
	}
	return false
}

// VerifyServiceToken checks a service-to-service token for the named
// internal service.
func (a *Authorizer) VerifyServiceToken(ctx context.Context, service, token string) bool {
	if a.testKey != "" && token == a.testKey {
		return true
	}
	ok, err := a.policy.VerifyServiceToken(ctx, service, token)
	if err != nil {
		a.log.WithError(err).WithField("service", service).Warn("Service token check failed")
		return false
	}
	return ok
}
