package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htsget-drs-server/internal/authz"
	"github.com/htsget-drs-server/internal/beacon"
	"github.com/htsget-drs-server/internal/database"
	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/drs"
	"github.com/htsget-drs-server/internal/htsget"
	"github.com/htsget-drs-server/internal/repository"
)

const testKey = "testtesttest"

// denyAllPolicy rejects everything, so only the test key gets through.
type denyAllPolicy struct{}

func (denyAllPolicy) IsActionAllowedForProgram(ctx context.Context, token, method, path, program string) (bool, error) {
	return false, nil
}
func (denyAllPolicy) GetAuthorizedCohorts(ctx context.Context, token string) ([]string, error) {
	return nil, nil
}
func (denyAllPolicy) IsSiteAdmin(ctx context.Context, token string) (bool, error) {
	return false, nil
}
func (denyAllPolicy) VerifyServiceToken(ctx context.Context, service, token string) (bool, error) {
	return false, nil
}

// cohortPolicy admits cohort actions on one cohort and one service
// token, nothing else.
type cohortPolicy struct {
	denyAllPolicy
	cohort   string
	svcToken string
}

func (p cohortPolicy) IsActionAllowedForProgram(ctx context.Context, token, method, path, program string) (bool, error) {
	return p.cohort != "" && program == p.cohort, nil
}

func (p cohortPolicy) VerifyServiceToken(ctx context.Context, service, token string) (bool, error) {
	return p.svcToken != "" && token == p.svcToken, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, denyAllPolicy{})
}

func newTestServerWith(t *testing.T, policy domain.PolicyClient) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	db, err := database.Open(filepath.Join(t.TempDir(), "files.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := repository.New(db.SQL, logger, "localhost:3000", 1000000)
	require.NoError(t, err)

	auth := authz.New(policy, testKey, logger)
	drsSvc := drs.NewService(repo, nil, t.TempDir(), logger)
	htsgetSvc := htsget.NewService(repo, drsSvc, "http://localhost:3000", 10000, 1000000, logger)
	beaconSvc := beacon.NewService(repo, drsSvc, htsgetSvc, logger)

	cfg := &domain.Config{}
	cfg.Logging.Level = "error"
	return NewServer(cfg, logger, auth, drsSvc, htsgetSvc, beaconSvc)
}

func do(s *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

// doService sends a request authenticated only by X-Service-Token.
func doService(s *Server, method, path, serviceToken string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if serviceToken != "" {
		req.Header.Set("X-Service-Token", serviceToken)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestServiceInfoEndpoints(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		path string
		id   string
	}{
		{"/ga4gh/drs/v1/service-info", "org.candig.drs"},
		{"/htsget/v1/reads/service-info", "org.candig.htsget"},
		{"/htsget/v1/variants/service-info", "org.candig.htsget"},
	}
	for _, tt := range tests {
		w := do(s, http.MethodGet, tt.path, "", nil)
		require.Equal(t, http.StatusOK, w.Code, tt.path)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tt.id, body["id"], tt.path)
	}

	w := do(s, http.MethodGet, "/beacon/v2/service-info", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestObjectLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	obj := gin.H{
		"id":     "sample.vcf.gz",
		"name":   "sample.vcf.gz",
		"cohort": "pilot",
	}
	w := do(s, http.MethodPost, "/ga4gh/drs/v1/objects", testKey, obj)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(s, http.MethodGet, "/ga4gh/drs/v1/objects/sample.vcf.gz", testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.DrsObject
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "drs://localhost:3000/sample.vcf.gz", got.SelfURI)

	w = do(s, http.MethodGet, "/ga4gh/drs/v1/objects", testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var objs []domain.DrsObject
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &objs))
	assert.Len(t, objs, 1)

	w = do(s, http.MethodDelete, "/ga4gh/drs/v1/objects/sample.vcf.gz", testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(s, http.MethodGet, "/ga4gh/drs/v1/objects/sample.vcf.gz", testKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// site admins see the real miss on delete too
	w = do(s, http.MethodDelete, "/ga4gh/drs/v1/objects/sample.vcf.gz", testKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthGates(t *testing.T) {
	s := newTestServer(t)

	// no token at all
	w := do(s, http.MethodGet, "/ga4gh/drs/v1/objects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(s, http.MethodGet, "/htsget/v1/variants/sample.vcf.gz", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// a denied bearer reads unknown objects as forbidden, not missing
	w = do(s, http.MethodGet, "/htsget/v1/variants/sample.vcf.gz", "sometoken", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// mutations need an admin role
	w = do(s, http.MethodPost, "/ga4gh/drs/v1/objects", "sometoken", gin.H{"id": "x", "name": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(s, http.MethodDelete, "/ga4gh/drs/v1/objects/x", "sometoken", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(s, http.MethodGet, "/htsget/v1/variants/x/index", "sometoken", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServiceTokenAccess(t *testing.T) {
	s := newTestServerWith(t, cohortPolicy{svcToken: "svc-secret"})

	obj := gin.H{"id": "NA18537", "name": "NA18537", "cohort": "test-htsget"}
	w := do(s, http.MethodPost, "/ga4gh/drs/v1/objects", testKey, obj)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// a trusted service token alone reads the object
	w = doService(s, http.MethodGet, "/ga4gh/drs/v1/objects/NA18537", "svc-secret")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// and opens the htsget surface too
	w = doService(s, http.MethodGet, "/htsget/v1/variants/NA18537", "svc-secret")
	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
	assert.NotEqual(t, http.StatusForbidden, w.Code)

	// an unrecognized service token is refused, not challenged
	w = doService(s, http.MethodGet, "/ga4gh/drs/v1/objects/NA18537", "wrong")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// no credentials at all still reads as unauthenticated
	w = doService(s, http.MethodGet, "/ga4gh/drs/v1/objects/NA18537", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCohortAdminMutations(t *testing.T) {
	s := newTestServerWith(t, cohortPolicy{cohort: "pilot"})

	// a cohort admin may create into the cohort they administer
	w := do(s, http.MethodPost, "/ga4gh/drs/v1/objects", "sometoken",
		gin.H{"id": "a.vcf", "name": "a.vcf", "cohort": "pilot"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// but not into another cohort, and not cohortless
	w = do(s, http.MethodPost, "/ga4gh/drs/v1/objects", "sometoken",
		gin.H{"id": "b.vcf", "name": "b.vcf", "cohort": "other"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(s, http.MethodPost, "/ga4gh/drs/v1/objects", "sometoken",
		gin.H{"id": "c.vcf", "name": "c.vcf"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// deleting their own cohort's object works
	w = do(s, http.MethodDelete, "/ga4gh/drs/v1/objects/a.vcf", "sometoken", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// an unknown id reads as forbidden to non-admins
	w = do(s, http.MethodDelete, "/ga4gh/drs/v1/objects/missing", "sometoken", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCohortlessObjectReadsNotFound(t *testing.T) {
	s := newTestServer(t)

	w := do(s, http.MethodPost, "/ga4gh/drs/v1/objects", testKey,
		gin.H{"id": "orphan.vcf", "name": "orphan.vcf"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// there is no cohort to authorize against
	w = do(s, http.MethodGet, "/ga4gh/drs/v1/objects/orphan.vcf", "sometoken", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIndexVariantsRoutes(t *testing.T) {
	s := newTestServer(t)

	obj := gin.H{"id": "NA18537", "name": "NA18537", "cohort": "test-htsget"}
	w := do(s, http.MethodPost, "/ga4gh/drs/v1/objects", testKey, obj)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// both verbs queue the same indexing request
	for _, method := range []string{http.MethodPost, http.MethodGet} {
		w = do(s, method, "/htsget/v1/variants/NA18537/index?genome=hg38", testKey, nil)
		require.Equal(t, http.StatusOK, w.Code, method+": "+w.Body.String())
		var vf domain.VariantFile
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vf))
		assert.Equal(t, "hg38", vf.ReferenceGenome)
		assert.Equal(t, 0, vf.Indexed)
	}

	w = do(s, http.MethodPost, "/htsget/v1/variants/missing/index?genome=hg38", testKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTicketForMissingObject(t *testing.T) {
	s := newTestServer(t)
	// the test key bypasses the cohort gate, so the miss surfaces as 404
	w := do(s, http.MethodGet, "/htsget/v1/variants/missing.vcf.gz", testKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGeneListsEmpty(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/htsget/v1/genes", "/htsget/v1/transcripts"} {
		w := do(s, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		var body struct {
			Results []string `json:"results"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.NotNil(t, body.Results)
		assert.Empty(t, body.Results)
	}
}

func TestBeaconEnvelopeErrors(t *testing.T) {
	s := newTestServer(t)

	// a query without a region still answers 200, error in the envelope
	w := do(s, http.MethodGet, "/beacon/v2/g_variants", testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body beacon.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, 404, body.Error.ErrorCode)
}

func TestCorrelationAndSecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	w := do(s, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodOptions, "/ga4gh/drs/v1/objects", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
