package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/htsget-drs-server/internal/domain"
)

// OpaClient asks the policy engine which datasets a bearer token may see
// and whether a given request is allowed at all. All calls go through a
// circuit breaker so a struggling policy engine degrades to fast 403s
// instead of piling up request timeouts.
type OpaClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewOpaClient creates a policy client against the given OPA base URL.
func NewOpaClient(baseURL, secret string, timeout time.Duration) *OpaClient {
	settings := gobreaker.Settings{
		Name:        "opa",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &OpaClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

type opaInput struct {
	Input struct {
		Token   string `json:"token"`
		Method  string `json:"method,omitempty"`
		Path    string `json:"path,omitempty"`
		Program string `json:"program,omitempty"`
	} `json:"input"`
}

type opaBoolResult struct {
	Result bool `json:"result"`
}

type opaDatasetsResult struct {
	Result []string `json:"result"`
}

// IsActionAllowedForProgram asks OPA whether the token holder may perform
// method+path against the given program (cohort).
func (o *OpaClient) IsActionAllowedForProgram(ctx context.Context, token, method, path, program string) (bool, error) {
	var body opaInput
	body.Input.Token = token
	body.Input.Method = method
	body.Input.Path = path
	body.Input.Program = program

	var result opaBoolResult
	if err := o.query(ctx, "/v1/data/permissions/allowed", body, &result); err != nil {
		return false, err
	}
	return result.Result, nil
}

// GetAuthorizedCohorts returns every cohort the token holder may read.
func (o *OpaClient) GetAuthorizedCohorts(ctx context.Context, token string) ([]string, error) {
	var body opaInput
	body.Input.Token = token

	var result opaDatasetsResult
	if err := o.query(ctx, "/v1/data/permissions/datasets", body, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

// IsSiteAdmin reports whether the token holder carries the site-admin role.
func (o *OpaClient) IsSiteAdmin(ctx context.Context, token string) (bool, error) {
	var body opaInput
	body.Input.Token = token

	var result opaBoolResult
	if err := o.query(ctx, "/v1/data/idp/site_admin", body, &result); err != nil {
		return false, err
	}
	return result.Result, nil
}

// VerifyServiceToken checks a service-to-service bearer token for the
// named internal service.
func (o *OpaClient) VerifyServiceToken(ctx context.Context, service, token string) (bool, error) {
	var body opaInput
	body.Input.Token = token
	body.Input.Program = service

	var result opaBoolResult
	if err := o.query(ctx, "/v1/data/service/verified", body, &result); err != nil {
		return false, err
	}
	return result.Result, nil
}

func (o *OpaClient) query(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling policy query: %w", err)
	}

	_, err = o.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating policy request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if o.secret != "" {
			req.Header.Set("X-Opa", o.secret)
		}

		resp, err := o.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("querying policy engine: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("policy engine returned %d: %s: %w",
				resp.StatusCode, string(raw), domain.ErrUpstream)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("parsing policy response: %w", err)
		}
		return nil, nil
	})
	return err
}
