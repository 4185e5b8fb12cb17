package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/htsget-drs-server/internal/domain"
)

// VaultClient reads and writes per-bucket S3 credentials in a Vault KV
// store. Keys are addressed as aws/<endpoint>-<bucket> with slashes in the
// endpoint collapsed, so "http://minio:9000" and bucket "mydata" share one
// secret regardless of how callers spell the scheme.
type VaultClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewVaultClient creates a credential issuer against the given Vault URL.
func NewVaultClient(baseURL, token string, timeout time.Duration) *VaultClient {
	return &VaultClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type vaultSecret struct {
	Data struct {
		Data map[string]string `json:"data"`
	} `json:"data"`
}

// GetCredential returns the stored access/secret pair for endpoint+bucket.
// A missing secret maps to ErrNotFound so callers can fall back to
// anonymous access.
func (v *VaultClient) GetCredential(ctx context.Context, endpoint, bucket string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.secretURL(endpoint, bucket), nil)
	if err != nil {
		return "", "", fmt.Errorf("creating vault request: %w", err)
	}
	req.Header.Set("X-Vault-Token", v.token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("reading vault secret: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", "", fmt.Errorf("no credential for %s/%s: %w", endpoint, bucket, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("vault returned %d: %s: %w", resp.StatusCode, string(raw), domain.ErrUpstream)
	}

	var secret vaultSecret
	if err := json.NewDecoder(resp.Body).Decode(&secret); err != nil {
		return "", "", fmt.Errorf("parsing vault secret: %w", err)
	}
	return secret.Data.Data["access"], secret.Data.Data["secret"], nil
}

// StoreCredential writes the access/secret pair for endpoint+bucket.
func (v *VaultClient) StoreCredential(ctx context.Context, endpoint, bucket, access, secret string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"data": map[string]string{"access": access, "secret": secret},
	})
	if err != nil {
		return fmt.Errorf("marshaling vault secret: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.secretURL(endpoint, bucket), strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("creating vault request: %w", err)
	}
	req.Header.Set("X-Vault-Token", v.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("writing vault secret: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vault returned %d: %s: %w", resp.StatusCode, string(raw), domain.ErrUpstream)
	}
	return nil
}

func (v *VaultClient) secretURL(endpoint, bucket string) string {
	key := strings.NewReplacer("http://", "", "https://", "", "/", "-").Replace(endpoint)
	return fmt.Sprintf("%s/v1/secret/data/aws/%s-%s", v.baseURL, url.PathEscape(key), url.PathEscape(bucket))
}
