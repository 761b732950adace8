package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/httputil"
)

// Arweave is the permanent-archival backend (spec.md §4.5): uploads go
// through a bundler endpoint (e.g. Lighthouse, fronting Arweave/Filecoin
// deals — spec.md §6 env knob LIGHTHOUSE_TOKEN) and are addressed by the
// resulting transaction id.
type Arweave struct {
	bundlerURL string
	authToken  string
	client     *http.Client
}

// NewArweave creates an Arweave backend fronted by bundlerURL.
func NewArweave(bundlerURL, authToken string, timeout time.Duration) *Arweave {
	client := &http.Client{Transport: httputil.DefaultTransportWithMinTLS12()}
	return &Arweave{
		bundlerURL: strings.TrimRight(bundlerURL, "/"),
		authToken:  authToken,
		client:     httputil.CopyHTTPClientWithTimeout(client, timeout, false),
	}
}

func (a *Arweave) Name() string { return "arweave" }

type bundlerUploadResponse struct {
	TxID string `json:"txId"`
}

func (a *Arweave) Upload(ctx context.Context, content []byte, meta Metadata) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.bundlerURL+"/api/v0/upload", bytes.NewReader(content))
	if err != nil {
		return "", "", fmt.Errorf("storage/backend/arweave: build request: %w", err)
	}
	if meta.ContentType != "" {
		req.Header.Set("Content-Type", meta.ContentType)
	}
	if a.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.authToken)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("storage/backend/arweave: upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("storage/backend/arweave: unexpected status %d", resp.StatusCode)
	}

	var decoded bundlerUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", "", fmt.Errorf("storage/backend/arweave: decode response: %w", err)
	}
	return decoded.TxID, fmt.Sprintf("https://arweave.net/%s", decoded.TxID), nil
}

func (a *Arweave) Download(ctx context.Context, addr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("https://arweave.net/%s", addr), nil)
	if err != nil {
		return nil, fmt.Errorf("storage/backend/arweave: build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage/backend/arweave: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage/backend/arweave: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (a *Arweave) Exists(ctx context.Context, addr string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fmt.Sprintf("https://arweave.net/%s", addr), nil)
	if err != nil {
		return false, fmt.Errorf("storage/backend/arweave: build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (a *Arweave) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.bundlerURL+"/api/v0/status", nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

var _ Backend = (*Arweave)(nil)
