package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/httputil"
)

// IPFS talks to a Kubo-compatible HTTP API for uploads (spec.md §6
// environment knob IPFS_API_URL) and a gateway for downloads
// (IPFS_GATEWAY_URL); addresses are content ids (spec.md glossary).
type IPFS struct {
	apiURL     string
	gatewayURL string
	client     *http.Client
}

// NewIPFS creates an IPFS backend. timeout bounds every call (spec.md §5:
// "default 60s for AI/IPFS").
func NewIPFS(apiURL, gatewayURL string, timeout time.Duration) *IPFS {
	client := &http.Client{Transport: httputil.DefaultTransportWithMinTLS12()}
	return &IPFS{
		apiURL:     strings.TrimRight(apiURL, "/"),
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		client:     httputil.CopyHTTPClientWithTimeout(client, timeout, false),
	}
}

func (i *IPFS) Name() string { return "ipfs" }

type addResponse struct {
	Hash string `json:"Hash"`
}

func (i *IPFS) Upload(ctx context.Context, content []byte, meta Metadata) (string, string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	filename := meta.Filename
	if filename == "" {
		filename = "content"
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", "", fmt.Errorf("storage/backend/ipfs: create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", "", fmt.Errorf("storage/backend/ipfs: write content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", "", fmt.Errorf("storage/backend/ipfs: close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.apiURL+"/api/v0/add", body)
	if err != nil {
		return "", "", fmt.Errorf("storage/backend/ipfs: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := i.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("storage/backend/ipfs: upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("storage/backend/ipfs: unexpected status %d", resp.StatusCode)
	}

	var decoded addResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", "", fmt.Errorf("storage/backend/ipfs: decode response: %w", err)
	}
	url := fmt.Sprintf("%s/ipfs/%s", i.gatewayURL, decoded.Hash)
	return decoded.Hash, url, nil
}

func (i *IPFS) Download(ctx context.Context, addr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/ipfs/%s", i.gatewayURL, addr), nil)
	if err != nil {
		return nil, fmt.Errorf("storage/backend/ipfs: build request: %w", err)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage/backend/ipfs: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage/backend/ipfs: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (i *IPFS) Exists(ctx context.Context, addr string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fmt.Sprintf("%s/ipfs/%s", i.gatewayURL, addr), nil)
	if err != nil {
		return false, fmt.Errorf("storage/backend/ipfs: build request: %w", err)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (i *IPFS) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.apiURL+"/api/v0/version", nil)
	if err != nil {
		return false
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

var _ Backend = (*IPFS)(nil)
