package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/httputil"
)

// Filecoin is the verifiable-storage backend with deal tracking (spec.md
// §4.5), fronted by a web3.storage-compatible endpoint (spec.md §6 env
// knob WEB3_STORAGE_TOKEN) which pins content to IPFS and files a
// Filecoin storage deal asynchronously.
type Filecoin struct {
	apiURL    string
	authToken string
	client    *http.Client
	deals     *dealTracker
}

// DealStatus enumerates the Filecoin deal lifecycle states this backend
// surfaces to callers that poll DealStatusFor.
type DealStatus string

const (
	DealPending DealStatus = "pending"
	DealActive  DealStatus = "active"
	DealFailed  DealStatus = "failed"
)

type dealTracker struct {
	mu     sync.Mutex
	status map[string]DealStatus
}

func (d *dealTracker) set(cid string, status DealStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status[cid] = status
}

func (d *dealTracker) get(cid string) (DealStatus, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	status, ok := d.status[cid]
	return status, ok
}

// NewFilecoin creates a Filecoin backend fronted by apiURL.
func NewFilecoin(apiURL, authToken string, timeout time.Duration) *Filecoin {
	client := &http.Client{Transport: httputil.DefaultTransportWithMinTLS12()}
	return &Filecoin{
		apiURL:    strings.TrimRight(apiURL, "/"),
		authToken: authToken,
		client:    httputil.CopyHTTPClientWithTimeout(client, timeout, false),
		deals:     &dealTracker{status: make(map[string]DealStatus)},
	}
}

func (f *Filecoin) Name() string { return "filecoin" }

type web3UploadResponse struct {
	CID string `json:"cid"`
}

func (f *Filecoin) Upload(ctx context.Context, content []byte, meta Metadata) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.apiURL+"/upload", bytes.NewReader(content))
	if err != nil {
		return "", "", fmt.Errorf("storage/backend/filecoin: build request: %w", err)
	}
	if meta.ContentType != "" {
		req.Header.Set("Content-Type", meta.ContentType)
	}
	if f.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.authToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("storage/backend/filecoin: upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("storage/backend/filecoin: unexpected status %d", resp.StatusCode)
	}

	var decoded web3UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", "", fmt.Errorf("storage/backend/filecoin: decode response: %w", err)
	}
	f.deals.set(decoded.CID, DealPending)
	return decoded.CID, fmt.Sprintf("https://%s.ipfs.w3s.link", decoded.CID), nil
}

func (f *Filecoin) Download(ctx context.Context, addr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("https://%s.ipfs.w3s.link", addr), nil)
	if err != nil {
		return nil, fmt.Errorf("storage/backend/filecoin: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage/backend/filecoin: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage/backend/filecoin: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f *Filecoin) Exists(ctx context.Context, addr string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fmt.Sprintf("https://%s.ipfs.w3s.link", addr), nil)
	if err != nil {
		return false, fmt.Errorf("storage/backend/filecoin: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (f *Filecoin) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// DealStatusFor reports the tracked Filecoin deal status for a previously
// uploaded CID, defaulting to DealPending for unknown ids.
func (f *Filecoin) DealStatusFor(cid string) DealStatus {
	if status, ok := f.deals.get(cid); ok {
		return status
	}
	return DealPending
}

// MarkDealActive records that the deal for cid has landed on-chain; called
// by a poller outside this backend's upload path (spec.md §4.5 "deal
// tracking").
func (f *Filecoin) MarkDealActive(cid string) { f.deals.set(cid, DealActive) }

var _ Backend = (*Filecoin)(nil)
