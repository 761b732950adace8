package placement

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
	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
	"github.com/r3e-collective/dws-controlplane/internal/registry"
)

const (
	deployDeadline = 30 * time.Second
	stopDeadline   = 10 * time.Second
)

// deployRequest is the body posted to a node's workerd deploy handler
// (spec.md §4.6 "Code pull & integrity" / §6 "Wire protocol for placement
// → node").
type deployRequest struct {
	WorkerID     string                `json:"workerId"`
	Name         string                `json:"name"`
	CodeCID      string                `json:"codeCid"`
	ExpectedHash string                `json:"expectedHash"`
	Entrypoint   string                `json:"entrypoint"`
	Runtime      string                `json:"runtime"`
	Resources    registry.ResourceSpec `json:"resources"`
	Env          map[string]string     `json:"env"`
	Secrets      []string              `json:"secrets"`
	Requirements Requirements          `json:"requirements"`
	Owner        string                `json:"owner"`
}

type deployResponse struct {
	Status string `json:"status"`
}

// NodeClient is the placement-engine-to-node HTTP surface (spec.md §6).
type NodeClient struct {
	client *http.Client
}

// NewNodeClient builds a NodeClient sharing the module's TLS-1.2-minimum
// transport (mirrors internal/storage/backend's outbound-client pattern).
func NewNodeClient() *NodeClient {
	return &NodeClient{client: &http.Client{Transport: httputil.DefaultTransportWithMinTLS12()}}
}

// Deploy tells a node to pull and instantiate a workload instance.
func (c *NodeClient) Deploy(ctx context.Context, endpoint, workerID string, w Workload) error {
	ctx, cancel := context.WithTimeout(ctx, deployDeadline)
	defer cancel()

	body := deployRequest{
		WorkerID:     workerID,
		Name:         w.Name,
		CodeCID:      w.CodeCID,
		ExpectedHash: fmt.Sprintf("%x", w.ExpectedHash),
		Entrypoint:   w.Entrypoint,
		Runtime:      w.Runtime,
		Resources:    w.Resources,
		Env:          w.Env,
		Secrets:      w.Secrets,
		Requirements: w.Requirements,
		Owner:        w.Owner,
	}

	return c.postJSON(ctx, strings.TrimRight(endpoint, "/")+"/workerd/deploy", body, deployDeadline)
}

// Stop tells a node to drain and remove an instance.
func (c *NodeClient) Stop(ctx context.Context, endpoint, workerID string) error {
	ctx, cancel := context.WithTimeout(ctx, stopDeadline)
	defer cancel()

	url := fmt.Sprintf("%s/workerd/%s/stop", strings.TrimRight(endpoint, "/"), workerID)
	return c.postJSON(ctx, url, nil, stopDeadline)
}

// Invoke forwards a single request to a warm instance, bounded by the
// workload's own timeoutMs (spec.md §6: "Invocation forwarded ... under
// timeoutMs").
func (c *NodeClient) Invoke(ctx context.Context, endpoint, workerID, method string, headers http.Header, payload []byte, timeout time.Duration) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s/workerd/%s/invoke", strings.TrimRight(endpoint, "/"), workerID)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.Invalid, "build invocation request", err)
	}
	for k, values := range headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	client := httputil.CopyHTTPClientWithTimeout(c.client, timeout, false)
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, apierr.UpstreamWrap(err, "invoke workload instance")
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, apierr.UpstreamWrap(err, "read invocation response")
	}
	return out, resp.StatusCode, nil
}

func (c *NodeClient) postJSON(ctx context.Context, url string, body interface{}, timeout time.Duration) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apierr.Wrap(apierr.Invalid, "encode node request", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return apierr.Wrap(apierr.Invalid, "build node request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := httputil.CopyHTTPClientWithTimeout(c.client, timeout, false)
	resp, err := client.Do(req)
	if err != nil {
		return apierr.UpstreamWrap(err, "call node %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		out, _ := io.ReadAll(resp.Body)
		return apierr.New(apierr.Upstream, fmt.Sprintf("node returned %d: %s", resp.StatusCode, string(out))).WithTag("NODE_REJECTED")
	}

	var decoded deployResponse
	_ = json.NewDecoder(resp.Body).Decode(&decoded) // best-effort; node ack body shape is not load-bearing
	return nil
}
