package attestation

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/platform/resilience"
)

// kdsTerminalError marks a 404 as non-retryable, per
// internal/platform/resilience.Retryable — the AMD KDS fetch rule is "retry
// 5xx with linear backoff; 404 is terminal" (spec.md §6).
type kdsTerminalError struct {
	status int
}

func (e *kdsTerminalError) Error() string { return fmt.Sprintf("AMD KDS: not found (status %d)", e.status) }
func (e *kdsTerminalError) Retryable() bool { return false }

// KDSClient fetches SEV-SNP certificate chains from an AMD key distribution
// service endpoint (spec.md §6: "GET {baseUrl}/{product}/{chipIdHex}...").
type KDSClient struct {
	baseURL    string
	product    string
	httpClient *http.Client
	retry      resilience.RetryConfig
}

// NewKDSClient creates a KDSClient. product is typically "Milan" or
// "Genoa"; retryAttempts bounds the linear-backoff retry count for 5xx.
func NewKDSClient(baseURL, product string, httpClient *http.Client, retryAttempts int) *KDSClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	return &KDSClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		product:    product,
		httpClient: httpClient,
		retry:      resilience.LinearRetryConfig(retryAttempts, 500*time.Millisecond),
	}
}

// FetchChain fetches the certificate chain for chipID + reportedTCB,
// returning PEM bytes. Per spec.md §4.1 step 4/§6: 5xx responses are
// retried linearly, a 404 gives up immediately, returning a nil chain and
// an error (the verifier reports it as a failed KDS fetch).
func (c *KDSClient) FetchChain(chipID []byte, reportedTCB uint64) ([]byte, error) {
	chipIDHex := hex.EncodeToString(chipID)
	blSPL, teeSPL, snpSPL, ucodeSPL := splitTCBParts(reportedTCB)
	url := fmt.Sprintf("%s/%s/%s?blSPL=%d&teeSPL=%d&snpSPL=%d&ucodeSPL=%d",
		c.baseURL, c.product, chipIDHex, blSPL, teeSPL, snpSPL, ucodeSPL)

	var body []byte
	err := resilience.Retry(context.Background(), c.retry, func() error {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/x-pem-file")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return &kdsTerminalError{status: resp.StatusCode}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("AMD KDS: unexpected status %d", resp.StatusCode)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		contentType := resp.Header.Get("Content-Type")
		body = normalizeKDSBody(raw, contentType)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// normalizeKDSBody accepts PEM, x509 CA cert, or raw DER (wrapped into PEM)
// per spec.md §6's three accepted content types.
func normalizeKDSBody(raw []byte, contentType string) []byte {
	if strings.Contains(contentType, "pem") || looksLikePEM(raw) {
		return raw
	}
	// Treat as DER: base64-wrap into a PEM CERTIFICATE block.
	block := &pem.Block{Type: "CERTIFICATE", Bytes: raw}
	return pem.EncodeToMemory(block)
}

func looksLikePEM(raw []byte) bool {
	return strings.Contains(string(raw), "-----BEGIN")
}

// splitTCBParts unpacks the reported TCB's four security-version bytes,
// mirroring the {blSPL, teeSPL, snpSPL, ucodeSPL} query parameters AMD KDS
// expects (spec.md §6).
func splitTCBParts(tcb uint64) (bl, tee, snp, ucode uint8) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], tcb)
	return buf[0], buf[1], buf[2], buf[7]
}
