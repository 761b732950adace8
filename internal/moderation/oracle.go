package moderation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/tidwall/gjson"

	"github.com/r3e-collective/dws-controlplane/internal/platform/ratelimit"
	"github.com/r3e-collective/dws-controlplane/internal/platform/resilience"
)

// oracleTaxonomy maps the classifier's free-form category strings into the
// closed taxonomy (spec.md §4.3 step e).
var oracleTaxonomy = map[string]Category{
	"csam":            CategoryCSAM,
	"malware":         CategoryMalware,
	"miner":           CategoryCryptominer,
	"cryptocurrency":  CategoryCryptominer,
	"phishing":        CategoryPhishing,
	"tos":             CategoryTOSViolation,
	"pii":             CategoryDataLeak,
	"leak":            CategoryDataLeak,
	"copyright":       CategoryCopyright,
	"suspicious":      CategorySuspicious,
	"clean":           CategoryClean,
	"safe":            CategoryClean,
}

// OracleClient calls an external classifier oracle behind a circuit
// breaker with a wall-clock cap (spec.md §5 "Moderation classifier calls
// have a wall-clock cap").
type OracleClient struct {
	endpoint    string
	httpClient  *http.Client
	breaker     *resilience.CircuitBreaker
	limiter     *ratelimit.RateLimiter // caps outbound classifier calls regardless of inbound deployment rate
	timeout     time.Duration
	vendorPaths map[string]string // name -> JSONPath, for oracle vendors whose schema doesn't match the standard classifications array
}

// NewOracleClient creates an OracleClient. Outbound classification calls
// are capped at 20 per second with a burst of 40 (spec.md §5 wall-clock cap applies per
// call; the limiter bounds aggregate call volume so one noisy deployer
// can't starve the oracle for everyone else).
func NewOracleClient(endpoint string, httpClient *http.Client, timeout time.Duration) *OracleClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OracleClient{
		endpoint:   endpoint,
		httpClient: httpClient,
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultBreakerConfig()),
		limiter:    ratelimit.New(ratelimit.Config{RequestsPerSecond: 20, Burst: 40}),
		timeout:    timeout,
	}
}

// WithVendorFieldPaths configures extra JSONPath extractions run against the
// raw oracle response, for vendors that nest category data outside the
// standard "classifications" array. Each extracted value is surfaced as a
// Suspicious-category Finding so it still feeds the scoring pipeline.
func (c *OracleClient) WithVendorFieldPaths(paths map[string]string) *OracleClient {
	c.vendorPaths = paths
	return c
}

// extractVendorFields evaluates the configured JSONPath expressions against
// the decoded response body and turns any non-empty match into a Finding.
func (c *OracleClient) extractVendorFields(raw []byte) []Finding {
	if len(c.vendorPaths) == 0 {
		return nil
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	var findings []Finding
	for name, path := range c.vendorPaths {
		value, err := jsonpath.Get(path, doc)
		if err != nil || value == nil {
			continue
		}
		conf, ok := value.(float64)
		if !ok {
			continue
		}
		findings = append(findings, Finding{
			Category:   CategorySuspicious,
			Confidence: conf,
			Detail:     fmt.Sprintf("vendor field %q matched %s", name, path),
		})
	}
	return findings
}

// Classify submits content for classification. Absence of a response (error
// or timeout) must never promote the outcome to allow — the caller treats a
// nil, non-error result from Classify the same as "no additional evidence".
func (c *OracleClient) Classify(ctx context.Context, content []byte) ([]Finding, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	wctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var raw []byte
	err := c.breaker.Execute(wctx, func() error {
		body, err := json.Marshal(map[string]string{"content_base64": encodeForOracle(content)})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(wctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("moderation oracle: unexpected status %d", resp.StatusCode)
		}

		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return err
		}
		raw = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, err
	}
	findings := parseOracleResponse(raw)
	findings = append(findings, c.extractVendorFields(raw)...)
	return findings, nil
}

// parseOracleResponse extracts {category, confidence, detail} entries from
// the oracle's free-form JSON using gjson, then maps categories into the
// closed taxonomy; unrecognized categories fall back to "suspicious".
func parseOracleResponse(raw []byte) []Finding {
	results := gjson.GetBytes(raw, "classifications")
	if !results.IsArray() {
		return nil
	}
	var findings []Finding
	results.ForEach(func(_, item gjson.Result) bool {
		catStr := item.Get("category").String()
		confidence := item.Get("confidence").Float()
		detail := item.Get("detail").String()

		category, ok := oracleTaxonomy[catStr]
		if !ok {
			category = CategorySuspicious
		}
		findings = append(findings, Finding{Category: category, Confidence: confidence, Detail: detail})
		return true
	})
	return findings
}

func encodeForOracle(content []byte) string {
	const maxPreviewBytes = 256 << 10
	if len(content) > maxPreviewBytes {
		content = content[:maxPreviewBytes]
	}
	return base64.StdEncoding.EncodeToString(content)
}
