// Package storage implements the multi-backend content manager (C6):
// tier-gated backend selection, envelope encryption for private content,
// popularity tracking, and a read-through cache in front of backends.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
	"github.com/r3e-collective/dws-controlplane/internal/platform/cache"
	"github.com/r3e-collective/dws-controlplane/internal/platform/logging"
	"github.com/r3e-collective/dws-controlplane/internal/platform/metrics"
	"github.com/r3e-collective/dws-controlplane/internal/storage/backend"
)

// fallbackDownloadOrder is used when neither a caller override nor stored
// backend set is available (spec.md §4.5 "Download" step 1).
var fallbackDownloadOrder = []string{"webtorrent", "ipfs", "local"}

// Registry is the in-memory content metadata store (spec.md §4.5 step 5).
type Registry interface {
	Put(ctx context.Context, meta ContentMetadata) error
	Get(ctx context.Context, cid string) (ContentMetadata, error)
	BumpAccessCount(ctx context.Context, cid string) error
}

// Config configures a Manager.
type Config struct {
	Environment       Environment
	MinSeeders        int
	PerBackendTimeout time.Duration
	CacheConfig       cache.Config
}

// DefaultConfig returns the manager defaults from spec.md §5 (60s network
// suspension points collapse here to a per-backend call timeout).
func DefaultConfig() Config {
	return Config{
		Environment:       EnvProduction,
		MinSeeders:        2,
		PerBackendTimeout: 60 * time.Second,
		CacheConfig:       cache.DefaultConfig(),
	}
}

// Manager is the C6 contract of spec.md §4.5.
type Manager struct {
	cfg        Config
	backends   map[string]backend.Backend
	registry   Registry
	keyManager KeyManager
	accessLog  *accessLog
	cache      cache.Store
	log        *logging.Logger
	metrics    *metrics.Metrics
}

// New creates a Manager. backends must contain at least "local" and
// "ipfs"; seederCounter-capable backends (webtorrent) are queried for
// SeederCount when computing replication priority. The in-process LRU cache
// is used by default; call WithCache to share a Redis-backed Store across
// replicas instead.
func New(cfg Config, backends map[string]backend.Backend, registry Registry, keyManager KeyManager, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.New("storage", "info", "json")
	}
	return &Manager{
		cfg: cfg, backends: backends, registry: registry, keyManager: keyManager,
		accessLog: newAccessLog(cfg.MinSeeders),
		cache:     cache.New(cfg.CacheConfig),
		log:       log,
	}
}

// WithCache replaces the manager's default in-process cache with store,
// returning m for chaining. Intended for a shared cache.RedisStore when
// multiple manager replicas front the same backend set.
func (m *Manager) WithCache(store cache.Store) *Manager {
	m.cache = store
	return m
}

// WithMetrics attaches a Metrics collector, returning m for chaining.
func (m *Manager) WithMetrics(mx *metrics.Metrics) *Manager {
	m.metrics = mx
	return m
}

// Upload runs spec.md §4.5's full upload procedure.
func (m *Manager) Upload(ctx context.Context, content []byte, tier Tier, opts UploadOptions) (UploadResult, error) {
	plainSHA := sha256.Sum256(content)
	sha256Hex := hex.EncodeToString(plainSHA[:])

	encrypted := tier == TierPrivate && !(opts.Encrypt != nil && !*opts.Encrypt)
	payload := content
	keyID := ""
	if encrypted {
		if m.keyManager == nil {
			return UploadResult{}, apierr.New(apierr.Fatal, "private tier requires a key manager but none is configured")
		}
		keyID = opts.EncryptKeyID
		if keyID == "" {
			keyID = fmt.Sprintf("content-%s", sha256Hex)
		}
		sealed, usedKeyID, err := m.keyManager.Encrypt(ctx, keyID, content)
		if err != nil {
			return UploadResult{}, apierr.Wrap(apierr.Fatal, "envelope encrypt", err)
		}
		payload = sealed
		keyID = usedKeyID
	}

	backendNames, replication := EligibleBackends(tier, m.cfg.Environment, opts.BackendOverride)

	addresses := make(map[string]string)
	var successfulBackends []string
	var cid, magnetURI, arweaveTxID, filecoinCID string

	for _, name := range backendNames {
		if len(successfulBackends) >= replication {
			break
		}
		b, ok := m.backends[name]
		if !ok {
			continue
		}
		bctx, cancel := context.WithTimeout(ctx, m.cfg.PerBackendTimeout)
		backendStart := time.Now()
		addr, _, err := b.Upload(bctx, payload, backend.Metadata{})
		cancel()
		if m.metrics != nil {
			m.metrics.BackendLatency.WithLabelValues(name, "upload").Observe(time.Since(backendStart).Seconds())
		}
		if err != nil {
			m.log.WithError(err).Warnf("storage: upload to backend %s failed", name)
			continue
		}
		if m.metrics != nil {
			m.metrics.UploadsTotal.WithLabelValues(name, string(tier)).Inc()
		}

		addresses[name] = addr
		successfulBackends = append(successfulBackends, name)
		if cid == "" && name != "local" {
			cid = addr
		}
		switch name {
		case "webtorrent":
			magnetURI = addr
		case "arweave":
			arweaveTxID = addr
		case "filecoin":
			filecoinCID = addr
		}
	}

	if len(successfulBackends) == 0 {
		return UploadResult{}, apierr.New(apierr.Upstream, "no eligible backend accepted the upload")
	}
	if cid == "" {
		cid = addresses["local"]
	}

	// Step 4: seed via P2P for system/popular tiers missing a P2P address.
	if (tier == TierSystem || tier == TierPopular) && magnetURI == "" {
		if wt, ok := m.backends["webtorrent"]; ok {
			go func() {
				bctx, cancel := context.WithTimeout(context.Background(), m.cfg.PerBackendTimeout)
				defer cancel()
				if _, _, err := wt.Upload(bctx, payload, backend.Metadata{}); err != nil {
					m.log.WithError(err).Warn("storage: async P2P seed failed")
				}
			}()
		}
	}

	meta := ContentMetadata{
		CID: cid, SHA256: sha256Hex, Tier: tier, Backends: successfulBackends,
		Addresses: addresses, MagnetURI: magnetURI, ArweaveTxID: arweaveTxID,
		FilecoinCID: filecoinCID, Encrypted: encrypted, EncryptionKeyID: keyID,
		Size: int64(len(content)), CreatedAt: time.Now(),
	}
	if m.registry != nil {
		if err := m.registry.Put(ctx, meta); err != nil {
			return UploadResult{}, apierr.Wrap(apierr.Fatal, "register content metadata", err)
		}
	}

	return UploadResult{
		CID: cid, Addresses: addresses, Tier: tier, Backends: successfulBackends,
		MagnetURI: magnetURI, ArweaveTxID: arweaveTxID, Encrypted: encrypted, EncryptionKeyID: keyID,
	}, nil
}

// Download runs spec.md §4.5's full download procedure.
func (m *Manager) Download(ctx context.Context, cid string, opts DownloadOptions) (DownloadResult, error) {
	start := time.Now()

	if cached, ok := m.cache.Get(cid); ok {
		meta, _ := m.registryGet(ctx, cid)
		m.recordAccess(ctx, cid, opts.Region)
		return DownloadResult{Content: cached, Metadata: meta, BackendUsed: "local", FromCache: true,
			LatencyMillis: time.Since(start).Milliseconds()}, nil
	}

	meta, err := m.registryGet(ctx, cid)
	if err != nil {
		return DownloadResult{}, apierr.NotFoundf("content %s: %v", cid, err)
	}

	order := opts.BackendOverride
	if len(order) == 0 {
		order = meta.Backends
	}
	if len(order) == 0 {
		order = fallbackDownloadOrder
	}

	var content []byte
	var backendUsed string
	for _, name := range order {
		addr, hasAddr := meta.Addresses[name]
		if !hasAddr {
			addr = cid
		}
		b, ok := m.backends[name]
		if !ok {
			continue
		}
		bctx, cancel := context.WithTimeout(ctx, m.cfg.PerBackendTimeout)
		backendStart := time.Now()
		fetched, err := b.Download(bctx, addr)
		cancel()
		if m.metrics != nil {
			m.metrics.BackendLatency.WithLabelValues(name, "download").Observe(time.Since(backendStart).Seconds())
		}
		if err != nil {
			continue
		}
		content = fetched
		backendUsed = name
		if m.metrics != nil {
			m.metrics.DownloadsTotal.WithLabelValues(name).Inc()
		}
		break
	}
	if backendUsed == "" {
		return DownloadResult{}, apierr.New(apierr.Upstream, "no backend in the preferred order returned content").WithTag("UPSTREAM_UNAVAILABLE")
	}

	if meta.Encrypted {
		if opts.DecryptKeyID == "" {
			return DownloadResult{}, apierr.New(apierr.Unauthorized, "content is encrypted; a decryption key id is required")
		}
		if m.keyManager == nil {
			return DownloadResult{}, apierr.New(apierr.Fatal, "content is encrypted but no key manager is configured")
		}
		plain, err := m.keyManager.Decrypt(ctx, opts.DecryptKeyID, content)
		if err != nil {
			return DownloadResult{}, apierr.Wrap(apierr.Integrity, "decrypt content", err)
		}
		content = plain
	}

	if backendUsed == "local" {
		m.cache.Put(cid, content)
	}

	m.recordAccess(ctx, cid, opts.Region)

	return DownloadResult{
		Content: content, Metadata: meta, BackendUsed: backendUsed,
		LatencyMillis: time.Since(start).Milliseconds(), FromCache: false,
	}, nil
}

func (m *Manager) registryGet(ctx context.Context, cid string) (ContentMetadata, error) {
	if m.registry == nil {
		return ContentMetadata{}, fmt.Errorf("storage: no registry configured")
	}
	return m.registry.Get(ctx, cid)
}

// recordAccess appends to the rolling access log and bumps the registry's
// counter (spec.md §4.5 "Download" step 4).
func (m *Manager) recordAccess(ctx context.Context, cid, region string) {
	m.accessLog.record(cid, region)
	if m.registry != nil {
		if err := m.registry.BumpAccessCount(ctx, cid); err != nil {
			m.log.WithError(err).Warn("storage: bump access count failed")
		}
	}
}

// PopularityFor recomputes the popularity score for cid (spec.md §4.5
// "Popularity score"), consulting the webtorrent backend's seeder count
// when present.
func (m *Manager) PopularityFor(cid string) PopularityScore {
	seeders := 0
	if wt, ok := m.backends["webtorrent"].(*backend.WebTorrent); ok {
		seeders = wt.SeederCount(cid)
	}
	return m.accessLog.score(cid, seeders)
}

// UnderseededContent returns every accessed cid whose popularity marks it
// underseeded, sorted by replication priority descending (spec.md §4.5
// "served sorted by replicationPriority desc").
func (m *Manager) UnderseededContent() []PopularityScore {
	var result []PopularityScore
	for _, cid := range m.accessLog.allCIDs() {
		score := m.PopularityFor(cid)
		if score.Underseeded {
			result = append(result, score)
		}
	}
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j].ReplicationPriority > result[j-1].ReplicationPriority; j-- {
			result[j], result[j-1] = result[j-1], result[j]
		}
	}
	return result
}
