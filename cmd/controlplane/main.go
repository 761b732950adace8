// Command controlplane wires every DWS control-plane component (C1-C8)
// into one process: node registry, attestation, reputation, moderation,
// secret sharing, multi-backend storage, placement/auto-scaling, and fee
// collection. Flag-then-env-then-default resolution and explicit
// Start/Stop lifecycle, in the style of the teacher's own service
// entrypoints.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/r3e-collective/dws-controlplane/internal/attestation"
	"github.com/r3e-collective/dws-controlplane/internal/chainfacade"
	"github.com/r3e-collective/dws-controlplane/internal/feecollector"
	"github.com/r3e-collective/dws-controlplane/internal/moderation"
	"github.com/r3e-collective/dws-controlplane/internal/placement"
	placementmem "github.com/r3e-collective/dws-controlplane/internal/placement/memory"
	"github.com/r3e-collective/dws-controlplane/internal/platform/cache"
	"github.com/r3e-collective/dws-controlplane/internal/platform/config"
	"github.com/r3e-collective/dws-controlplane/internal/platform/database"
	"github.com/r3e-collective/dws-controlplane/internal/platform/lifecycle"
	"github.com/r3e-collective/dws-controlplane/internal/platform/logging"
	"github.com/r3e-collective/dws-controlplane/internal/registry"
	"github.com/r3e-collective/dws-controlplane/internal/reputation"
	reputationmem "github.com/r3e-collective/dws-controlplane/internal/reputation/memory"
	reputationpg "github.com/r3e-collective/dws-controlplane/internal/reputation/postgres"
	"github.com/r3e-collective/dws-controlplane/internal/secretstore"
	secretstoremem "github.com/r3e-collective/dws-controlplane/internal/secretstore/memory"
	secretstorepg "github.com/r3e-collective/dws-controlplane/internal/secretstore/postgres"
	"github.com/r3e-collective/dws-controlplane/internal/storage"
	"github.com/r3e-collective/dws-controlplane/internal/storage/backend"
	storagemem "github.com/r3e-collective/dws-controlplane/internal/storage/memory"
)

func main() {
	addr := flag.String("addr", ":8090", "HTTP listen address for the placement admin API")
	cdnAddr := flag.String("cdn-addr", ":8091", "HTTP listen address for the public content read-through endpoint")
	dsn := flag.String("dsn", "", "PostgreSQL DSN for reputation/secretstore persistence (in-memory when empty)")
	flag.Parse()

	log.Printf("starting dws-controlplane")

	if err := config.ValidateProductionSecrets(nil); err != nil {
		log.Fatalf("startup: %v", err)
	}

	dsnVal := resolveDSN(*dsn)
	var db *sql.DB
	if dsnVal != "" {
		opened, err := database.Open(context.Background(), dsnVal)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		db = opened
		defer db.Close()
	}

	rootLog := logging.NewFromEnv("controlplane")

	nodeRegistry := registry.NewMemoryStore() // in-memory only: the node directory is not persisted across restarts
	reputationSvc := buildReputationService(db, rootLog)
	secretsSvc := buildSecretStoreService(db, rootLog)
	storageMgr := buildStorageManager(rootLog)
	attestationVerifier := buildAttestationVerifier()
	moderationPipeline := buildModerationPipeline(reputationSvc, storageMgr)

	chainRegistry, err := buildChainRegistry()
	if err != nil {
		log.Fatalf("chain facade: %v", err)
	}

	placementSvc := placement.New(placementmem.New(), nodeRegistry, placement.NewNodeClient(), rootLog)
	feeThreshold := int64(config.EnvInt("DEPOSIT_THRESHOLD", 1_000_000))
	feeInterval := config.EnvDuration("DEPOSIT_INTERVAL", 60*time.Second)
	feeCollector := feecollector.New(chainRegistry, feeThreshold, rootLog)

	autoscaleInterval := config.EnvDuration("AUTOSCALE_INTERVAL", 10*time.Second)
	autoscaler := placement.NewAutoscaler(placementSvc, autoscaleInterval, rootLog)
	feeTicker := feecollector.NewTicker(feeCollector, feeInterval)

	// attestationVerifier, moderationPipeline, and secretsSvc are consumed by
	// the node-registration and workload-deployment HTTP surfaces, which
	// this entrypoint does not yet expose; they're constructed here so a
	// future handler file only needs to accept them as arguments.
	log.Printf("control plane ready: attestation=%T moderation=%T secrets=%T", attestationVerifier, moderationPipeline, secretsSvc)

	jwtSecret := []byte(config.Env(nil, "PLACEMENT_JWT_SECRET", ""))
	placementHandler := placement.NewHandler(placementSvc, jwtSecret)

	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.Handle("/", placementHandler)

	server := &http.Server{
		Addr:    *addr,
		Handler: adminMux,
	}
	cdnServer := &http.Server{
		Addr:    *cdnAddr,
		Handler: storage.NewCDNHandler(storageMgr),
	}

	services := []lifecycle.Service{autoscaler, feeTicker}

	ctx := context.Background()
	for _, svc := range services {
		if err := svc.Start(ctx); err != nil {
			log.Fatalf("start lifecycle service: %v", err)
		}
	}

	go func() {
		log.Printf("placement admin API listening on %s", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()
	go func() {
		log.Printf("content CDN listening on %s", *cdnAddr)
		if err := cdnServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("cdn http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = server.Shutdown(shutdownCtx)
	_ = cdnServer.Shutdown(shutdownCtx)
	for _, svc := range services {
		if err := svc.Stop(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

func resolveDSN(flagDSN string) string {
	if v := strings.TrimSpace(flagDSN); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

func buildReputationService(db *sql.DB, log *logging.Logger) *reputation.Service {
	if db != nil {
		return reputation.New(reputationpg.New(sqlx.NewDb(db, "postgres")), log)
	}
	return reputation.New(reputationmem.New(), log)
}

func buildSecretStoreService(db *sql.DB, log *logging.Logger) *secretstore.Service {
	repo := secretstoreRepository(db)
	masterKey := []byte(config.Env(nil, "DWS_ENCRYPTION_SECRET", ""))
	signingKey := []byte(config.Env(nil, "AUDIT_SIGNING_KEY", ""))
	svc, err := secretstore.New(repo, masterKey, signingKey, log)
	if err != nil {
		log.WithError(err).Warn("secretstore not initialised: master/signing key missing or invalid")
	}
	return svc
}

func secretstoreRepository(db *sql.DB) secretstore.Repository {
	if db != nil {
		return secretstorepg.New(sqlx.NewDb(db, "postgres"))
	}
	return secretstoremem.New()
}

func buildStorageManager(log *logging.Logger) *storage.Manager {
	backends := map[string]backend.Backend{
		"local": backend.NewLocal(),
	}
	if apiURL := config.Env(nil, "IPFS_API_URL", ""); apiURL != "" {
		backends["ipfs"] = backend.NewIPFS(apiURL, config.Env(nil, "IPFS_GATEWAY_URL", ""), 60*time.Second)
	}
	if token := config.Env(nil, "WEB3_STORAGE_TOKEN", ""); token != "" {
		backends["filecoin"] = backend.NewFilecoin("https://api.web3.storage", token, 30*time.Second)
	}
	if token := config.Env(nil, "LIGHTHOUSE_TOKEN", ""); token != "" {
		// lighthouse.storage is reached through the Arweave bundler backend
		// (uploads POST to /api/v0/upload and are addressed by the returned
		// txId); there is no dedicated lighthouse backend type.
		backends["arweave"] = backend.NewArweave("https://node1.lighthouse.storage", token, 30*time.Second)
	}
	backends["webtorrent"] = backend.NewWebTorrent()

	mgr := storage.New(storage.DefaultConfig(), backends, storagemem.New(), storage.NewLocalKeyManager([]byte(config.Env(nil, "DWS_ENCRYPTION_SECRET", "dev-only-insecure-key-32-bytes!"))), log)
	if redisAddr := config.Env(nil, "REDIS_ADDR", ""); redisAddr != "" {
		mgr = mgr.WithCache(cache.NewRedisStore(redisAddr, config.Env(nil, "REDIS_PASSWORD", ""), config.EnvInt("REDIS_DB", 0), 5*time.Minute))
	}
	return mgr
}

func buildAttestationVerifier() *attestation.Verifier {
	kds := attestation.NewKDSClient("https://kdsintf.amd.com", "Milan", nil, 3)
	auditLog, err := zap.NewProduction()
	if err != nil {
		auditLog = zap.NewNop()
	}
	return attestation.New(attestation.Config{
		TCB: attestation.TCBMinimums{
			MinIntelTCB: uint64(config.EnvInt("MIN_INTEL_TCB", 0)),
			MinSEVTCB:   uint64(config.EnvInt("MIN_SEV_TCB", 0)),
			RevokedTCBs: map[uint64]bool{},
		},
		KDS:      kds,
		AuditLog: auditLog,
	})
}

func buildModerationPipeline(reputationSvc *reputation.Service, storageMgr *storage.Manager) *moderation.Pipeline {
	blocklist := moderation.Blocklist{}
	for _, image := range config.EnvCSV("MODERATION_BLOCKLIST") {
		blocklist[image] = true
	}
	oracleEndpoint := config.Env(nil, "MODERATION_ORACLE_URL", "")
	var oracle *moderation.OracleClient
	if oracleEndpoint != "" {
		oracle = moderation.NewOracleClient(oracleEndpoint, nil, 15*time.Second)
	}
	return moderation.New(moderation.Config{MaxCodeArtifactBytes: 50 << 20}, reputationSvc, storageMgr, oracle, blocklist, inMemoryReviewQueue{})
}

func buildChainRegistry() (chainfacade.Registry, error) {
	rpcURL := config.Env(nil, "RPC_URL", "")
	if rpcURL == "" {
		return chainfacade.NewMemoryRegistry(), nil
	}
	client, err := chainfacade.NewClient(chainfacade.Config{
		RPCURL:       rpcURL,
		ContractHash: config.Env(nil, "JNS_REGISTRY_ADDRESS", ""),
		Timeout:      15 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return chainfacade.NewNeoRegistry(client), nil
}

// inMemoryReviewQueue is a process-local moderation.ReviewQueue: items
// needing human review are logged, not persisted. A durable queue (backed
// by secretstore's postgres pool, or a dedicated table) is future work.
type inMemoryReviewQueue struct{}

func (inMemoryReviewQueue) Enqueue(ctx context.Context, result moderation.Result, priority moderation.ReviewPriority) error {
	log.Printf("moderation review queued: priority=%s findings=%d", priority, len(result.Findings))
	return nil
}
