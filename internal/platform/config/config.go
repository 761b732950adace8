// Package config provides environment/secret-backed configuration loading,
// the way infrastructure/config.EnvOrSecret does it in the teacher: a
// SecretSource (an injected TEE secret store) is consulted before the
// process environment, before a caller-supplied default. Absence of a
// required value in production is fatal at startup (spec §6/§7), never a
// silent default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SecretSource is consulted before environment variables. In production this
// is backed by the TEE's injected-secrets mechanism; in tests and local runs
// it is nil and lookups fall straight through to the environment.
type SecretSource interface {
	Secret(name string) ([]byte, bool)
}

// Env retrieves a string value: secret source, then env var, then default.
func Env(src SecretSource, key, defaultValue string) string {
	if src != nil {
		if v, ok := src.Secret(key); ok && len(v) > 0 {
			return strings.TrimSpace(string(v))
		}
	}
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// RequireEnv retrieves a required value, returning an error that callers
// should treat as a Fatal startup error in production (spec §6).
func RequireEnv(src SecretSource, key string) (string, error) {
	v := Env(src, key, "")
	if v == "" {
		return "", fmt.Errorf("config: %s is required", key)
	}
	return v, nil
}

// EnvBool parses a boolean env var. Accepts true/1/yes/y case-insensitively.
func EnvBool(key string, defaultValue bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return defaultValue
	case "true", "1", "yes", "y":
		return true
	case "false", "0", "no", "n":
		return false
	default:
		return defaultValue
	}
}

// EnvInt parses an integer env var, falling back to defaultValue on error.
func EnvInt(key string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// EnvDuration parses a duration env var (e.g. "30s"), falling back on error.
func EnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

// EnvCSV parses a comma-separated env var into a trimmed, non-empty slice.
func EnvCSV(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction reports whether GO_ENV/NODE_ENV/DENO_ENV indicate a
// production deployment. Everything not explicitly "development"/"dev"/
// "local" is treated as production for the purposes of required-secret
// enforcement (spec §6: "Absence of required secrets in production is a
// fatal startup error, not a warning").
func IsProduction() bool {
	for _, key := range []string{"GO_ENV", "NODE_ENV", "DENO_ENV"} {
		v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
		if v == "development" || v == "dev" || v == "local" {
			return false
		}
	}
	return true
}

// RequiredProductionKeys lists the environment knobs spec §6 calls out as
// mandatory in production.
var RequiredProductionKeys = []string{
	"RPC_URL",
	"AUDIT_SIGNING_KEY",
	"DWS_ENCRYPTION_SECRET",
	"VERIFIER_PRIVATE_KEY",
}

// ValidateProductionSecrets returns a Fatal-class error listing any required
// key that is missing, when running in production. Call this once at
// process startup, before any subsystem is constructed.
func ValidateProductionSecrets(src SecretSource) error {
	if !IsProduction() {
		return nil
	}
	var missing []string
	for _, key := range RequiredProductionKeys {
		if Env(src, key, "") == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required production secrets: %s", strings.Join(missing, ", "))
	}
	return nil
}
