package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEligibleBackendsTable6T(t *testing.T) {
	backends, replication := EligibleBackends(TierSystem, EnvProduction, nil)
	assert.Equal(t, []string{"ipfs", "filecoin"}, backends)
	assert.Equal(t, 2, replication)

	backends, replication = EligibleBackends(TierSystem, EnvLocalnet, nil)
	assert.Equal(t, []string{"ipfs"}, backends)
	assert.Equal(t, 1, replication)

	backends, replication = EligibleBackends(TierPrivate, EnvProduction, nil)
	assert.Equal(t, []string{"ipfs"}, backends)
	assert.Equal(t, 1, replication)
}

func TestEligibleBackendsCallerOverride(t *testing.T) {
	backends, replication := EligibleBackends(TierPopular, EnvProduction, []string{"local"})
	assert.Equal(t, []string{"local"}, backends)
	assert.Equal(t, 2, replication, "override keeps the tier's replication target")
}
