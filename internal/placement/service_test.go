package placement_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-collective/dws-controlplane/internal/placement"
	"github.com/r3e-collective/dws-controlplane/internal/placement/memory"
	"github.com/r3e-collective/dws-controlplane/internal/registry"

	"context"
)

// newWorkerdStub starts a server answering the workerd deploy/stop wire
// protocol (spec.md §6) with a bare 200 OK, enough for Service to mark an
// instance warm.
func newWorkerdStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T) (*placement.Service, registry.Store, *httptest.Server) {
	t.Helper()
	nodeStore := registry.NewMemoryStore()
	stub := newWorkerdStub(t)

	_, err := nodeStore.Register(context.Background(), registry.Node{
		ID:           "node-1",
		Endpoint:     stub.URL,
		Capabilities: map[registry.Capability]bool{registry.CapabilityCompute: true},
		Reputation:   80,
		Stake:        1000,
	})
	require.NoError(t, err)
	_, err = nodeStore.SetStatus(context.Background(), "node-1", registry.StatusActive)
	require.NoError(t, err)
	_, err = nodeStore.Heartbeat(context.Background(), "node-1", time.Now())
	require.NoError(t, err)

	svc := placement.New(memory.New(), nodeStore, placement.NewNodeClient(), nil)
	return svc, nodeStore, stub
}

func baseWorkload() placement.Workload {
	return placement.Workload{
		Name:       "hello-worker",
		Owner:      "owner-1",
		CodeCID:    "bafy-test",
		Entrypoint: "index.js",
		Runtime:    "workerd",
		Requirements: placement.Requirements{
			Capabilities: []registry.Capability{registry.CapabilityCompute},
		},
		Scaling: placement.DefaultScalingConfig(),
	}
}

func TestDeployBecomesActiveWhenInstanceComesUpWarm(t *testing.T) {
	svc, _, _ := newTestService(t)

	deployed, err := svc.Deploy(context.Background(), baseWorkload(), []byte("artifact-bytes"))
	require.NoError(t, err)
	assert.Equal(t, placement.WorkloadActive, deployed.Status)
	assert.NotEmpty(t, deployed.ID)
	assert.NotEmpty(t, deployed.ExpectedHash)
}

func TestDeployFailsWhenNoEligibleNode(t *testing.T) {
	svc, _, _ := newTestService(t)

	w := baseWorkload()
	w.Requirements.Capabilities = []registry.Capability{registry.CapabilityStorage}
	_, err := svc.Deploy(context.Background(), w, []byte("artifact-bytes"))
	assert.Error(t, err)
}

func TestDeployRejectsInvalidScalingBounds(t *testing.T) {
	svc, _, _ := newTestService(t)

	w := baseWorkload()
	w.Scaling.MinInstances = 5
	w.Scaling.MaxInstances = 2
	_, err := svc.Deploy(context.Background(), w, []byte("x"))
	assert.Error(t, err)
}

func TestStopDrainsAndStopsWorkload(t *testing.T) {
	svc, _, _ := newTestService(t)

	deployed, err := svc.Deploy(context.Background(), baseWorkload(), []byte("artifact-bytes"))
	require.NoError(t, err)

	err = svc.Stop(context.Background(), deployed.ID)
	require.NoError(t, err)
}

func TestRouteForwardsToWarmInstanceAndUpdatesCounters(t *testing.T) {
	svc, _, _ := newTestService(t)

	deployed, err := svc.Deploy(context.Background(), baseWorkload(), []byte("artifact-bytes"))
	require.NoError(t, err)

	var sawActiveRequests int
	inst, err := svc.Route(context.Background(), deployed.ID, 10, func(i placement.Instance) (bool, time.Duration) {
		sawActiveRequests = i.ActiveRequests
		return true, 25 * time.Millisecond
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sawActiveRequests, "invoke must observe the incremented count")
	assert.Equal(t, 0, inst.ActiveRequests, "decremented back to 0 after completion")
	assert.Equal(t, int64(1), inst.Requests)
	assert.Equal(t, int64(0), inst.Errors)
	assert.Greater(t, inst.LatencyEWMA, 0.0)
}

func TestRouteRecordsErrorsFromFailedInvocations(t *testing.T) {
	svc, _, _ := newTestService(t)

	deployed, err := svc.Deploy(context.Background(), baseWorkload(), []byte("artifact-bytes"))
	require.NoError(t, err)

	inst, err := svc.Route(context.Background(), deployed.ID, 10, func(i placement.Instance) (bool, time.Duration) {
		return false, 5 * time.Millisecond
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inst.Errors)
}

func TestRouteReturnsExhaustedWhenAtCapacityAndMaxInstances(t *testing.T) {
	svc, _, _ := newTestService(t)

	w := baseWorkload()
	w.Scaling.MinInstances = 1
	w.Scaling.MaxInstances = 1
	deployed, err := svc.Deploy(context.Background(), w, []byte("artifact-bytes"))
	require.NoError(t, err)

	// maxConcurrency=1, and the invoke closure never returns until we
	// release it, so a nested concurrent Route call would block in the
	// real instance; instead we exercise the decision path directly by
	// invoking with maxConcurrency=0, which no live instance can satisfy
	// and which is already at MaxInstances, so Route must report
	// exhaustion rather than attempt a scale-up.
	_, err = svc.Route(context.Background(), deployed.ID, 0, func(i placement.Instance) (bool, time.Duration) {
		return true, time.Millisecond
	})
	assert.Error(t, err)
}
