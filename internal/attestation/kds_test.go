package attestation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKDSClientTerminatesOn404(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewKDSClient(server.URL, "Milan", server.Client(), 5)
	_, err := client.FetchChain([]byte{0xde, 0xad, 0xbe, 0xef}, 0)
	require.Error(t, err)
	assert.Equal(t, 1, hits, "404 must be terminal, not retried")
}

func TestKDSClientRetries5xxThenSucceeds(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-pem-file")
		w.Write([]byte("-----BEGIN CERTIFICATE-----\nZm9v\n-----END CERTIFICATE-----\n"))
	}))
	defer server.Close()

	client := NewKDSClient(server.URL, "Milan", server.Client(), 5)
	body, err := client.FetchChain([]byte{0xde, 0xad, 0xbe, 0xef}, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, hits)
	assert.Contains(t, string(body), "BEGIN CERTIFICATE")
}
