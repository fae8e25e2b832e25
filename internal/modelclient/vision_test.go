package modelclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/modelclient"
)

func testCfg(endpoint string) *config.ModelClientConfig {
	return &config.ModelClientConfig{
		VisionEndpoint:      endpoint,
		TextEndpoint:        endpoint,
		RequestTimeout:      2 * time.Second,
		BreakerMaxRequests:  1,
		BreakerInterval:     time.Minute,
		BreakerTimeout:      time.Minute,
		BreakerFailureRatio: 0.6,
	}
}

func TestVisionClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := modelclient.NewVisionClient(testCfg(srv.URL))
	embedding, err := c.Embed(context.Background(), []byte("fake-jpeg-bytes"))
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, embedding)
}

func TestVisionClient_Embed_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model unavailable"))
	}))
	defer srv.Close()

	c := modelclient.NewVisionClient(testCfg(srv.URL))
	_, err := c.Embed(context.Background(), []byte("x"))
	require.Error(t, err)
}

func TestTextClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.5, 0.6}})
	}))
	defer srv.Close()

	c := modelclient.NewTextClient(testCfg(srv.URL))
	embedding, err := c.Embed(context.Background(), "a burning vehicle on main street")
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, 0.6}, embedding)
}
