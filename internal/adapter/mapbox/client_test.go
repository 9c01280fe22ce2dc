package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/traffic-congestion/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string, metrics *observability.Metrics) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_ReverseGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Mapbox expects lon,lat.
		assert.Contains(t, r.URL.Path, "-118.318290,34.154970")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, sensorPlaceTypes, r.URL.Query().Get("types"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		resp := response{
			Features: []feature{{
				Center:    []float64{-118.2551, 34.1425},
				PlaceName: "Glendale, California, United States",
				Text:      "Glendale",
				Relevance: 1,
			}},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	m := observability.NewMetricsForTesting()
	result, err := testClient(srv.URL, m).ReverseGeocode(context.Background(), 34.15497, -118.31829)
	require.NoError(t, err)

	assert.Equal(t, "Glendale", result.PlaceName)
	assert.Equal(t, "Glendale, California, United States", result.FormattedAddress)
	assert.InDelta(t, 34.1425, result.Lat, 1e-9)
	assert.InDelta(t, -118.2551, result.Lon, 1e-9)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues(methodReverse, "success")), 0)
}

func TestClient_ReverseGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	m := observability.NewMetricsForTesting()
	result, err := testClient(srv.URL, m).ReverseGeocode(context.Background(), 0, 0)
	require.NoError(t, err)

	assert.Empty(t, result.FormattedAddress)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues(methodReverse, "empty")), 0)
}

func TestClient_ReverseGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized - Invalid Token"}`))
	}))
	defer srv.Close()

	m := observability.NewMetricsForTesting()
	_, err := testClient(srv.URL, m).ReverseGeocode(context.Background(), 34.1, -118.3)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "Invalid Token")
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues(methodReverse, "error")), 0)
}

func TestClient_ReverseGeocode_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"features": [`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, observability.NewMetricsForTesting()).ReverseGeocode(context.Background(), 34.1, -118.3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_ReverseGeocode_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL, observability.NewMetricsForTesting()).ReverseGeocode(ctx, 34.1, -118.3)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(testToken, 3*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
}
