package influxdb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "ithmonitor-dev-token",
		Org:           "ithmonitor",
		Bucket:        "mediciones",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := influxdb.Connect(testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

// fakeInflux answers /ping like a healthy server and rejects every write.
func fakeInflux(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":"invalid","message":"bucket not found"}`)) //nolint:errcheck // Test server
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	assert.ErrorIs(t, err, influxdb.ErrDisabled)
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(cfg)
	assert.ErrorIs(t, err, influxdb.ErrConnectionFailed)
}

func TestConnect_Lifecycle(t *testing.T) {
	srv := fakeInflux(t)
	cfg := testConfig()
	cfg.URL = srv.URL
	cfg.BatchSize = 0
	cfg.FlushInterval = -1

	client, err := influxdb.Connect(cfg)
	require.NoError(t, err)
	assert.True(t, client.Connected())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, client.HealthCheck(ctx))

	require.NoError(t, client.Close())
	assert.False(t, client.Connected())
	assert.NoError(t, client.Close(), "second Close")
	assert.ErrorIs(t, client.HealthCheck(ctx), influxdb.ErrNotConnected)
}

func TestWriteReading_RejectedBatchCounted(t *testing.T) {
	srv := fakeInflux(t)
	cfg := testConfig()
	cfg.URL = srv.URL

	client, err := influxdb.Connect(cfg)
	require.NoError(t, err)
	defer client.Close()

	var (
		mu   sync.Mutex
		seen []error
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		seen = append(seen, err)
		mu.Unlock()
	})

	client.WriteReading(influxdb.Reading{DevEUI: "70B3D57ED003ABCD", ITH: 72.4})
	client.Flush()

	require.Eventually(t, func() bool { return client.WriteFailures() == 1 }, 3*time.Second, 20*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 1)
}

func TestWriteReading_Integration(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	require.NoError(t, err)
	defer client.Close()

	client.WriteReading(influxdb.Reading{
		DevEUI:      "70B3D57ED003ABCD",
		Temperature: 24.5,
		Humidity:    61,
		ITH:         72.4,
	})
	client.Flush()
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, client.WriteFailures())
}

func TestClose_ZeroClient(t *testing.T) {
	c := &influxdb.Client{}
	assert.NoError(t, c.Close())
	assert.False(t, c.Connected())
}
