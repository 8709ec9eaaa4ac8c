package downlink

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/ith-monitor-core/internal/audit"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`FAN_ON`, "FAN_ON"},
		{"  FAN_OFF\n", "FAN_OFF"},
		{`{"cmd":"HEAT"}`, "HEAT"},
		{`{"other":1}`, ""},
		{`{not json`, "{not json"},
		{``, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseCommand([]byte(tt.payload)), "payload %q", tt.payload)
	}
}

// memoryTrail collects audit entries.
type memoryTrail struct {
	entries []audit.AuditLog
}

func (m *memoryTrail) Create(_ context.Context, l *audit.AuditLog) error {
	m.entries = append(m.entries, *l)
	return nil
}

func (m *memoryTrail) List(context.Context, audit.Filter) (*audit.ListResult, error) {
	return &audit.ListResult{Logs: m.entries, Total: len(m.entries)}, nil
}

func TestCommandHandler(t *testing.T) {
	reg := setupRegistry(t)
	srv, calls := countingServer(t, http.StatusOK)
	trail := &memoryTrail{}
	handler := CommandHandler(NewRelay(reg, testClient(srv.URL), nil), trail)

	require.NoError(t, handler("70b3d57ed003abcd", []byte(`{"cmd":"FAN_ON"}`)))
	assert.Equal(t, int32(1), calls.Load())

	// Dropped without an outbound call: unlinked sensor, empty command,
	// unknown device.
	require.NoError(t, handler("AABBCC", []byte("FAN_ON")))
	require.NoError(t, handler("70B3D57ED003ABCD", []byte("")))
	require.NoError(t, handler("FFFF", []byte("FAN_ON")))
	assert.Equal(t, int32(1), calls.Load())

	require.Len(t, trail.entries, 1)
	assert.Equal(t, audit.SourceMQTT, trail.entries[0].Source)
	assert.Equal(t, "FAN_ON", trail.entries[0].Details["cmd"])
}

func TestCommandHandler_UpstreamFailureIsReported(t *testing.T) {
	reg := setupRegistry(t)
	srv, _ := countingServer(t, http.StatusServiceUnavailable)
	handler := CommandHandler(NewRelay(reg, testClient(srv.URL), nil), nil)

	err := handler("70B3D57ED003ABCD", []byte("FAN_ON"))
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusServiceUnavailable, upstream.Status)
}
