package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, "ithmonitor/telemetry/70B3D57ED003ABCD", TelemetryTopic("70B3D57ED003ABCD"))
	assert.Equal(t, "ithmonitor/command/AABBCC", CommandTopic("AABBCC"))
	assert.Equal(t, "ithmonitor/command/+", CommandFilter)
	assert.Equal(t, "ithmonitor/telemetry/+", TelemetryFilter)
	assert.Equal(t, "ithmonitor/system/status", PresenceTopic)
}

func TestCommandTarget(t *testing.T) {
	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"ithmonitor/command/AABBCC", "AABBCC", true},
		{"ithmonitor/telemetry/70B3D57ED003ABCD", "", false},
		{"ithmonitor/command/", "", false},
		{"ithmonitor/system/status", "", false},
		{"other/command/AABBCC", "", false},
		{"ithmonitor/command/AABBCC/extra", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := commandTarget(tt.topic)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
