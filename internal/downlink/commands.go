package downlink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/nerrad567/ith-monitor-core/internal/audit"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/mqtt"
)

// commandTimeout bounds one broker-initiated relay.
const commandTimeout = 15 * time.Second

// commandMessage is the JSON form of a command published on
// ithmonitor/command/{dev_eui}. A non-JSON payload is the command itself.
type commandMessage struct {
	Command string `json:"cmd"`
}

// CommandHandler returns an MQTT handler relaying commands published on the
// per-device command topics. Malformed or unroutable commands are logged and
// dropped; they are not redelivered. Relayed commands are recorded in trail
// when it is non-nil.
func CommandHandler(relay *Relay, trail audit.Repository) mqtt.CommandHandler {
	return func(eui string, payload []byte) error {
		cmd := parseCommand(payload)
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		receipt, err := relay.Send(ctx, eui, cmd)
		if err != nil {
			var upstream *UpstreamError
			if errors.As(err, &upstream) {
				return err
			}
			relay.logger.Warn("downlink command dropped", "dev_eui", eui, "error", err)
			return nil
		}

		if trail != nil {
			entry := &audit.AuditLog{
				Action:     audit.ActionDownlinkSend,
				EntityType: audit.EntitySensor,
				EntityID:   strconv.FormatInt(receipt.SensorID, 10),
				Source:     audit.SourceMQTT,
				Details: map[string]any{
					"dev_eui":        receipt.DevEUI,
					"cmd":            cmd,
					"correlation_id": receipt.CorrelationID,
				},
			}
			if err := trail.Create(ctx, entry); err != nil {
				relay.logger.Warn("audit log write failed", "action", entry.Action, "error", err)
			}
		}
		return nil
	}
}

func parseCommand(payload []byte) string {
	payload = bytes.TrimSpace(payload)
	if len(payload) > 0 && payload[0] == '{' {
		var msg commandMessage
		if err := json.Unmarshal(payload, &msg); err == nil {
			return msg.Command
		}
	}
	return string(payload)
}
