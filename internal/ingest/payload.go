package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/ith-monitor-core/internal/sensor"
)

// Uplink is the subset of a The Things Stack v3 uplink webhook body that the
// pipeline consumes.
type Uplink struct {
	EndDeviceIDs  EndDeviceIDs   `json:"end_device_ids"`
	UplinkMessage *UplinkMessage `json:"uplink_message"`
	ReceivedAt    string         `json:"received_at,omitempty"`
}

// EndDeviceIDs identifies the device that sent the uplink.
// DevEUI is kept loosely typed: early payload shapes omit it, and anything
// other than a string is treated as absent.
type EndDeviceIDs struct {
	DeviceID       string         `json:"device_id"`
	DevEUI         any            `json:"dev_eui"`
	ApplicationIDs ApplicationIDs `json:"application_ids"`
}

// ApplicationIDs identifies the network-server application.
type ApplicationIDs struct {
	ApplicationID string `json:"application_id"`
}

// UplinkMessage carries the payload decoded by the network server's formatter.
type UplinkMessage struct {
	FPort          int            `json:"f_port"`
	DecodedPayload map[string]any `json:"decoded_payload"`
}

// DecodeUplink parses a webhook body. Numbers are kept as json.Number so that
// integer and float readings are handled alike.
func DecodeUplink(body []byte) (*Uplink, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var u Uplink
	if err := dec.Decode(&u); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if u.UplinkMessage == nil || u.UplinkMessage.DecodedPayload == nil {
		return nil, fmt.Errorf("%w: uplink_message.decoded_payload is missing", ErrMalformedPayload)
	}
	return &u, nil
}

// EUI returns the canonical device EUI, or "" when absent.
func (u *Uplink) EUI() string {
	return sensor.NormalizeEUIValue(u.EndDeviceIDs.DevEUI)
}

// Field returns a decoded payload value (nil when absent).
func (u *Uplink) Field(name string) any {
	return u.UplinkMessage.DecodedPayload[name]
}
