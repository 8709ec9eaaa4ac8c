package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// readingMeasurement is the InfluxDB measurement holding sensor readings.
const readingMeasurement = "ith_readings"

// Reading is one sample to mirror. Empty tag values are omitted.
type Reading struct {
	DevEUI        string
	DeviceID      string
	ApplicationID string
	Temperature   float64
	Humidity      float64
	ITH           float64
	Time          time.Time
}

// WriteReading queues a reading for the next batch. No-op when disconnected.
func (c *Client) WriteReading(r Reading) {
	if !c.Connected() {
		return
	}
	c.writeAPI.WritePoint(readingPoint(r))
}

func readingPoint(r Reading) *write.Point {
	tags := make(map[string]string, 3)
	if r.DevEUI != "" {
		tags["dev_eui"] = r.DevEUI
	}
	if r.DeviceID != "" {
		tags["device_id"] = r.DeviceID
	}
	if r.ApplicationID != "" {
		tags["application_id"] = r.ApplicationID
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		readingMeasurement,
		tags,
		map[string]interface{}{
			"temperatura": r.Temperature,
			"humedad":     r.Humidity,
			"ith":         r.ITH,
		},
		ts,
	)
}
