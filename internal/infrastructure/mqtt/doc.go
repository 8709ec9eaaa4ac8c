// Package mqtt connects ITH Monitor Core to an MQTT broker.
//
// Accepted readings are published, retained, on ithmonitor/telemetry/{dev_eui}
// so dashboards and alerting services see each device's latest reading
// without polling the HTTP API. Operators may publish a command on
// ithmonitor/command/{dev_eui}; the handler installed with OnCommand relays
// it to the device as a downlink.
//
// Each core announces itself on ithmonitor/system/status with a retained
// Presence document. The same topic carries the Last Will, so a crashed
// instance shows as offline with reason connection_lost.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.OnCommand(func(devEUI string, payload []byte) error { ... })
//
// TLS is enabled with mqtt.broker.tls; credentials come from mqtt.auth or
// the ITHMONITOR_MQTT_USERNAME / ITHMONITOR_MQTT_PASSWORD variables.
package mqtt
