package mqtt

import "strings"

// Topic layout:
//
//	ithmonitor/telemetry/{dev_eui}   accepted readings, retained
//	ithmonitor/command/{dev_eui}     operator commands relayed as downlinks
//	ithmonitor/system/status         presence of each core instance, retained
const (
	TopicPrefix   = "ithmonitor"
	PresenceTopic = TopicPrefix + "/system/status"

	telemetryRoot = TopicPrefix + "/telemetry/"
	commandRoot   = TopicPrefix + "/command/"

	// TelemetryFilter and CommandFilter match every device.
	TelemetryFilter = telemetryRoot + "+"
	CommandFilter   = commandRoot + "+"
)

// TelemetryTopic is where a device's readings are published.
func TelemetryTopic(devEUI string) string { return telemetryRoot + devEUI }

// CommandTopic is where operators publish commands for a device.
func CommandTopic(devEUI string) string { return commandRoot + devEUI }

// commandTarget extracts the device EUI from a command topic.
func commandTarget(topic string) (string, bool) {
	eui, ok := strings.CutPrefix(topic, commandRoot)
	if !ok || eui == "" || strings.Contains(eui, "/") {
		return "", false
	}
	return eui, true
}
