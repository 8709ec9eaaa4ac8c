package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/config"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	keepAlive         = 60 * time.Second
	disconnectQuiesce = 1000 // milliseconds
)

// Presence reasons.
const (
	reasonLost     = "connection_lost"
	reasonShutdown = "shutdown"
)

// Presence is the retained document on PresenceTopic. The broker publishes
// the offline form as the Last Will when a core drops without closing.
type Presence struct {
	State     string    `json:"state"`
	Instance  string    `json:"instance"`
	Reason    string    `json:"reason,omitempty"`
	Telemetry string    `json:"telemetry"`
	Commands  string    `json:"commands"`
	At        time.Time `json:"at"`
}

func presence(instance, state, reason string) []byte {
	b, _ := json.Marshal(Presence{ //nolint:errcheck // fixed string and time fields always marshal
		State:     state,
		Instance:  instance,
		Reason:    reason,
		Telemetry: TelemetryFilter,
		Commands:  CommandFilter,
		At:        time.Now().UTC().Truncate(time.Second),
	})
	return b
}

// clientOptions maps the mqtt config section onto paho: broker URL (tcp or
// ssl), credentials, reconnect backoff and the offline Last Will.
func clientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay)*time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay)*time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetWill(PresenceTopic, string(presence(cfg.Broker.ClientID, "offline", reasonLost)), 1, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}
