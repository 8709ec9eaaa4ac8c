// Package config handles loading and validating ITH Monitor Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with ITHMONITOR_* environment variables
//   - Validation of required fields, reporting every problem at once
//   - Default value handling
//
// Credentials (database password, network-server API key, MQTT and InfluxDB
// tokens) should be supplied through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.DownlinkBaseURL())
package config
