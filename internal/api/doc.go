// Package api implements the HTTP API and WebSocket stream for ITH Monitor Core.
//
// This package provides:
//   - The network-server webhook that feeds the ingestion pipeline
//   - Sensor registry endpoints (create, list, get, metadata update, downlink addressing)
//   - Latest-measurement queries and the downlink command relay
//   - WebSocket hub streaming stored measurements to subscribers
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Status codes
//
// Webhook rejections the network server must not retry (malformed payload,
// missing identity, out-of-range reading) answer 4xx. Storage failures answer
// 500 so the network server retries them.
//
// # Graceful Degradation
//
// The server operates without MQTT or InfluxDB. Measurements are always stored
// in the relational store; the optional sinks only mirror them.
package api
