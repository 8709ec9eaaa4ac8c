// Package downlink relays operator commands to LoRaWAN devices through The
// Things Stack v3 downlink API.
//
// Relay resolves the target sensor by EUI and requires its network-server
// addressing pair (ttn_app_id, ttn_device_id); an unlinked sensor is refused
// with ErrNotLinked before anything leaves the process. Client encodes the
// command bytes as base64 frm_payload and pushes a single frame on the
// configured FPort with NORMAL priority, authenticated with a bearer API key.
// A non-2xx answer becomes *UpstreamError carrying the remote status and body.
package downlink
