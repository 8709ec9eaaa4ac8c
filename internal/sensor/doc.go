// Package sensor is the device-identity registry for ITH Monitor Core.
//
// Sensors are keyed by an internal id and, once known, by the device EUI
// reported by the LoRaWAN network server. EUIs are compared in canonical form
// (see NormalizeEUI), and at most one sensor may carry a given EUI.
//
// The Registry offers two write paths:
//
//   - ResolveOrCreate, used by ingestion: find the sensor for an EUI or
//     register a placeholder. Races between first sightings are settled by
//     the store's unique constraint.
//   - UpdateMetadata, used by operators: patch labels, mode and threshold
//     on a sensor chosen by id or EUI, optionally attaching an EUI to a
//     sensor that has none. Both steps share one transaction.
//
// Persistence is behind the Repository interface; SQLRepository works on
// both store dialects.
package sensor
