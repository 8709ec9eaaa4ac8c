// Package influxdb mirrors accepted readings into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library: Connect pings the
// server and opens a non-blocking, batched write API; WriteReading queues one
// point per measurement in the "ith_readings" measurement, tagged by device
// EUI, device id and application id.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading(influxdb.Reading{DevEUI: "70B3D57ED003ABCD", ITH: 72.4})
//
// The relational store remains the system of record. Batch failures are
// delivered to the SetOnError callback and never reach the ingesting request.
package influxdb
