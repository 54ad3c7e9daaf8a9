// Package influxdb stores keycounter telemetry in InfluxDB v2.
//
// Every accepted device state becomes a keycounter_telemetry point tagged
// with device_id, and each host sample becomes a keycounter_host point.
// Writes go through the batched non-blocking write API, sized by
// influxdb.batch_size and influxdb.flush_interval.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, log)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry history not wanted
//	}
//	defer client.Close()
//
//	client.WriteTelemetry(state)
//
// Connection and health check errors are returned directly. Failed batches
// arrive asynchronously; they are logged and counted in Stats.
package influxdb
