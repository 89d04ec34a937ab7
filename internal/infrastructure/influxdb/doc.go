// Package influxdb records beacon heartbeat metrics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Writes are
// non-blocking and batched according to influxdb.batch_size and
// influxdb.flush_interval; async write failures are delivered to the
// callback set with SetOnError.
//
// Two measurements are written:
//
//	heartbeat       device_id | ip, ntp_offset_ms, reconnects, session_uptime_s
//	broker_session  device_id, broker | attempts
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
//
//	client.WriteHeartbeat(influxdb.Heartbeat{DeviceID: id, IP: "10.0.0.42"})
package influxdb
