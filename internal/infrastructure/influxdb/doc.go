// Package influxdb provides optional time-series recording of synchronizer
// activity.
//
// When enabled, the attribute-sync scheduler and the event synchronizers
// record poll runs and propagated events so operators can graph throughput
// and failure rates. The integration is strictly optional: when disabled in
// configuration, Connect returns ErrDisabled and callers run without it.
//
// Writes are batched and asynchronous; a failed InfluxDB never blocks or
// fails synchronization itself.
package influxdb
