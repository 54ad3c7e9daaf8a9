package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/keycounter-core/internal/device"
	"github.com/nerrad567/keycounter-core/internal/hoststats"
)

// Measurement names.
const (
	MeasurementTelemetry = "keycounter_telemetry"
	MeasurementHost      = "keycounter_host"
)

// WriteTelemetry records the counters of one device state.
//
// The point is stamped with the state's LastSeen time (or now when zero)
// and tagged with device_id and, when known, the reported system label.
func (c *Client) WriteTelemetry(st device.State) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(telemetryPoint(st, time.Now()))
	c.telemetry.Add(1)
}

// WriteHostStats records one host sample. Samples with no valid
// temperature and no process figures are skipped.
func (c *Client) WriteHostStats(snap hoststats.Snapshot) {
	if !c.IsConnected() {
		return
	}
	if p := hostPoint(c.cfg.Org, snap); p != nil {
		c.writeAPI.WritePoint(p)
		c.host.Add(1)
	}
}

func telemetryPoint(st device.State, now time.Time) *write.Point {
	ts := st.LastSeen
	if ts.IsZero() {
		ts = now
	}

	tags := map[string]string{"device_id": st.ID.String()}
	if st.SystemLabel != "" {
		tags["system"] = st.SystemLabel
	}

	return write.NewPoint(MeasurementTelemetry, tags, map[string]interface{}{
		"session_total":  st.SessionTotal,
		"streak_current": st.StreakCurrent,
		"streak_average": st.StreakAverage,
		"sequence":       st.Sequence,
	}, ts)
}

func hostPoint(org string, snap hoststats.Snapshot) *write.Point {
	fields := make(map[string]interface{}, 6)
	if snap.Temperature.Valid {
		fields["temp_current"] = snap.Temperature.Current
		fields["temp_max"] = snap.Temperature.Max
		fields["temp_min"] = snap.Temperature.Min
		fields["temp_avg"] = snap.Temperature.Avg
	}
	if snap.HasProcess {
		fields["cpu_percent"] = snap.Process.CPUPercent
		fields["rss_bytes"] = snap.Process.RSSBytes
	}
	if len(fields) == 0 {
		return nil
	}

	ts := snap.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementHost, map[string]string{"org": org}, fields, ts)
}
