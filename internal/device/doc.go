// Package device provides the in-memory device registry for KeyCounter Core.
//
// Sensor clients push telemetry messages keyed by device_id. The registry
// keeps one State per device and forgets devices that have been silent for
// five minutes. Nothing is persisted.
//
// # Key Types
//
//   - ID: device identifier (JSON number or string on the wire)
//   - Payload: one decoded telemetry message with optional blocks
//   - State: the merged view of a device, including a 30-sample history
//     of streak averages used for the trend chart
//   - Registry: ordered collection of States with opportunistic expiry
//
// # Merge Semantics
//
// Updates are partial at field level. A message carrying only
// {"streak":{"pulsation_average":130}} changes StreakAverage and History and
// leaves the session total, streak current and system label as they were.
//
// # Usage
//
//	reg := device.NewRegistry()
//	p, err := device.DecodePayload(raw)
//	if err != nil {
//	    return // dropped
//	}
//	st, _ := reg.Upsert(p)
//	fmt.Println(st.ID, st.History)
//
// The registry is not goroutine-safe; see package arbiter.
package device
