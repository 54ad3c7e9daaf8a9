// Package protocol implements the telemetry ingestion server.
//
// Sensor clients open a TCP connection and write JSON objects:
//
//	{"device_id":3,"session":{"pulsations_total":812},
//	 "streak":{"pulsations_current":44,"pulsation_average":131.5},
//	 "timestamp":"2024-03-01 10:00:00 UTC","time":"10:00:00",
//	 "system":{"so":"Debian Testing"}}
//
// Every object that parses and carries a device_id is answered with
// {"status":"ok"} and handed to the dispatch callback. Anything else is
// dropped without a reply and the connection stays open.
//
// One connection is serviced at a time. A read that times out, returns no
// data, or fails closes the connection and frees the slot.
package protocol
