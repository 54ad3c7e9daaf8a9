// Package mqtt connects KeyCounter to an MQTT broker.
//
// The broker is an optional side channel: device state is fanned out as
// retained messages, the service announces itself online/offline on a status
// topic (with a Last Will so a crash is visible), and display button presses
// can be injected remotely. Telemetry ingestion never depends on it.
//
// # Topics
//
// All topics hang off a configurable prefix (default "keycounter"):
//
//	keycounter/device/{id}/state   retained device state (JSON)
//	keycounter/host/stats          host temperature and process stats
//	keycounter/system/status       online/offline, retained, LWT
//	keycounter/display/button      "A".."D" or {"button":"B"}
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, log)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.SubscribeButtons(queue.Press)
//	err = client.HealthCheck(ctx)
//	err = client.PublishDeviceState(state)
package mqtt
