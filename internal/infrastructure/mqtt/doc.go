// Package mqtt connects geowatch to the MQTT broker.
//
// Devices publish location fixes to geowatch/location/{event}/{participant};
// the core subscribes to them and publishes alerts and retained status per
// participant for dashboards and notification services. See Topics for the
// full hierarchy.
//
// The client wraps paho.mqtt.golang with:
//   - auto-reconnect with backoff, restoring subscriptions on reconnect
//   - a retained presence message plus Last Will on geowatch/system/status
//   - panic recovery around message handlers
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllLocations(), 1,
//	    func(topic string, payload []byte) error {
//	        eventID, participantID, ok := mqtt.ParseLocationTopic(topic)
//	        ...
//	    })
//
// Use TLS (broker.tls) outside local development: location payloads carry
// participant coordinates.
package mqtt
