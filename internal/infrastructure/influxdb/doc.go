// Package influxdb records location fixes and outside-time samples in
// InfluxDB for post-event review.
//
// Writes are batched and non-blocking; failures surface through the
// SetOnError callback and never reach the tracking path.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteLocationFix("evt-1", "p-1", 51.5, -0.12, 8, 42, true, nil, time.Now())
//
// Measurements:
//
//	location_fix   tags: event_id, participant_id, within
//	               fields: latitude, longitude, accuracy, distance_m, battery_level
//	outside_time   tags: event_id, participant_id, status
//	               fields: total_seconds
package influxdb
