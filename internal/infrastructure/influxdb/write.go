package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementLocationFix = "location_fix"
	MeasurementOutsideTime = "outside_time"
)

// WriteLocationFix records one processed location report. distanceMeters is
// -1 when the fix carried no usable coordinates; those fixes are skipped.
func (c *Client) WriteLocationFix(eventID, participantID string, lat, lon, accuracy float64, distanceMeters int, within bool, battery *float64, at time.Time) {
	if !c.IsConnected() || distanceMeters < 0 {
		return
	}
	c.writeAPI.WritePoint(locationPoint(eventID, participantID, lat, lon, accuracy, distanceMeters, within, battery, at))
}

// WriteOutsideTime records the accumulated seconds outside the geofence and
// the status at that moment.
func (c *Client) WriteOutsideTime(eventID, participantID string, totalSeconds int64, status string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(outsidePoint(eventID, participantID, totalSeconds, status, at))
}

func locationPoint(eventID, participantID string, lat, lon, accuracy float64, distanceMeters int, within bool, battery *float64, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"latitude":   lat,
		"longitude":  lon,
		"accuracy":   accuracy,
		"distance_m": int64(distanceMeters),
	}
	if battery != nil {
		fields["battery_level"] = *battery
	}
	return write.NewPoint(
		MeasurementLocationFix,
		map[string]string{
			"event_id":       eventID,
			"participant_id": participantID,
			"within":         strconv.FormatBool(within),
		},
		fields,
		at,
	)
}

func outsidePoint(eventID, participantID string, totalSeconds int64, status string, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementOutsideTime,
		map[string]string{
			"event_id":       eventID,
			"participant_id": participantID,
			"status":         status,
		},
		map[string]interface{}{
			"total_seconds": totalSeconds,
		},
		at,
	)
}
