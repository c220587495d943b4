package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every geowatch topic.
//
//	geowatch/location/{eventID}/{participantID}   devices -> core, location reports
//	geowatch/alert/{eventID}/{participantID}      core -> dashboards, geofence alerts
//	geowatch/status/{eventID}/{participantID}     core -> dashboards, retained status
//	geowatch/system/status                        core presence (retained, LWT)
const TopicPrefix = "geowatch"

// Topics provides builders for geowatch MQTT topics.
//
//	topic := mqtt.Topics{}.Location("evt-1", "p-1")
//	// Returns: "geowatch/location/evt-1/p-1"
type Topics struct{}

// Location returns the topic a participant's device publishes fixes on.
func (Topics) Location(eventID, participantID string) string {
	return fmt.Sprintf("%s/location/%s/%s", TopicPrefix, eventID, participantID)
}

// Alert returns the topic geofence alerts for a participant are published on.
func (Topics) Alert(eventID, participantID string) string {
	return fmt.Sprintf("%s/alert/%s/%s", TopicPrefix, eventID, participantID)
}

// Status returns the retained per-participant status topic.
func (Topics) Status(eventID, participantID string) string {
	return fmt.Sprintf("%s/status/%s/%s", TopicPrefix, eventID, participantID)
}

// SystemStatus returns the core presence topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllLocations matches every location report.
//
// Pattern: geowatch/location/+/+
func (Topics) AllLocations() string {
	return TopicPrefix + "/location/+/+"
}

// EventAlerts matches every alert of one event.
//
// Pattern: geowatch/alert/{eventID}/+
func (Topics) EventAlerts(eventID string) string {
	return fmt.Sprintf("%s/alert/%s/+", TopicPrefix, eventID)
}

// ParseLocationTopic extracts the event and participant from a location
// topic. ok is false for any other topic or an empty segment.
func ParseLocationTopic(topic string) (eventID, participantID string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefix+"/location/")
	if !found {
		return "", "", false
	}
	eventID, participantID, found = strings.Cut(rest, "/")
	if !found || eventID == "" || participantID == "" || strings.Contains(participantID, "/") {
		return "", "", false
	}
	return eventID, participantID, true
}
