package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/geowatch-core/internal/event"
)

// wireReport mirrors LocationReport with pointers so a missing coordinate
// can be told apart from 0.
type wireReport struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Accuracy     float64  `json:"accuracy"`
	BatteryLevel *float64 `json:"battery_level"`
}

// DecodeReport parses a JSON location payload. Both coordinates are
// required; range checks are left to Evaluate.
func DecodeReport(payload []byte) (LocationReport, error) {
	var w wireReport
	if err := json.Unmarshal(payload, &w); err != nil {
		return LocationReport{}, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	if w.Latitude == nil || w.Longitude == nil {
		return LocationReport{}, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidReport)
	}
	return LocationReport{
		Latitude:     *w.Latitude,
		Longitude:    *w.Longitude,
		Accuracy:     w.Accuracy,
		BatteryLevel: w.BatteryLevel,
	}, nil
}

// HandleLocationMessage ingests a fix that arrived on a device topic.
// Reports for participants without a record are dropped, since devices keep
// publishing after tracking was torn down.
func (m *Monitor) HandleLocationMessage(ctx context.Context, eventID, participantID string, payload []byte) error {
	report, err := DecodeReport(payload)
	if err != nil {
		return err
	}

	_, err = m.Ingest(ctx, eventID, participantID, report)
	if errors.Is(err, ErrRecordNotFound) || errors.Is(err, event.ErrEventNotFound) {
		m.logger.Debug("location ignored: participant not tracked", "event_id", eventID, "participant_id", participantID)
		return nil
	}
	return err
}
