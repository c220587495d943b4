package tracking

import (
	"context"
	"errors"
	"testing"
)

func TestDecodeReport(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
		lat     float64
	}{
		{"full", `{"latitude":0.001,"longitude":0,"accuracy":5,"battery_level":0.4}`, false, 0.001},
		{"zero coordinates", `{"latitude":0,"longitude":0}`, false, 0},
		{"missing longitude", `{"latitude":1}`, true, 0},
		{"not json", `lat=1`, true, 0},
		{"wrong type", `{"latitude":"1","longitude":2}`, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeReport([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidReport) {
					t.Errorf("DecodeReport() error = %v, want ErrInvalidReport", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeReport() error = %v", err)
			}
			if got.Latitude != tt.lat {
				t.Errorf("Latitude = %v, want %v", got.Latitude, tt.lat)
			}
		})
	}
}

func TestHandleLocationMessage(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	rec, err := f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1")
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	// About 111m east of the centre, outside the 50m radius.
	if err := f.monitor.HandleLocationMessage(ctx, "evt-1", "p-1", []byte(`{"latitude":0,"longitude":0.001,"accuracy":5}`)); err != nil {
		t.Fatalf("HandleLocationMessage() error = %v", err)
	}
	got, err := f.records.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.HasFix() || got.IsWithinGeofence {
		t.Errorf("record after message: fix %v within %v", got.HasFix(), got.IsWithinGeofence)
	}

	if err := f.monitor.HandleLocationMessage(ctx, "evt-1", "p-1", []byte(`{}`)); !errors.Is(err, ErrInvalidReport) {
		t.Errorf("empty payload error = %v, want ErrInvalidReport", err)
	}

	// Untracked participants and unknown events are dropped quietly.
	if err := f.monitor.HandleLocationMessage(ctx, "evt-1", "nobody", []byte(`{"latitude":0,"longitude":0}`)); err != nil {
		t.Errorf("untracked participant error = %v", err)
	}
	if err := f.monitor.HandleLocationMessage(ctx, "evt-missing", "p-1", []byte(`{"latitude":0,"longitude":0}`)); err != nil {
		t.Errorf("unknown event error = %v", err)
	}
	if n := f.telemetry.fixes.Load(); n != 1 {
		t.Errorf("telemetry fixes = %d, want 1", n)
	}
}
