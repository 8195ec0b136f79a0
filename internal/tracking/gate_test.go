package tracking

import (
	"testing"
	"time"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name       string
		start      string
		wantActive bool
		wantErr    bool
	}{
		{name: "far future", start: "2999-01-01 00:00", wantActive: false},
		{name: "past", start: "2000-01-01 00:00", wantActive: true},
		{name: "malformed", start: "not-a-date", wantActive: false, wantErr: true},
		{name: "absent", start: "", wantActive: false},
		{name: "blank", start: "   ", wantActive: false},
		{name: "exactly now", start: "2026-10-18 12:00", wantActive: true},
		{name: "one minute ahead", start: "2026-10-18 12:01", wantActive: false},
		{name: "form layout", start: "2026-10-18T11:00", wantActive: true},
		{name: "seconds are not accepted", start: "2026-10-18 11:00:00", wantActive: false, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Evaluate(tt.start, now)
			if st.Active != tt.wantActive {
				t.Errorf("Evaluate(%q).Active = %v, want %v (reason %q)", tt.start, st.Active, tt.wantActive, st.Reason)
			}
			if (st.Err != nil) != tt.wantErr {
				t.Errorf("Evaluate(%q).Err = %v, wantErr %v", tt.start, st.Err, tt.wantErr)
			}
			if IsActive(tt.start, now) != tt.wantActive {
				t.Errorf("IsActive(%q) disagrees with Evaluate", tt.start)
			}
		})
	}
}

func TestIsActiveAgainstWallClock(t *testing.T) {
	if IsActive("2999-01-01 00:00", time.Now()) {
		t.Errorf("future start must be inactive")
	}
	if !IsActive("2000-01-01 00:00", time.Now()) {
		t.Errorf("past start must be active")
	}
	if IsActive("not-a-date", time.Now()) {
		t.Errorf("malformed start must be inactive")
	}
}

func TestParseStartUsesLocation(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	ts, err := ParseStart("2024-05-01 00:00", msk)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2024, 4, 30, 21, 0, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("ParseStart = %v, want %v", ts, want)
	}
}
