//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"testing"
	"time"
)

func TestGetProfile(t *testing.T) {
	tests := []struct {
		name      string
		profile   string
		want      string
		wantError bool
	}{
		{"evening", "evening", "evening", false},
		{"office", "office", "office", false},
		{"flat", "flat", "flat", false},
		{"empty uses default", "", DefaultProfile, false},
		{"invalid profile", "invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := GetProfile(tt.profile)
			if tt.wantError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, p.Name())
			}
			if p.Description() == "" {
				t.Error("Description should not be empty")
			}
		})
	}
}

func TestProfilesList(t *testing.T) {
	names := Profiles()
	if len(names) != 3 || names[0] != "evening" || names[1] != "flat" || names[2] != "office" {
		t.Errorf("Unexpected profiles: %v", names)
	}
}

func TestEveningActivity(t *testing.T) {
	p := Evening{}
	// 2018-11-14 is a Wednesday, 2018-11-17 a Saturday.
	weekday := time.Date(2018, 11, 14, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2018, 11, 17, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		hour int
		want float64
	}{
		{3, 0.15},
		{9, 0.40},
		{14, 0.60},
		{19, 1.0},
		{23, 0.70},
	}
	for _, tt := range tests {
		if got := p.ActivityLevel(weekday.Add(time.Duration(tt.hour) * time.Hour)); got != tt.want {
			t.Errorf("Weekday hour %d: got %.2f, want %.2f", tt.hour, got, tt.want)
		}
	}

	if got := p.ActivityLevel(saturday.Add(19 * time.Hour)); got != 1.2 {
		t.Errorf("Weekend evening should be 1.2, got %.2f", got)
	}
}

func TestOfficeActivity(t *testing.T) {
	p := Office{}
	weekday := time.Date(2018, 11, 14, 0, 0, 0, 0, time.UTC)

	if got := p.ActivityLevel(weekday.Add(3 * time.Hour)); got != 0.05 {
		t.Errorf("Night should be 0.05, got %.2f", got)
	}
	if got := p.ActivityLevel(weekday.Add(7 * time.Hour)); got <= 0.05 || got >= 1.0 {
		t.Errorf("Early morning should ramp up, got %.2f", got)
	}
	if got := p.ActivityLevel(weekday.Add(10 * time.Hour)); got != 1.0 {
		t.Errorf("Working hours should be 1.0, got %.2f", got)
	}
	if got := p.ActivityLevel(weekday.Add(12 * time.Hour)); got != 0.50 {
		t.Errorf("Lunch should be 0.50, got %.2f", got)
	}
	if got := p.ActivityLevel(weekday.Add(20 * time.Hour)); got <= 0.2 || got >= 1.0 {
		t.Errorf("Evening should ramp down, got %.2f", got)
	}
	if got := p.ActivityLevel(weekday.AddDate(0, 0, 3).Add(10 * time.Hour)); got != 0.10 {
		t.Errorf("Weekend should be 0.10, got %.2f", got)
	}
}

func TestHourWeights(t *testing.T) {
	day := time.Date(2018, 11, 14, 0, 0, 0, 0, time.UTC)
	w := hourWeights(Evening{}, day, sessionHours)
	if len(w) != sessionHours {
		t.Fatalf("Expected %d weights, got %d", sessionHours, len(w))
	}
	if w[2] != 15 || w[19] != 100 {
		t.Errorf("Unexpected weights: %v", w)
	}
	for h, v := range hourWeights(Office{}, day.AddDate(0, 0, 3), sessionHours) {
		if v < 1 {
			t.Errorf("Hour %d has weight %d; every hour needs a chance", h, v)
		}
	}
}

func TestProfileShapesSessions(t *testing.T) {
	opts := DefaultOptions()
	opts.Days = 1
	opts.EventsPerDay = 2000
	ds, err := Generate(opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var night, evening int
	for _, ev := range ds.Events {
		if ev.ItemInSession != 0 {
			continue
		}
		switch h := time.UnixMilli(ev.TS).UTC().Hour(); {
		case h < 6:
			night++
		case h >= 17 && h < 20:
			evening++
		}
	}
	if evening <= night {
		t.Errorf("Evening profile should start more sessions in the evening: night=%d evening=%d", night, evening)
	}
}
