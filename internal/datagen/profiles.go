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
	"fmt"
	"sort"
	"time"
)

// Profile shapes when listening sessions start during a day.
type Profile interface {
	// Name returns the profile name.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// ActivityLevel returns the relative listening activity at t (0.0 to 1.0+).
	ActivityLevel(t time.Time) float64
}

// DefaultProfile is used when Options.Profile is empty.
const DefaultProfile = "evening"

var profiles = map[string]Profile{}

// RegisterProfile adds a profile to the registry.
func RegisterProfile(p Profile) {
	profiles[p.Name()] = p
}

// GetProfile retrieves a profile by name.
func GetProfile(name string) (Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile: %s", name)
	}
	return p, nil
}

// Profiles returns all registered profile names, sorted.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evening listening: low at night, building through the day to an evening
// peak, with more listening at weekends.
//
// Night: 12AM - 6AM (15%)
// Morning: 6AM - 12PM (40%)
// Afternoon: 12PM - 5PM (60%)
// Evening peak: 5PM - 10PM (100%)
// Late night: 10PM - 12AM (70%)
// Weekend: 120% of weekday
type Evening struct{}

func (Evening) Name() string { return "evening" }

func (Evening) Description() string {
	return "Consumer listening with an evening peak"
}

func (Evening) ActivityLevel(t time.Time) float64 {
	var base float64
	switch hour := t.Hour(); {
	case hour < 6:
		base = 0.15
	case hour < 12:
		base = 0.40
	case hour < 17:
		base = 0.60
	case hour < 22:
		base = 1.0
	default:
		base = 0.70
	}

	if isWeekend(t) {
		base *= 1.20
	}
	return base
}

// Office listening: background music during working hours.
//
// Night: 10PM - 6AM (5%)
// Early morning: 6AM - 8AM (ramp up)
// Working hours: 8AM - 6PM (100%, lunch hour 50%)
// Evening: 6PM - 10PM (ramp down to 20%)
// Weekend: 10%
type Office struct{}

func (Office) Name() string { return "office" }

func (Office) Description() string {
	return "Background listening during office hours, weekday focus"
}

func (Office) ActivityLevel(t time.Time) float64 {
	if isWeekend(t) {
		return 0.10
	}

	hour := t.Hour()
	decimalHour := float64(hour) + float64(t.Minute())/60.0
	switch {
	case hour >= 22 || hour < 6:
		return 0.05
	case hour < 8:
		return 0.05 + 0.95*(decimalHour-6.0)/2.0
	case hour == 12:
		return 0.50
	case hour < 18:
		return 1.0
	default:
		return 1.0 - 0.80*(decimalHour-18.0)/4.0
	}
}

// Flat spreads sessions evenly over the day.
type Flat struct{}

func (Flat) Name() string { return "flat" }

func (Flat) Description() string {
	return "Uniform activity around the clock"
}

func (Flat) ActivityLevel(time.Time) float64 { return 1.0 }

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// hourWeights returns the relative chance of a session starting in each of
// the first n hours of day.
func hourWeights(p Profile, day time.Time, n int) []int {
	weights := make([]int, n)
	for h := range weights {
		weights[h] = max(1, int(p.ActivityLevel(day.Add(time.Duration(h)*time.Hour))*100))
	}
	return weights
}

func init() {
	RegisterProfile(Evening{})
	RegisterProfile(Office{})
	RegisterProfile(Flat{})
}
