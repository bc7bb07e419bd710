//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"strings"
	"testing"
	"time"
	"unicode"
)

func TestNewFakerWithSeedNotNil(t *testing.T) {
	f := NewFakerWithSeed(1)
	if f == nil || f.faker == nil {
		t.Fatal("NewFakerWithSeed returned an empty faker")
	}
}

func TestNewFakerWithSeed(t *testing.T) {
	seed := uint64(12345)
	f1 := NewFakerWithSeed(seed)
	f2 := NewFakerWithSeed(seed)

	// Same seed should produce same sequence
	for i := 0; i < 10; i++ {
		v1 := f1.Int(0, 1000)
		v2 := f2.Int(0, 1000)
		if v1 != v2 {
			t.Errorf("Same seed produced different values: %d != %d", v1, v2)
		}
	}
	if f1.ArtistName() != f2.ArtistName() {
		t.Error("Same seed produced different artist names")
	}
	if f1.RandomString(16, "ABC") != f2.RandomString(16, "ABC") {
		t.Error("Same seed produced different random strings")
	}
}

func TestFakerNames(t *testing.T) {
	f := NewFakerWithSeed(42)
	tests := map[string]func() string{
		"FirstName":  f.FirstName,
		"LastName":   f.LastName,
		"Name":       f.Name,
		"City":       f.City,
		"Word":       f.Word,
		"ArtistName": f.ArtistName,
		"UserAgent":  f.UserAgent,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			if fn() == "" {
				t.Errorf("%s returned empty string", name)
			}
		})
	}
}

func TestFakerState(t *testing.T) {
	f := NewFakerWithSeed(42)
	state := f.State()
	if len(state) != 2 {
		t.Errorf("State should return 2-letter abbreviation, got: %s", state)
	}
}

func TestFakerLocation(t *testing.T) {
	f := NewFakerWithSeed(42)
	loc := f.Location()
	parts := strings.Split(loc, ", ")
	if len(parts) != 2 || len(parts[1]) != 2 {
		t.Errorf("Location should look like 'City, ST', got: %s", loc)
	}
}

func TestFakerTitle(t *testing.T) {
	f := NewFakerWithSeed(42)
	title := f.Title(3)
	words := strings.Fields(title)
	if len(words) < 3 {
		t.Fatalf("Title(3) should have at least 3 words, got: %q", title)
	}
	for _, w := range words {
		if r := []rune(w)[0]; unicode.IsLetter(r) && !unicode.IsUpper(r) {
			t.Errorf("Title word not capitalized: %q", w)
		}
	}
}

func TestFakerCoordinates(t *testing.T) {
	f := NewFakerWithSeed(42)
	for i := 0; i < 50; i++ {
		if lat := f.Latitude(); lat < -90 || lat > 90 {
			t.Errorf("Latitude out of range: %f", lat)
		}
		if lon := f.Longitude(); lon < -180 || lon > 180 {
			t.Errorf("Longitude out of range: %f", lon)
		}
	}
}

func TestFakerDateRange(t *testing.T) {
	f := NewFakerWithSeed(42)
	start := time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2018, 11, 30, 0, 0, 0, 0, time.UTC)

	d := f.DateRange(start, end)
	if d.Before(start) || d.After(end) {
		t.Errorf("Date %v not in range [%v, %v]", d, start, end)
	}
}

func TestFakerInt(t *testing.T) {
	f := NewFakerWithSeed(42)
	for i := 0; i < 100; i++ {
		v := f.Int(10, 20)
		if v < 10 || v > 20 {
			t.Errorf("Int(10, 20) returned %d", v)
		}
	}
}

func TestFakerInt64(t *testing.T) {
	f := NewFakerWithSeed(42)
	for i := 0; i < 100; i++ {
		v := f.Int64(1540000000000, 1541000000000)
		if v < 1540000000000 || v > 1541000000000 {
			t.Errorf("Int64 returned %d", v)
		}
	}
}

func TestFakerFloat64(t *testing.T) {
	f := NewFakerWithSeed(42)
	for i := 0; i < 100; i++ {
		v := f.Float64(30, 600)
		if v < 30 || v > 600 {
			t.Errorf("Float64(30, 600) returned %f", v)
		}
	}
}

func TestFakerChance(t *testing.T) {
	f := NewFakerWithSeed(42)
	for i := 0; i < 20; i++ {
		if f.Chance(0) {
			t.Error("Chance(0) should never be true")
		}
		if !f.Chance(1.01) {
			t.Error("Chance above 1 should always be true")
		}
	}
}

func TestChoose(t *testing.T) {
	f := NewFakerWithSeed(42)
	items := []string{"a", "b", "c", "d", "e"}

	for i := 0; i < 100; i++ {
		chosen := Choose(f, items)
		found := false
		for _, item := range items {
			if item == chosen {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Choose returned item not in slice: %s", chosen)
		}
	}
}

func TestChooseEmpty(t *testing.T) {
	f := NewFakerWithSeed(42)
	var items []string

	chosen := Choose(f, items)
	if chosen != "" {
		t.Errorf("Choose on empty slice should return zero value, got: %s", chosen)
	}
}

func TestChooseWeighted(t *testing.T) {
	f := NewFakerWithSeed(42)
	items := []string{"a", "b", "c"}
	weights := []int{1, 2, 7} // c should be chosen ~70% of the time

	counts := make(map[string]int)
	iterations := 1000

	for i := 0; i < iterations; i++ {
		chosen := ChooseWeighted(f, items, weights)
		counts[chosen]++
	}

	// c should be most common
	if counts["c"] < counts["a"] || counts["c"] < counts["b"] {
		t.Errorf("Weighted choice distribution unexpected: %v", counts)
	}
}

func TestChooseWeightedEmpty(t *testing.T) {
	f := NewFakerWithSeed(42)
	var items []string
	var weights []int

	chosen := ChooseWeighted(f, items, weights)
	if chosen != "" {
		t.Errorf("ChooseWeighted on empty slices should return zero value, got: %s", chosen)
	}
}

func TestFakerRandomString(t *testing.T) {
	f := NewFakerWithSeed(42)
	charset := "ABC123"
	s := f.RandomString(20, charset)
	if len(s) != 20 {
		t.Errorf("RandomString(20, ...) should return 20 chars, got %d", len(s))
	}
	for _, c := range s {
		if !strings.ContainsRune(charset, c) {
			t.Errorf("RandomString should only use charset chars, got: %c", c)
		}
	}
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{"song": "Song", "": "", "émile": "Émile", "Up": "Up"}
	for in, want := range tests {
		if got := capitalize(in); got != want {
			t.Errorf("capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}

// Benchmarks
func BenchmarkFakerInt(b *testing.B) {
	f := NewFakerWithSeed(42)
	for i := 0; i < b.N; i++ {
		f.Int(0, 1000)
	}
}

func BenchmarkChoose(b *testing.B) {
	f := NewFakerWithSeed(42)
	items := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < b.N; i++ {
		Choose(f, items)
	}
}

func BenchmarkChooseWeighted(b *testing.B) {
	f := NewFakerWithSeed(42)
	items := []string{"a", "b", "c", "d", "e"}
	weights := []int{1, 2, 3, 4, 5}
	for i := 0; i < b.N; i++ {
		ChooseWeighted(f, items, weights)
	}
}
