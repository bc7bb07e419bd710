package datagen

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/pgEdge/pgedge-songdwh/internal/logging"
	"github.com/pgEdge/pgedge-songdwh/internal/storage"
)

// Dataset layout below the output root.
const (
	SongDataDir  = "song_data"
	LogDataDir   = "log_data"
	JSONPathFile = "log_json_path.json"
)

// Options configures dataset generation.
type Options struct {
	// Seed makes generation reproducible.
	Seed uint64

	// Songs is the number of catalogue songs, one file each.
	Songs int

	// Artists is the number of distinct artists the songs are spread over.
	Artists int

	// Users is the number of listeners appearing in the logs.
	Users int

	// Days is the number of daily log files.
	Days int

	// EventsPerDay is the number of log events per day.
	EventsPerDay int

	// MatchRatio is the share of NextSong events that play a catalogue
	// song; the rest reference songs missing from the catalogue.
	MatchRatio float64

	// Start is the first day of logs.
	Start time.Time

	// Profile names the listening profile that spreads session starts
	// over the day.
	Profile string
}

// DefaultOptions returns default generation options.
func DefaultOptions() Options {
	return Options{
		Seed:         1,
		Songs:        100,
		Artists:      40,
		Users:        25,
		Days:         3,
		EventsPerDay: 200,
		MatchRatio:   0.6,
		Start:        time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC),
		Profile:      DefaultProfile,
	}
}

// Validate checks the options for impossible values.
func (o Options) Validate() error {
	switch {
	case o.Songs < 1:
		return fmt.Errorf("songs must be at least 1")
	case o.Artists < 1 || o.Artists > o.Songs:
		return fmt.Errorf("artists must be between 1 and the number of songs")
	case o.Users < 1:
		return fmt.Errorf("users must be at least 1")
	case o.Days < 1:
		return fmt.Errorf("days must be at least 1")
	case o.EventsPerDay < 1:
		return fmt.Errorf("events per day must be at least 1")
	case o.MatchRatio < 0 || o.MatchRatio > 1:
		return fmt.Errorf("match ratio must be between 0 and 1")
	}
	_, err := GetProfile(o.Profile)
	return err
}

// SongRecord is one song_data object.
type SongRecord struct {
	NumSongs        int      `json:"num_songs"`
	ArtistID        string   `json:"artist_id"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLongitude *float64 `json:"artist_longitude"`
	ArtistLocation  string   `json:"artist_location"`
	ArtistName      string   `json:"artist_name"`
	SongID          string   `json:"song_id"`
	Title           string   `json:"title"`
	Duration        float64  `json:"duration"`
	Year            int      `json:"year"`

	// TrackID names the object the record is stored in.
	TrackID string `json:"-"`
}

// EventRecord is one log_data line.
type EventRecord struct {
	Artist        *string  `json:"artist"`
	Auth          string   `json:"auth"`
	FirstName     *string  `json:"firstName"`
	Gender        *string  `json:"gender"`
	ItemInSession int      `json:"itemInSession"`
	LastName      *string  `json:"lastName"`
	Length        *float64 `json:"length"`
	Level         string   `json:"level"`
	Location      *string  `json:"location"`
	Method        string   `json:"method"`
	Page          string   `json:"page"`
	Registration  *float64 `json:"registration"`
	SessionID     int      `json:"sessionId"`
	Song          *string  `json:"song"`
	Status        int      `json:"status"`
	TS            int64    `json:"ts"`
	UserAgent     *string  `json:"userAgent"`
	UserID        string   `json:"userId"`
}

// Dataset is a generated catalogue and event log.
type Dataset struct {
	Songs  []SongRecord
	Events []EventRecord
}

type user struct {
	id           string
	firstName    string
	lastName     string
	gender       string
	level        string
	location     string
	userAgent    string
	registration float64
}

type artist struct {
	id       string
	name     string
	location string
	lat      *float64
	lon      *float64
}

const idChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var browsePages = []string{"Home", "Settings", "Help", "About", "Upgrade", "Downgrade", "Thumbs Up", "Thumbs Down", "Add to Playlist"}

// Generate builds a dataset. The same options always produce the same dataset.
func Generate(opts Options) (*Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	f := NewFakerWithSeed(opts.Seed)
	profile, _ := GetProfile(opts.Profile)

	artists := make([]artist, opts.Artists)
	for i := range artists {
		a := artist{
			id:   "AR" + f.RandomString(16, idChars),
			name: f.ArtistName(),
		}
		// Like the real catalogue, many artists have no location.
		if f.Chance(0.6) {
			a.location = f.Location()
			lat, lon := f.Latitude(), f.Longitude()
			a.lat, a.lon = &lat, &lon
		}
		artists[i] = a
	}

	ds := &Dataset{Songs: make([]SongRecord, opts.Songs)}
	for i := range ds.Songs {
		// Every artist gets at least one song.
		a := artists[i%len(artists)]
		if i >= len(artists) {
			a = Choose(f, artists)
		}
		year := 0
		if f.Chance(0.5) {
			year = f.Int(1960, 2018)
		}
		ds.Songs[i] = SongRecord{
			NumSongs:        1,
			ArtistID:        a.id,
			ArtistLatitude:  a.lat,
			ArtistLongitude: a.lon,
			ArtistLocation:  a.location,
			ArtistName:      a.name,
			SongID:          "SO" + f.RandomString(16, idChars),
			Title:           f.Title(f.Int(1, 4)),
			Duration:        f.Float64(60, 600),
			Year:            year,
			TrackID:         "TR" + f.RandomString(16, idChars),
		}
	}

	users := make([]*user, opts.Users)
	for i := range users {
		users[i] = &user{
			id:           strconv.Itoa(i + 1),
			firstName:    f.FirstName(),
			lastName:     f.LastName(),
			gender:       ChooseWeighted(f, []string{"F", "M"}, []int{1, 1}),
			level:        ChooseWeighted(f, []string{"free", "paid"}, []int{3, 1}),
			location:     f.Location(),
			userAgent:    f.UserAgent(),
			registration: float64(f.DateRange(opts.Start.AddDate(-1, 0, 0), opts.Start.AddDate(0, 0, -1)).UnixMilli()),
		}
	}

	sessionID := 0
	for day := 0; day < opts.Days; day++ {
		dayStart := opts.Start.AddDate(0, 0, day)
		hours := make([]int, sessionHours)
		for h := range hours {
			hours[h] = h
		}
		weights := hourWeights(profile, dayStart, sessionHours)

		var events []EventRecord
		for len(events) < opts.EventsPerDay {
			sessionID++
			n := min(f.Int(3, 20), opts.EventsPerDay-len(events))
			start := dayStart.Add(time.Duration(ChooseWeighted(f, hours, weights))*time.Hour +
				time.Duration(f.Int64(0, int64(time.Hour/time.Millisecond)-1))*time.Millisecond)
			events = append(events, session(f, opts, ds.Songs, users, sessionID, start, n)...)
		}
		sort.SliceStable(events, func(i, j int) bool { return events[i].TS < events[j].TS })
		ds.Events = append(ds.Events, events...)
	}

	return ds, nil
}

// Sessions start in the first sessionHours of a day so that they end
// before midnight.
const sessionHours = 20

// session generates n consecutive events of one listener session. Guest
// sessions have no user id.
func session(f *Faker, opts Options, songs []SongRecord, users []*user, id int, start time.Time, n int) []EventRecord {
	var u *user
	if !f.Chance(0.1) {
		u = Choose(f, users)
	}

	ts := start.UnixMilli()
	events := make([]EventRecord, 0, n)
	for item := 0; item < n; item++ {
		ev := EventRecord{
			Auth:          "Logged In",
			ItemInSession: item,
			Level:         "free",
			Method:        "GET",
			SessionID:     id,
			Status:        200,
			TS:            ts,
		}

		if u == nil {
			ev.Auth = "Guest"
			ev.Page = Choose(f, []string{"Home", "About", "Help", "Register"})
		} else {
			ev.FirstName, ev.LastName = strPtr(u.firstName), strPtr(u.lastName)
			ev.Gender, ev.Location = strPtr(u.gender), strPtr(u.location)
			ev.UserAgent = strPtr(u.userAgent)
			reg := u.registration
			ev.Registration = &reg
			ev.UserID = u.id
			ev.Level = u.level
			ev.Page = ChooseWeighted(f, []string{"NextSong", "browse"}, []int{8, 2})
			if ev.Page == "browse" {
				ev.Page = Choose(f, browsePages)
			}
		}

		switch ev.Page {
		case "NextSong":
			ev.Method = "PUT"
			if f.Chance(opts.MatchRatio) {
				s := Choose(f, songs)
				ev.Artist, ev.Song = strPtr(s.ArtistName), strPtr(s.Title)
				length := s.Duration
				ev.Length = &length
			} else {
				length := f.Float64(60, 600)
				ev.Artist, ev.Song = strPtr(f.ArtistName()), strPtr(f.Title(f.Int(1, 4)))
				ev.Length = &length
			}
			ts += int64(*ev.Length * 1000)
		case "Upgrade":
			// A level change mid-stream; the newest event decides the user's level.
			if u != nil && u.level == "free" && f.Chance(0.5) {
				ev.Method = "PUT"
				ev.Status = 307
				u.level = "paid"
			}
			ts += int64(f.Int(5, 60)) * 1000
		default:
			ts += int64(f.Int(5, 60)) * 1000
		}

		events = append(events, ev)
	}

	// Logged-in sessions usually end with a logout.
	if u != nil && len(events) > 1 && f.Chance(0.3) {
		last := &events[len(events)-1]
		last.Page, last.Method, last.Status = "Logout", "PUT", 307
		last.Artist, last.Song, last.Length = nil, nil, nil
	}
	return events
}

func strPtr(s string) *string {
	return &s
}

// SongKey returns the object key of a song below the song_data prefix,
// nested by the third to fifth characters of the track id.
func SongKey(trackID string) string {
	return path.Join(SongDataDir, trackID[2:3], trackID[3:4], trackID[4:5], trackID+".json")
}

// LogKey returns the object key of a day's events below the log_data prefix.
func LogKey(day time.Time) string {
	return path.Join(LogDataDir, day.Format("2006"), day.Format("01"), day.Format("2006-01-02")+"-events.json")
}

// JSONPaths returns the jsonpaths document mapping event fields to the
// staging_events columns in order.
func JSONPaths() []byte {
	fields := []string{
		"artist", "auth", "firstName", "gender", "itemInSession", "lastName",
		"length", "level", "location", "method", "page", "registration",
		"sessionId", "song", "status", "ts", "userAgent", "userId",
	}
	var b bytes.Buffer
	b.WriteString("{\n    \"jsonpaths\": [\n")
	for i, field := range fields {
		fmt.Fprintf(&b, "        \"$['%s']\"", field)
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("    ]\n}\n")
	return b.Bytes()
}

// WriteSummary describes what Write produced.
type WriteSummary struct {
	SongObjects int
	LogObjects  int
	Events      int
	Bytes       int64
}

// Write stores the dataset below root in the song_data / log_data layout,
// together with the jsonpaths file.
func (d *Dataset) Write(ctx context.Context, store storage.Store, root storage.Location) (*WriteSummary, error) {
	sum := &WriteSummary{}
	put := func(key string, data []byte) error {
		loc := root.Join(key)
		if err := store.Put(ctx, loc.Key, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("failed to write %s: %w", loc, err)
		}
		sum.Bytes += int64(len(data))
		return nil
	}

	for _, s := range d.Songs {
		data, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		if err := put(SongKey(s.TrackID), data); err != nil {
			return nil, err
		}
		sum.SongObjects++
	}
	logging.Debug().Int("objects", sum.SongObjects).Msg("Song data written")

	var (
		day []byte
		cur string
	)
	flush := func() error {
		if cur == "" {
			return nil
		}
		sum.LogObjects++
		return put(cur, day)
	}
	for _, ev := range d.Events {
		key := LogKey(time.UnixMilli(ev.TS).UTC())
		if key != cur {
			if err := flush(); err != nil {
				return nil, err
			}
			cur, day = key, nil
		}
		line, err := json.Marshal(ev)
		if err != nil {
			return nil, err
		}
		day = append(append(day, line...), '\n')
		sum.Events++
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if err := put(JSONPathFile, JSONPaths()); err != nil {
		return nil, err
	}

	logging.Info().
		Str("root", root.String()).
		Int("songs", sum.SongObjects).
		Int("log_files", sum.LogObjects).
		Int("events", sum.Events).
		Str("size", FormatSize(sum.Bytes)).
		Msg("Dataset written")
	return sum, nil
}

// FormatSize formats a byte count as a human-readable string.
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
