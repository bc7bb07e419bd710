//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package warehouse defines the song play star schema and renders the
// statements that build and load it for a given SQL dialect.
package warehouse

import "strings"

// Table names.
const (
	StagingEventsTable = "staging_events"
	StagingSongsTable  = "staging_songs"
	SongplaysTable     = "songplays"
	UsersTable         = "users"
	SongsTable         = "songs"
	ArtistsTable       = "artists"
	TimeTable          = "time"
)

// Table roles.
const (
	RoleStaging   = "staging"
	RoleFact      = "fact"
	RoleDimension = "dimension"
)

// ColumnType is the logical type of a column, rendered per dialect.
type ColumnType int

const (
	Varchar ColumnType = iota
	Integer
	BigInt
	Float
	Timestamp
)

// String returns the SQL spelling shared by the supported dialects.
func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case BigInt:
		return "BIGINT"
	case Float:
		return "FLOAT"
	case Timestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// Column describes a single table column.
type Column struct {
	Name string
	Type ColumnType

	// Size is the VARCHAR length; zero uses the dialect default.
	Size int

	NotNull    bool
	PrimaryKey bool

	// Identity marks an auto-incrementing surrogate key starting at zero.
	Identity bool

	// SortKey and DistKey are physical storage hints. Dialects without
	// them ignore the flags.
	SortKey bool
	DistKey bool
}

// Table describes a warehouse table.
type Table struct {
	Name    string
	Role    string
	Columns []Column
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name, ignoring case.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// PrimaryKey returns the primary key column name, or "" when the table has none.
func (t Table) PrimaryKey() string {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}

// LoadColumns returns the columns populated by a load, which excludes
// identity columns.
func (t Table) LoadColumns() []Column {
	cols := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.Identity {
			cols = append(cols, c)
		}
	}
	return cols
}

// StagingEvents lands raw user activity log records. Column order matches
// the jsonpaths file used to load it.
var StagingEvents = Table{
	Name: StagingEventsTable,
	Role: RoleStaging,
	Columns: []Column{
		{Name: "artist", Type: Varchar, Size: 512},
		{Name: "auth", Type: Varchar},
		{Name: "firstname", Type: Varchar},
		{Name: "gender", Type: Varchar},
		{Name: "iteminsession", Type: Integer},
		{Name: "lastname", Type: Varchar},
		{Name: "length", Type: Float},
		{Name: "level", Type: Varchar},
		{Name: "location", Type: Varchar, Size: 512},
		{Name: "method", Type: Varchar},
		{Name: "page", Type: Varchar},
		{Name: "registration", Type: Float},
		{Name: "sessionid", Type: Integer},
		{Name: "song", Type: Varchar, Size: 512},
		{Name: "status", Type: Integer},
		{Name: "ts", Type: Timestamp},
		{Name: "useragent", Type: Varchar, Size: 512},
		{Name: "userid", Type: Varchar},
	},
}

// StagingSongs lands raw song catalogue records.
var StagingSongs = Table{
	Name: StagingSongsTable,
	Role: RoleStaging,
	Columns: []Column{
		{Name: "num_songs", Type: Integer},
		{Name: "artist_id", Type: Varchar},
		{Name: "artist_latitude", Type: Float},
		{Name: "artist_longitude", Type: Float},
		{Name: "artist_location", Type: Varchar, Size: 512},
		{Name: "artist_name", Type: Varchar, Size: 512},
		{Name: "song_id", Type: Varchar},
		{Name: "title", Type: Varchar, Size: 512},
		{Name: "duration", Type: Float},
		{Name: "year", Type: Integer},
	},
}

// Songplays is the fact table, one row per NextSong event matched to the
// catalogue.
var Songplays = Table{
	Name: SongplaysTable,
	Role: RoleFact,
	Columns: []Column{
		{Name: "songplay_id", Type: BigInt, Identity: true, PrimaryKey: true},
		{Name: "start_time", Type: Timestamp, NotNull: true, SortKey: true, DistKey: true},
		{Name: "user_id", Type: Varchar, NotNull: true},
		{Name: "level", Type: Varchar},
		{Name: "song_id", Type: Varchar, NotNull: true},
		{Name: "artist_id", Type: Varchar, NotNull: true},
		{Name: "session_id", Type: Integer, NotNull: true},
		{Name: "location", Type: Varchar, Size: 512},
		{Name: "user_agent", Type: Varchar, Size: 512},
	},
}

// Users is the listener dimension.
var Users = Table{
	Name: UsersTable,
	Role: RoleDimension,
	Columns: []Column{
		{Name: "user_id", Type: Varchar, PrimaryKey: true, SortKey: true},
		{Name: "first_name", Type: Varchar},
		{Name: "last_name", Type: Varchar},
		{Name: "gender", Type: Varchar},
		{Name: "level", Type: Varchar},
	},
}

// Songs is the catalogue song dimension.
var Songs = Table{
	Name: SongsTable,
	Role: RoleDimension,
	Columns: []Column{
		{Name: "song_id", Type: Varchar, PrimaryKey: true, SortKey: true},
		{Name: "title", Type: Varchar, Size: 512},
		{Name: "artist_id", Type: Varchar, NotNull: true},
		{Name: "year", Type: Integer},
		{Name: "duration", Type: Float},
	},
}

// Artists is the artist dimension.
var Artists = Table{
	Name: ArtistsTable,
	Role: RoleDimension,
	Columns: []Column{
		{Name: "artist_id", Type: Varchar, PrimaryKey: true, SortKey: true},
		{Name: "name", Type: Varchar, Size: 512},
		{Name: "location", Type: Varchar, Size: 512},
		{Name: "latitude", Type: Float},
		{Name: "longitude", Type: Float},
	},
}

// Time breaks each distinct play timestamp into calendar units.
var Time = Table{
	Name: TimeTable,
	Role: RoleDimension,
	Columns: []Column{
		{Name: "start_time", Type: Timestamp, PrimaryKey: true, SortKey: true, DistKey: true},
		{Name: "hour", Type: Integer},
		{Name: "day", Type: Integer},
		{Name: "week", Type: Integer},
		{Name: "month", Type: Integer},
		{Name: "year", Type: Integer},
		{Name: "weekday", Type: Integer},
	},
}

// Tables returns all tables in canonical order: staging, fact, dimensions.
func Tables() []Table {
	return []Table{StagingEvents, StagingSongs, Songplays, Users, Songs, Artists, Time}
}

// Lookup returns the table with the given name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
