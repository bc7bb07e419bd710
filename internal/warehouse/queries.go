//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

import (
	"fmt"
	"regexp"
	"strings"
)

// Bulk load defaults.
const (
	DefaultRegion         = "us-west-2"
	FormatAuto            = "auto"
	TimeFormatEpochMillis = "epochmillisecs"
)

// Phase names one of the ordered statement lists.
type Phase string

const (
	PhaseDrop   Phase = "drop"
	PhaseCreate Phase = "create"
	PhaseCopy   Phase = "copy"
	PhaseInsert Phase = "insert"
)

// Phases returns all phases in execution order.
func Phases() []Phase {
	return []Phase{PhaseDrop, PhaseCreate, PhaseCopy, PhaseInsert}
}

// ParsePhase converts a phase name to a Phase.
func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases() {
		if string(p) == strings.ToLower(strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown phase: %s", s)
}

// Credentials identify the warehouse to object storage during a bulk load.
type Credentials struct {
	IAMRoleARN string
	Region     string
}

// CopySource holds the storage locations of the raw datasets.
type CopySource struct {
	LogData     string
	LogJSONPath string
	SongData    string
	Credentials Credentials
}

// CopyJob describes one bulk load into a staging table.
type CopyJob struct {
	Table  Table
	Source string

	// Format is either FormatAuto or the location of a jsonpaths file.
	Format string

	// TimeFormat is how TIMESTAMP columns are encoded in the source.
	TimeFormat string
}

// CopyJobs returns the two staging loads in execution order: events, then songs.
func CopyJobs(src CopySource) []CopyJob {
	return []CopyJob{
		{
			Table:      StagingEvents,
			Source:     src.LogData,
			Format:     src.LogJSONPath,
			TimeFormat: TimeFormatEpochMillis,
		},
		{
			Table:  StagingSongs,
			Source: src.SongData,
			Format: FormatAuto,
		},
	}
}

// Statement is a single SQL statement in a plan.
type Statement struct {
	Name  string `yaml:"name"`
	Table string `yaml:"table"`
	SQL   string `yaml:"sql"`
}

// DropStatements returns a guarded DROP for every table.
func DropStatements() []Statement {
	tables := Tables()
	stmts := make([]Statement, 0, len(tables))
	for _, t := range tables {
		stmts = append(stmts, Statement{
			Name:  "drop_" + t.Name,
			Table: t.Name,
			SQL:   "DROP TABLE IF EXISTS " + QuoteIdent(t.Name) + ";",
		})
	}
	return stmts
}

// CreateTableSQL renders the CREATE TABLE statement for one table.
func CreateTableSQL(d Dialect, t Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", QuoteIdent(t.Name))
	for i, c := range t.Columns {
		b.WriteString("    ")
		b.WriteString(d.ColumnDefinition(c))
		if i < len(t.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")
	return b.String()
}

// CreateStatements returns CREATE TABLE for every table.
func CreateStatements(d Dialect) []Statement {
	tables := Tables()
	stmts := make([]Statement, 0, len(tables))
	for _, t := range tables {
		stmts = append(stmts, Statement{
			Name:  "create_" + t.Name,
			Table: t.Name,
			SQL:   CreateTableSQL(d, t),
		})
	}
	return stmts
}

// CopyStatements returns the server-side bulk loads, events first.
func CopyStatements(d Dialect, src CopySource) ([]Statement, error) {
	jobs := CopyJobs(src)
	stmts := make([]Statement, 0, len(jobs))
	for _, job := range jobs {
		sql, err := d.CopyStatement(job, src.Credentials)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, Statement{
			Name:  "copy_" + job.Table.Name,
			Table: job.Table.Name,
			SQL:   sql,
		})
	}
	return stmts, nil
}

const songplayInsertSQL = `INSERT INTO %[1]s (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
SELECT DISTINCT
    e.ts        AS start_time,
    e.userid    AS user_id,
    e.level     AS level,
    s.song_id   AS song_id,
    s.artist_id AS artist_id,
    e.sessionid AS session_id,
    e.location  AS location,
    e.useragent AS user_agent
FROM %[2]s e
JOIN %[3]s s ON e.song = s.title AND e.artist = s.artist_name
WHERE e.page = 'NextSong'
  AND e.ts IS NOT NULL
  AND e.userid IS NOT NULL AND e.userid <> ''
  AND e.sessionid IS NOT NULL
  AND s.song_id IS NOT NULL
  AND s.artist_id IS NOT NULL;`

// The most recent event decides a user's level.
const userInsertSQL = `INSERT INTO %[1]s (user_id, first_name, last_name, gender, level)
SELECT user_id, first_name, last_name, gender, level
FROM (
    SELECT
        userid    AS user_id,
        firstname AS first_name,
        lastname  AS last_name,
        gender,
        level,
        ROW_NUMBER() OVER (PARTITION BY userid ORDER BY ts DESC NULLS LAST) AS rn
    FROM %[2]s
    WHERE page = 'NextSong' AND userid IS NOT NULL AND userid <> ''
) latest
WHERE rn = 1;`

const songInsertSQL = `INSERT INTO %[1]s (song_id, title, artist_id, year, duration)
SELECT song_id, title, artist_id, year, duration
FROM (
    SELECT
        song_id,
        title,
        artist_id,
        year,
        duration,
        ROW_NUMBER() OVER (PARTITION BY song_id ORDER BY year DESC NULLS LAST, title) AS rn
    FROM %[2]s
    WHERE song_id IS NOT NULL AND artist_id IS NOT NULL
) catalogue
WHERE rn = 1;`

const artistInsertSQL = `INSERT INTO %[1]s (artist_id, name, location, latitude, longitude)
SELECT artist_id, name, location, latitude, longitude
FROM (
    SELECT
        artist_id,
        artist_name      AS name,
        artist_location  AS location,
        artist_latitude  AS latitude,
        artist_longitude AS longitude,
        ROW_NUMBER() OVER (PARTITION BY artist_id ORDER BY year DESC NULLS LAST, artist_name) AS rn
    FROM %[2]s
    WHERE artist_id IS NOT NULL
) catalogue
WHERE rn = 1;`

const timeInsertSQL = `INSERT INTO %[1]s (start_time, hour, day, week, month, year, weekday)
SELECT
    start_time,
    EXTRACT(hour FROM start_time)  AS hour,
    EXTRACT(day FROM start_time)   AS day,
    EXTRACT(week FROM start_time)  AS week,
    EXTRACT(month FROM start_time) AS month,
    EXTRACT(year FROM start_time)  AS year,
    %[3]s AS weekday
FROM (SELECT DISTINCT start_time FROM %[2]s) plays;`

// InsertStatements returns the transform statements in execution order:
// songplays, users, songs, artists, time.
func InsertStatements(d Dialect) []Statement {
	events := QuoteIdent(StagingEventsTable)
	songs := QuoteIdent(StagingSongsTable)
	return []Statement{
		{
			Name:  "insert_" + SongplaysTable,
			Table: SongplaysTable,
			SQL:   fmt.Sprintf(songplayInsertSQL, QuoteIdent(SongplaysTable), events, songs),
		},
		{
			Name:  "insert_" + UsersTable,
			Table: UsersTable,
			SQL:   fmt.Sprintf(userInsertSQL, QuoteIdent(UsersTable), events),
		},
		{
			Name:  "insert_" + SongsTable,
			Table: SongsTable,
			SQL:   fmt.Sprintf(songInsertSQL, QuoteIdent(SongsTable), songs),
		},
		{
			Name:  "insert_" + ArtistsTable,
			Table: ArtistsTable,
			SQL:   fmt.Sprintf(artistInsertSQL, QuoteIdent(ArtistsTable), songs),
		},
		{
			Name:  "insert_" + TimeTable,
			Table: TimeTable,
			SQL: fmt.Sprintf(timeInsertSQL, QuoteIdent(TimeTable), QuoteIdent(SongplaysTable),
				d.Weekday("start_time")),
		},
	}
}

// CountStatements returns one row-count query per table.
func CountStatements() []Statement {
	tables := Tables()
	stmts := make([]Statement, 0, len(tables))
	for _, t := range tables {
		stmts = append(stmts, Statement{
			Name:  "count_" + t.Name,
			Table: t.Name,
			SQL:   "SELECT COUNT(*) FROM " + QuoteIdent(t.Name) + ";",
		})
	}
	return stmts
}

// Plan is the complete statement set for one dialect.
type Plan struct {
	Dialect string      `yaml:"dialect"`
	Drop    []Statement `yaml:"drop"`
	Create  []Statement `yaml:"create"`
	Copy    []Statement `yaml:"copy,omitempty"`
	Insert  []Statement `yaml:"insert"`
	Count   []Statement `yaml:"count"`
}

// BuildPlan renders every statement list. For dialects without server-side
// copy the Copy list is empty.
func BuildPlan(d Dialect, src CopySource) (*Plan, error) {
	p := &Plan{
		Dialect: d.Name(),
		Drop:    DropStatements(),
		Create:  CreateStatements(d),
		Insert:  InsertStatements(d),
		Count:   CountStatements(),
	}
	if d.SupportsServerCopy() {
		copies, err := CopyStatements(d, src)
		if err != nil {
			return nil, err
		}
		p.Copy = copies
	}
	return p, nil
}

// Statements returns the list for one phase.
func (p *Plan) Statements(phase Phase) []Statement {
	switch phase {
	case PhaseDrop:
		return p.Drop
	case PhaseCreate:
		return p.Create
	case PhaseCopy:
		return p.Copy
	case PhaseInsert:
		return p.Insert
	default:
		return nil
	}
}

var credentialsPattern = regexp.MustCompile(`(?i)(aws_iam_role=|aws_access_key_id=|aws_secret_access_key=)[^;']*`)

// Redact masks credential values in a statement for logging.
func Redact(sql string) string {
	return credentialsPattern.ReplaceAllString(sql, "${1}****")
}
