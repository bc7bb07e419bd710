//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

import (
	"errors"
	"strings"
	"testing"
)

func testSource() CopySource {
	return CopySource{
		LogData:     "s3://udacity-dend/log_data",
		LogJSONPath: "s3://udacity-dend/log_json_path.json",
		SongData:    "s3://udacity-dend/song_data",
		Credentials: Credentials{IAMRoleARN: "arn:aws:iam::123456789012:role/dwhRole"},
	}
}

func TestGet(t *testing.T) {
	for _, name := range []string{"redshift", "postgres"} {
		t.Run(name, func(t *testing.T) {
			d, err := Get(name)
			if err != nil {
				t.Fatalf("Failed to get dialect '%s': %v", name, err)
			}
			if d.Name() != name {
				t.Errorf("Dialect name mismatch: expected '%s', got '%s'", name, d.Name())
			}
			if d.Description() == "" {
				t.Error("Dialect description should not be empty")
			}
		})
	}
}

func TestGetUnknownDialect(t *testing.T) {
	_, err := Get("oracle")
	if !errors.Is(err, ErrUnknownDialect) {
		t.Errorf("Expected ErrUnknownDialect, got %v", err)
	}
}

func TestList(t *testing.T) {
	names := List()
	if len(names) != 2 || names[0] != "postgres" || names[1] != "redshift" {
		t.Errorf("Unexpected dialect list: %v", names)
	}
}

func TestTableOrder(t *testing.T) {
	expected := []string{"staging_events", "staging_songs", "songplays", "users", "songs", "artists", "time"}
	tables := Tables()
	if len(tables) != len(expected) {
		t.Fatalf("Expected %d tables, got %d", len(expected), len(tables))
	}
	for i, name := range expected {
		if tables[i].Name != name {
			t.Errorf("Table %d: expected '%s', got '%s'", i, name, tables[i].Name)
		}
	}
}

func TestPrimaryKeys(t *testing.T) {
	tests := map[string]string{
		"songplays":      "songplay_id",
		"users":          "user_id",
		"songs":          "song_id",
		"artists":        "artist_id",
		"time":           "start_time",
		"staging_events": "",
		"staging_songs":  "",
	}
	for name, pk := range tests {
		table, ok := Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) failed", name)
		}
		if table.PrimaryKey() != pk {
			t.Errorf("%s primary key: expected %q, got %q", name, pk, table.PrimaryKey())
		}
	}
}

func TestLoadColumnsSkipsIdentity(t *testing.T) {
	cols := Songplays.LoadColumns()
	if len(cols) != len(Songplays.Columns)-1 {
		t.Fatalf("Expected %d load columns, got %d", len(Songplays.Columns)-1, len(cols))
	}
	for _, c := range cols {
		if c.Name == "songplay_id" {
			t.Error("LoadColumns should not include the identity column")
		}
	}
}

func TestDropStatementsGuarded(t *testing.T) {
	stmts := DropStatements()
	if len(stmts) != 7 {
		t.Fatalf("Expected 7 drop statements, got %d", len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s.SQL, "DROP TABLE IF EXISTS ") {
			t.Errorf("Drop statement not guarded: %s", s.SQL)
		}
	}
}

func TestCreateStatementsRedshift(t *testing.T) {
	stmts := CreateStatements(Redshift{})
	if len(stmts) != 7 {
		t.Fatalf("Expected 7 create statements, got %d", len(stmts))
	}

	songplays := stmts[2].SQL
	for _, want := range []string{
		`CREATE TABLE "songplays"`,
		"songplay_id BIGINT IDENTITY(0, 1) PRIMARY KEY",
		"start_time TIMESTAMP DISTKEY SORTKEY NOT NULL",
	} {
		if !strings.Contains(songplays, want) {
			t.Errorf("songplays DDL missing %q:\n%s", want, songplays)
		}
	}

	if !strings.Contains(stmts[0].SQL, "ts TIMESTAMP") {
		t.Errorf("staging_events DDL missing ts column:\n%s", stmts[0].SQL)
	}
}

func TestCreateStatementsPostgres(t *testing.T) {
	stmts := CreateStatements(Postgres{})
	for _, s := range stmts {
		if strings.Contains(s.SQL, "SORTKEY") || strings.Contains(s.SQL, "DISTKEY") ||
			strings.Contains(s.SQL, "IDENTITY(") {
			t.Errorf("Postgres DDL contains Redshift syntax:\n%s", s.SQL)
		}
	}
	if !strings.Contains(stmts[2].SQL, "GENERATED BY DEFAULT AS IDENTITY (START WITH 0 MINVALUE 0)") {
		t.Errorf("songplays DDL missing identity column:\n%s", stmts[2].SQL)
	}
}

func TestCopyStatementsRedshift(t *testing.T) {
	stmts, err := CopyStatements(Redshift{}, testSource())
	if err != nil {
		t.Fatalf("CopyStatements failed: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("Expected 2 copy statements, got %d", len(stmts))
	}

	events := stmts[0]
	if events.Table != "staging_events" {
		t.Errorf("First copy should load staging_events, got %s", events.Table)
	}
	for _, want := range []string{
		`COPY "staging_events" FROM 's3://udacity-dend/log_data'`,
		"CREDENTIALS 'aws_iam_role=arn:aws:iam::123456789012:role/dwhRole'",
		"REGION 'us-west-2'",
		"FORMAT AS JSON 's3://udacity-dend/log_json_path.json'",
		"TIMEFORMAT AS 'epochmillisecs'",
	} {
		if !strings.Contains(events.SQL, want) {
			t.Errorf("events COPY missing %q:\n%s", want, events.SQL)
		}
	}

	songs := stmts[1]
	if !strings.Contains(songs.SQL, "FORMAT AS JSON 'auto'") {
		t.Errorf("songs COPY should infer the schema:\n%s", songs.SQL)
	}
	if strings.Contains(songs.SQL, "TIMEFORMAT") {
		t.Errorf("songs COPY should not set a time format:\n%s", songs.SQL)
	}
}

func TestCopyStatementQuoting(t *testing.T) {
	src := testSource()
	src.LogData = "'s3://udacity-dend/log_data'"
	src.Credentials.IAMRoleARN = "'arn:aws:iam::1:role/it''s'"
	src.Credentials.Region = "eu-west-1"

	stmts, err := CopyStatements(Redshift{}, src)
	if err != nil {
		t.Fatalf("CopyStatements failed: %v", err)
	}
	if !strings.Contains(stmts[0].SQL, "FROM 's3://udacity-dend/log_data'\n") {
		t.Errorf("pre-quoted location not unwrapped:\n%s", stmts[0].SQL)
	}
	if !strings.Contains(stmts[0].SQL, "REGION 'eu-west-1'") {
		t.Errorf("region not applied:\n%s", stmts[0].SQL)
	}
}

func TestCopyStatementMissingSource(t *testing.T) {
	src := testSource()
	src.SongData = ""
	if _, err := CopyStatements(Redshift{}, src); err == nil {
		t.Error("Expected error for missing song data location")
	}
}

func TestCopyStatementsPostgres(t *testing.T) {
	_, err := CopyStatements(Postgres{}, testSource())
	if !errors.Is(err, ErrCopyUnsupported) {
		t.Errorf("Expected ErrCopyUnsupported, got %v", err)
	}
}

func TestInsertStatementsOrder(t *testing.T) {
	stmts := InsertStatements(Redshift{})
	expected := []string{"songplays", "users", "songs", "artists", "time"}
	if len(stmts) != len(expected) {
		t.Fatalf("Expected %d insert statements, got %d", len(expected), len(stmts))
	}
	for i, table := range expected {
		if stmts[i].Table != table {
			t.Errorf("Insert %d: expected table %s, got %s", i, table, stmts[i].Table)
		}
		if !strings.HasPrefix(stmts[i].SQL, "INSERT INTO "+QuoteIdent(table)) {
			t.Errorf("Insert %d targets wrong table:\n%s", i, stmts[i].SQL)
		}
	}
}

func TestInsertStatementsContent(t *testing.T) {
	stmts := InsertStatements(Redshift{})

	songplays := stmts[0].SQL
	if !strings.Contains(songplays, "e.song = s.title AND e.artist = s.artist_name") {
		t.Errorf("songplays insert should join on title and artist name:\n%s", songplays)
	}
	if !strings.Contains(songplays, "e.page = 'NextSong'") {
		t.Errorf("songplays insert should filter NextSong events:\n%s", songplays)
	}

	for _, s := range stmts[1:4] {
		if !strings.Contains(s.SQL, "ROW_NUMBER() OVER (PARTITION BY") {
			t.Errorf("%s should keep one row per key:\n%s", s.Name, s.SQL)
		}
	}

	// A play whose ts failed to load must not decide the user's level.
	if !strings.Contains(stmts[1].SQL, "ORDER BY ts DESC NULLS LAST") {
		t.Errorf("users insert should order null timestamps last:\n%s", stmts[1].SQL)
	}

	artists := stmts[3].SQL
	if !strings.Contains(artists, "artist_latitude  AS latitude") ||
		!strings.Contains(artists, "artist_longitude AS longitude") {
		t.Errorf("artists insert aliases wrong:\n%s", artists)
	}

	if !strings.Contains(stmts[4].SQL, "EXTRACT(dayofweek FROM start_time)") {
		t.Errorf("Redshift time insert should use dayofweek:\n%s", stmts[4].SQL)
	}
	if !strings.Contains(InsertStatements(Postgres{})[4].SQL, "EXTRACT(dow FROM start_time)") {
		t.Error("Postgres time insert should use dow")
	}
}

func TestCountStatements(t *testing.T) {
	stmts := CountStatements()
	if len(stmts) != 7 {
		t.Fatalf("Expected 7 count statements, got %d", len(stmts))
	}
	if stmts[6].SQL != `SELECT COUNT(*) FROM "time";` {
		t.Errorf("Unexpected time count: %s", stmts[6].SQL)
	}
}

func TestBuildPlan(t *testing.T) {
	plan, err := BuildPlan(Redshift{}, testSource())
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	lengths := map[Phase]int{PhaseDrop: 7, PhaseCreate: 7, PhaseCopy: 2, PhaseInsert: 5}
	for phase, n := range lengths {
		if got := len(plan.Statements(phase)); got != n {
			t.Errorf("Phase %s: expected %d statements, got %d", phase, n, got)
		}
	}

	pgPlan, err := BuildPlan(Postgres{}, testSource())
	if err != nil {
		t.Fatalf("BuildPlan(postgres) failed: %v", err)
	}
	if len(pgPlan.Copy) != 0 {
		t.Errorf("Postgres plan should have no copy statements, got %d", len(pgPlan.Copy))
	}
}

func TestParsePhase(t *testing.T) {
	for _, p := range Phases() {
		got, err := ParsePhase(" " + strings.ToUpper(string(p)))
		if err != nil || got != p {
			t.Errorf("ParsePhase(%s) = %s, %v", p, got, err)
		}
	}
	if _, err := ParsePhase("verify"); err == nil {
		t.Error("Expected error for unknown phase")
	}
}

func TestRedact(t *testing.T) {
	stmts, _ := CopyStatements(Redshift{}, testSource())
	redacted := Redact(stmts[0].SQL)
	if strings.Contains(redacted, "123456789012") {
		t.Errorf("role ARN not redacted:\n%s", redacted)
	}
	if !strings.Contains(redacted, "aws_iam_role=****'") {
		t.Errorf("unexpected redaction:\n%s", redacted)
	}
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"abc", "'abc'"},
		{"'abc'", "'abc'"},
		{"it's", "'it''s'"},
		{"", "''"},
	}
	for _, tt := range tests {
		if got := QuoteLiteral(tt.in); got != tt.want {
			t.Errorf("QuoteLiteral(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
