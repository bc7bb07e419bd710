//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      Location
		wantError bool
	}{
		{"s3 prefix", "s3://udacity-dend/log_data", Location{Scheme: "s3", Bucket: "udacity-dend", Key: "log_data"}, false},
		{"s3 quoted", "'s3://udacity-dend/song_data'", Location{Scheme: "s3", Bucket: "udacity-dend", Key: "song_data"}, false},
		{"s3 bucket only", "s3://bucket", Location{Scheme: "s3", Bucket: "bucket", Key: ""}, false},
		{"file uri", "file:///tmp/data", Location{Scheme: "file", Key: "/tmp/data"}, false},
		{"plain path", "./data/log_data", Location{Scheme: "file", Key: "./data/log_data"}, false},
		{"missing bucket", "s3:///key", Location{}, true},
		{"bad scheme", "gs://bucket/key", Location{}, true},
		{"empty", "  ", Location{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			if tt.wantError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLocation(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLocationStringAndJoin(t *testing.T) {
	loc := Location{Scheme: "s3", Bucket: "b", Key: "data"}
	if got := loc.Join("log_data", "2018").String(); got != "s3://b/data/log_data/2018" {
		t.Errorf("Join = %s", got)
	}

	root := Location{Scheme: "s3", Bucket: "b"}
	if got := root.Join("song_data").Key; got != "song_data" {
		t.Errorf("Join from bucket root = %q", got)
	}

	local := Location{Scheme: "file", Key: "/tmp/x"}
	if got := local.Join("a.json").String(); got != "/tmp/x/a.json" {
		t.Errorf("local Join = %s", got)
	}
}

func newMemStore(t *testing.T, files map[string]string) *FSStore {
	t.Helper()
	s := NewFSStore(afero.NewMemMapFs())
	for key, body := range files {
		if err := s.Put(context.Background(), key, strings.NewReader(body)); err != nil {
			t.Fatalf("Put(%s) failed: %v", key, err)
		}
	}
	return s
}

func TestFSStoreList(t *testing.T) {
	s := newMemStore(t, map[string]string{
		"/data/log_data/2018/11/2018-11-02-events.json": "{}",
		"/data/log_data/2018/11/2018-11-01-events.json": "{}",
		"/data/log_json_path.json":                      "{}",
		"/data/song_data/A/A/A/TRAAAAA.json":            "{}",
	})
	ctx := context.Background()

	objs, err := s.List(ctx, "/data/log_data")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("Expected 2 objects, got %d: %v", len(objs), objs)
	}
	if !strings.HasSuffix(objs[0].Key, "2018-11-01-events.json") {
		t.Errorf("Objects not sorted: %v", objs)
	}

	// A prefix that is not a directory matches like an S3 prefix.
	objs, err = s.List(ctx, "/data/log")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(objs) != 3 {
		t.Errorf("Expected 3 objects for partial prefix, got %d: %v", len(objs), objs)
	}

	objs, err = s.List(ctx, "/missing")
	if err != nil {
		t.Fatalf("List of missing prefix should not fail: %v", err)
	}
	if len(objs) != 0 {
		t.Errorf("Expected no objects, got %v", objs)
	}
}

func TestFSStoreOpenAndReadAll(t *testing.T) {
	key := filepath.Join("/data", "song.json")
	s := newMemStore(t, map[string]string{key: `{"song_id":"S1"}`})

	data, err := ReadAll(context.Background(), s, key)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != `{"song_id":"S1"}` {
		t.Errorf("Unexpected content: %s", data)
	}

	_, err = s.Open(context.Background(), "/data/none.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOpenFileLocation(t *testing.T) {
	s, err := Open(context.Background(), Location{Scheme: "file", Key: "/tmp"}, Config{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := s.(*FSStore); !ok {
		t.Errorf("Expected *FSStore, got %T", s)
	}

	if _, err := Open(context.Background(), Location{Scheme: "gs"}, Config{}); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}
