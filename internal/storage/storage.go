//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package storage provides access to the object stores holding the raw
// song and event datasets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Object is an entry returned by List.
type Object struct {
	Key  string
	Size int64
}

// Store is a flat object namespace.
type Store interface {
	// List returns all objects whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Open returns a reader for an object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes an object, replacing any existing one.
	Put(ctx context.Context, key string, r io.Reader) error
}

// Location is a parsed storage URI: s3://bucket/prefix, file:///dir or a
// plain filesystem path.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

// ParseLocation parses a storage URI. Values wrapped in single quotes are
// accepted as written in INI style configs.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && strings.HasPrefix(raw, "'") && strings.HasSuffix(raw, "'") {
		raw = raw[1 : len(raw)-1]
	}
	if raw == "" {
		return Location{}, errors.New("empty storage location")
	}

	if !strings.Contains(raw, "://") {
		return Location{Scheme: "file", Key: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid storage location %q: %w", raw, err)
	}

	switch u.Scheme {
	case "s3":
		if u.Host == "" {
			return Location{}, fmt.Errorf("storage location %q has no bucket", raw)
		}
		return Location{Scheme: "s3", Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}, nil
	case "file":
		return Location{Scheme: "file", Key: u.Path}, nil
	default:
		return Location{}, fmt.Errorf("unsupported storage scheme %q", u.Scheme)
	}
}

// String returns the location as a URI.
func (l Location) String() string {
	if l.Scheme == "s3" {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Key
}

// Join returns a location for a key below l.
func (l Location) Join(elem ...string) Location {
	parts := append([]string{l.Key}, elem...)
	joined := path.Join(parts...)
	if l.Scheme == "s3" {
		joined = strings.TrimPrefix(joined, "/")
	}
	return Location{Scheme: l.Scheme, Bucket: l.Bucket, Key: joined}
}

// Config configures access to S3 and S3-compatible stores.
type Config struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool
}

// Open returns a store for the bucket or filesystem root of a location.
// Keys passed to the store are the location's Key values.
func Open(ctx context.Context, loc Location, cfg Config) (Store, error) {
	switch loc.Scheme {
	case "s3":
		return NewS3Store(ctx, loc.Bucket, cfg)
	case "file":
		return NewOSStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", loc.Scheme)
	}
}

// ReadAll reads a whole object.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
