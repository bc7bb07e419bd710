package warehouse

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrUnknownDialect is returned by Get for an unregistered dialect name.
	ErrUnknownDialect = errors.New("unknown dialect")

	// ErrCopyUnsupported is returned when a dialect cannot bulk-load from
	// object storage on the server side.
	ErrCopyUnsupported = errors.New("server-side copy not supported by dialect")
)

// Dialect renders the parts of the schema that differ between warehouses.
type Dialect interface {
	// Name returns the dialect name used in configuration.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// ColumnDefinition renders one column of a CREATE TABLE statement.
	ColumnDefinition(c Column) string

	// Weekday returns an expression for the day of week of a timestamp,
	// with Sunday as 0.
	Weekday(expr string) string

	// SupportsServerCopy reports whether the warehouse can bulk-load
	// directly from object storage.
	SupportsServerCopy() bool

	// SupportsCopyProtocol reports whether clients can stream rows with
	// COPY FROM STDIN. Client loads fall back to batched INSERTs otherwise.
	SupportsCopyProtocol() bool

	// CopyStatement renders a server-side bulk load for a job.
	CopyStatement(job CopyJob, creds Credentials) (string, error)
}

var (
	registry = make(map[string]Dialect)
	mu       sync.RWMutex
)

// Register adds a dialect to the registry.
func Register(d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	registry[d.Name()] = d
}

// Get retrieves a dialect by name.
func Get(name string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()

	d, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return d, nil
}

// List returns all registered dialect names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QuoteIdent quotes an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes an SQL string literal. A value already wrapped in
// single quotes is unwrapped first, so config values copied from an INI
// style file work either way.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(unquote(s), "'", "''") + "'"
}

func baseType(c Column) string {
	if c.Type == Varchar && c.Size > 0 {
		return "VARCHAR(" + strconv.Itoa(c.Size) + ")"
	}
	return c.Type.String()
}

// Redshift renders statements for Amazon Redshift.
type Redshift struct{}

// Name returns the dialect name.
func (Redshift) Name() string { return "redshift" }

// Description returns a human-readable description.
func (Redshift) Description() string {
	return "Amazon Redshift - IDENTITY keys, sort/dist keys, COPY from S3"
}

// ColumnDefinition renders a column with Redshift attribute ordering.
func (Redshift) ColumnDefinition(c Column) string {
	parts := []string{c.Name, baseType(c)}
	if c.Identity {
		parts = append(parts, "IDENTITY(0, 1)")
	}
	if c.DistKey {
		parts = append(parts, "DISTKEY")
	}
	if c.SortKey {
		parts = append(parts, "SORTKEY")
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	return strings.Join(parts, " ")
}

// Weekday uses DAYOFWEEK, which numbers Sunday as 0.
func (Redshift) Weekday(expr string) string {
	return "EXTRACT(dayofweek FROM " + expr + ")"
}

// SupportsServerCopy returns true.
func (Redshift) SupportsServerCopy() bool { return true }

// SupportsCopyProtocol returns false; Redshift rejects COPY FROM STDIN.
func (Redshift) SupportsCopyProtocol() bool { return false }

// CopyStatement renders a COPY from S3 with an IAM role credential.
func (Redshift) CopyStatement(job CopyJob, creds Credentials) (string, error) {
	if job.Source == "" {
		return "", fmt.Errorf("copy into %s: source location is required", job.Table.Name)
	}
	format := job.Format
	if format == "" {
		format = FormatAuto
	}
	region := creds.Region
	if region == "" {
		region = DefaultRegion
	}

	var b strings.Builder
	fmt.Fprintf(&b, "COPY %s FROM %s\n", QuoteIdent(job.Table.Name), QuoteLiteral(job.Source))
	fmt.Fprintf(&b, "CREDENTIALS %s\n", QuoteLiteral("aws_iam_role="+unquote(creds.IAMRoleARN)))
	fmt.Fprintf(&b, "REGION %s\n", QuoteLiteral(region))
	fmt.Fprintf(&b, "FORMAT AS JSON %s", QuoteLiteral(format))
	if job.TimeFormat != "" {
		fmt.Fprintf(&b, "\nTIMEFORMAT AS %s", QuoteLiteral(job.TimeFormat))
	}
	b.WriteString(";")
	return b.String(), nil
}

// Postgres renders statements for PostgreSQL. It has no server-side load
// from object storage; the client loader fills staging tables instead.
type Postgres struct{}

// Name returns the dialect name.
func (Postgres) Name() string { return "postgres" }

// Description returns a human-readable description.
func (Postgres) Description() string {
	return "PostgreSQL - identity columns, client-side staging loads"
}

// ColumnDefinition renders a column for PostgreSQL; storage hints are dropped.
func (Postgres) ColumnDefinition(c Column) string {
	parts := []string{c.Name, baseType(c)}
	if c.Identity {
		parts = append(parts, "GENERATED BY DEFAULT AS IDENTITY (START WITH 0 MINVALUE 0)")
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	return strings.Join(parts, " ")
}

// Weekday uses DOW, which numbers Sunday as 0.
func (Postgres) Weekday(expr string) string {
	return "EXTRACT(dow FROM " + expr + ")"
}

// SupportsServerCopy returns false.
func (Postgres) SupportsServerCopy() bool { return false }

// SupportsCopyProtocol returns true.
func (Postgres) SupportsCopyProtocol() bool { return true }

// CopyStatement always fails with ErrCopyUnsupported.
func (Postgres) CopyStatement(job CopyJob, _ Credentials) (string, error) {
	return "", fmt.Errorf("copy into %s: %w", job.Table.Name, ErrCopyUnsupported)
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		return s[1 : len(s)-1]
	}
	return s
}

func init() {
	Register(Redshift{})
	Register(Postgres{})
}
