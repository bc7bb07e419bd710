//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for pgedge-songdwh.
// Configuration is loaded from config files and CLI flags (no environment variables).
// CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"

	"github.com/pgEdge/pgedge-songdwh/internal/warehouse"
)

// Copy modes.
const (
	// CopyModeServer issues warehouse-native COPY statements.
	CopyModeServer = "server"

	// CopyModeClient reads the source objects and streams them into the
	// staging tables over the connection.
	CopyModeClient = "client"
)

// Config holds all configuration for pgedge-songdwh.
type Config struct {
	// Connection is the warehouse connection string. When empty it is
	// built from the Cluster section.
	Connection string `mapstructure:"connection"`

	// Dialect selects the SQL dialect (redshift, postgres).
	Dialect string `mapstructure:"dialect"`

	// CopyMode selects how staging tables are loaded (server, client).
	CopyMode string `mapstructure:"copy_mode"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is console or json.
	LogFormat string `mapstructure:"log_format"`

	// RecordRuns keeps a ledger of pipeline runs in the warehouse.
	RecordRuns bool `mapstructure:"record_runs"`

	// S3 holds the source dataset locations.
	S3 S3Config `mapstructure:"s3"`

	// IAMRole is the credential the warehouse uses to read S3.
	IAMRole IAMRoleConfig `mapstructure:"iam_role"`

	// Cluster holds discrete connection settings.
	Cluster ClusterConfig `mapstructure:"cluster"`

	// Load holds settings for client-side staging loads.
	Load LoadConfig `mapstructure:"load"`
}

// S3Config holds the source dataset locations.
type S3Config struct {
	// LogData is the prefix of the event log files.
	LogData string `mapstructure:"log_data"`

	// LogJSONPath is the jsonpaths file mapping event fields to columns.
	LogJSONPath string `mapstructure:"log_jsonpath"`

	// SongData is the prefix of the song metadata files.
	SongData string `mapstructure:"song_data"`

	// Region is the bucket region passed to COPY.
	Region string `mapstructure:"region"`

	// Endpoint overrides the S3 endpoint for S3-compatible stores (client mode only).
	Endpoint string `mapstructure:"endpoint"`

	// ForcePathStyle enables path-style addressing (client mode only).
	ForcePathStyle bool `mapstructure:"force_path_style"`
}

// IAMRoleConfig identifies the role used by the bulk loader.
type IAMRoleConfig struct {
	ARN string `mapstructure:"arn"`
}

// ClusterConfig holds connection settings used when Connection is empty.
type ClusterConfig struct {
	Host       string `mapstructure:"host"`
	DBName     string `mapstructure:"db_name"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	DBPort     int    `mapstructure:"db_port"`
}

// LoadConfig holds settings for client-side staging loads.
type LoadConfig struct {
	// Workers is the number of objects fetched and decoded concurrently.
	Workers int `mapstructure:"workers"`

	// ConnectRetries is how many times a failed connection is retried.
	ConnectRetries int `mapstructure:"connect_retries"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Dialect:    "redshift",
		CopyMode:   CopyModeServer,
		LogLevel:   "info",
		LogFormat:  "console",
		RecordRuns: true,
		S3: S3Config{
			Region: warehouse.DefaultRegion,
		},
		Cluster: ClusterConfig{
			DBPort: 5439,
		},
		Load: LoadConfig{
			Workers:        8,
			ConnectRetries: 3,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./pgedge-songdwh.yaml
// 3. ~/.config/pgedge-songdwh/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("pgedge-songdwh")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pgedge-songdwh"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// ConnString returns the connection string, building one from the cluster
// section when none is configured.
func (c *Config) ConnString() string {
	if c.Connection != "" || c.Cluster.Host == "" {
		return c.Connection
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Cluster.Host, strconv.Itoa(c.Cluster.DBPort)),
		Path:   "/" + c.Cluster.DBName,
	}
	if c.Cluster.DBPassword != "" {
		u.User = url.UserPassword(c.Cluster.DBUser, c.Cluster.DBPassword)
	} else if c.Cluster.DBUser != "" {
		u.User = url.User(c.Cluster.DBUser)
	}
	return u.String()
}

// CopySource returns the bulk load sources for statement rendering.
func (c *Config) CopySource() warehouse.CopySource {
	return warehouse.CopySource{
		LogData:     c.S3.LogData,
		LogJSONPath: c.S3.LogJSONPath,
		SongData:    c.S3.SongData,
		Credentials: warehouse.Credentials{
			IAMRoleARN: c.IAMRole.ARN,
			Region:     c.S3.Region,
		},
	}
}

// EffectiveCopyMode returns the copy mode, forcing client mode for
// dialects that cannot load from object storage themselves.
func (c *Config) EffectiveCopyMode() string {
	if d, err := warehouse.Get(c.Dialect); err == nil && !d.SupportsServerCopy() {
		return CopyModeClient
	}
	return c.CopyMode
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.ConnString() == "" {
		return fmt.Errorf("connection string or cluster host is required")
	}
	if _, err := warehouse.Get(c.Dialect); err != nil {
		return err
	}
	if c.CopyMode != CopyModeServer && c.CopyMode != CopyModeClient {
		return fmt.Errorf("copy_mode must be '%s' or '%s'", CopyModeServer, CopyModeClient)
	}
	return nil
}

// ValidateCopy checks configuration required for the copy phase.
func (c *Config) ValidateCopy() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.S3.LogData == "" {
		return fmt.Errorf("s3.log_data is required")
	}
	if c.S3.LogJSONPath == "" {
		return fmt.Errorf("s3.log_jsonpath is required")
	}
	if c.S3.SongData == "" {
		return fmt.Errorf("s3.song_data is required")
	}
	switch c.EffectiveCopyMode() {
	case CopyModeServer:
		if c.IAMRole.ARN == "" {
			return fmt.Errorf("iam_role.arn is required for server-side copy")
		}
	case CopyModeClient:
		if c.Load.Workers < 1 {
			return fmt.Errorf("load.workers must be at least 1")
		}
	}
	return nil
}
