// Package database has the connection-facing layer: configuration, the
// snapshot extraction interface, and script application. Never deal with
// DDL construction here.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/sqldiff/sqldiff/schema"
)

// Config identifies one server/database pair. ConnString, when set, is
// passed to the driver verbatim and wins over the part-wise fields.
type Config struct {
	DbName     string
	User       string
	Password   string
	Host       string
	Port       int
	ConnString string
}

// Database abstracts one side of a diff: a live catalog or a loaded
// snapshot document.
type Database interface {
	// ExtractSnapshot builds the snapshot of the database's schema objects.
	// All catalog I/O honors ctx.
	ExtractSnapshot(ctx context.Context) (*schema.Snapshot, error)
	DB() *sql.DB
	Close() error
}

// FileConfig carries defaults loaded from an optional YAML file. Explicit
// command-line flags win over these values.
type FileConfig struct {
	Source            string `yaml:"source"`
	Target            string `yaml:"target"`
	IncludeDrops      bool   `yaml:"include_drops"`
	IncludeTableDrops bool   `yaml:"include_table_drops"`
	AllowTableRebuild bool   `yaml:"allow_table_rebuild"`
	AddOnly           bool   `yaml:"add_only"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
}

// ParseFileConfig loads the YAML defaults file. An empty path yields the
// zero config.
func ParseFileConfig(configFile string) (FileConfig, error) {
	var config FileConfig
	if configFile == "" {
		return config, nil
	}

	buf, err := os.ReadFile(configFile)
	if err != nil {
		return config, err
	}
	if err := yaml.UnmarshalStrict(buf, &config); err != nil {
		return config, fmt.Errorf("parse %s: %w", configFile, err)
	}

	config.Source = strings.TrimSpace(config.Source)
	config.Target = strings.TrimSpace(config.Target)
	return config, nil
}
