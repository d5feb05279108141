// Package sqldiff glues the engine together for the CLI: file I/O for
// scripts and snapshot documents, and the parallel two-sided extraction.
package sqldiff

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sqldiff/sqldiff/database"
	"github.com/sqldiff/sqldiff/schema"
)

// ReadFile reads a whole file, with "-" meaning stdin.
func ReadFile(filepath string) (string, error) {
	var err error
	var buf []byte

	if filepath == "-" {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return "", fmt.Errorf("stdin is not piped")
		}

		buf, err = io.ReadAll(os.Stdin)
	} else {
		buf, err = os.ReadFile(filepath)
	}

	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteFile writes content to a file, with "-" meaning stdout.
func WriteFile(filepath, content string) error {
	if filepath == "-" {
		_, err := os.Stdout.WriteString(content)
		return err
	}
	return os.WriteFile(filepath, []byte(content), 0644)
}

// SaveSnapshot persists a snapshot document as indented JSON.
func SaveSnapshot(filepath string, snapshot *schema.Snapshot) error {
	buf, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return WriteFile(filepath, string(buf)+"\n")
}

// ExtractBoth builds the source and target snapshots. The two extractions
// run in parallel on their own connections; within each one the catalog
// queries stay sequential.
func ExtractBoth(ctx context.Context, source, target database.Database) (*schema.Snapshot, *schema.Snapshot, error) {
	snapshots, err := database.ConcurrentMapFuncWithError(
		[]database.Database{source, target}, -1,
		func(db database.Database) (*schema.Snapshot, error) {
			return db.ExtractSnapshot(ctx)
		})
	if err != nil {
		return nil, nil, err
	}
	return snapshots[0], snapshots[1], nil
}
