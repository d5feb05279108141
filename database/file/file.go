// Package file is a pseudo database backed by a persisted snapshot
// document, for diffing without touching a live server.
package file

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sqldiff/sqldiff/schema"
)

type FileDatabase struct {
	file string
}

func NewDatabase(file string) *FileDatabase {
	return &FileDatabase{
		file: file,
	}
}

// ExtractSnapshot loads the snapshot document instead of querying a
// catalog. The ctx is accepted for interface symmetry; file reads are not
// cancellable.
func (f *FileDatabase) ExtractSnapshot(ctx context.Context) (*schema.Snapshot, error) {
	buf, err := os.ReadFile(f.file)
	if err != nil {
		return nil, err
	}
	var snapshot schema.Snapshot
	if err := json.Unmarshal(buf, &snapshot); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", f.file, err)
	}
	return &snapshot, nil
}

func (f *FileDatabase) DB() *sql.DB {
	return nil
}

func (f *FileDatabase) Close() error {
	return nil
}
