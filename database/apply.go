package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// A separator line is the batch token alone, optionally followed by a line
// comment. Matching is case-insensitive.
var batchSeparatorLine = regexp.MustCompile(`(?i)^\s*GO\s*(--.*)?$`)

// SplitBatches splits a script into executor-sized chunks on
// batch-separator lines. Whitespace-only chunks are dropped.
func SplitBatches(script string) []string {
	var batches []string
	var current []string

	flush := func() {
		batch := strings.TrimSpace(strings.Join(current, "\n"))
		if batch != "" {
			batches = append(batches, batch)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(script, "\r\n", "\n"), "\n") {
		if batchSeparatorLine.MatchString(line) {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return batches
}

// RunScript executes a script chunk by chunk against db. With dryRun the
// chunks are only printed. The first failing chunk aborts the run; chunks
// already executed stay applied, matching the no-transactional-wrapper
// contract of the emitted scripts.
func RunScript(ctx context.Context, db *sql.DB, script string, dryRun bool, logger Logger) error {
	batches := SplitBatches(script)
	if dryRun {
		logger.Println("-- dry run --")
	} else {
		logger.Println("-- Apply --")
	}
	for i, batch := range batches {
		logger.Printf("%s\nGO\n", batch)
		if dryRun {
			continue
		}
		if _, err := db.ExecContext(ctx, batch); err != nil {
			return fmt.Errorf("batch %d/%d failed: %w", i+1, len(batches), err)
		}
	}
	return nil
}
