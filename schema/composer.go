package schema

import (
	"fmt"
	"strings"
	"time"
)

// BatchSeparator is the token that, alone on a line, splits a script into
// executor-sized chunks.
const BatchSeparator = "GO"

const timestampLayout = "2006-01-02 15:04:05"

// EnsureBatchSeparator terminates a statement group with a separator line,
// without duplicating one that is already there.
func EnsureBatchSeparator(statement string) string {
	trimmed := strings.TrimRight(statement, " \t\r\n")
	if trimmed == "" {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if strings.EqualFold(last, BatchSeparator) {
		return trimmed + "\n"
	}
	return trimmed + "\n" + BatchSeparator + "\n"
}

// ComposeScript assembles the final script text: a header naming both
// databases and the generation instant, then a drops section and a creates
// section, each emitted only when non-empty. Chunks must already be
// newline-terminated.
func ComposeScript(sourceDB, targetDB string, generatedAt time.Time, drops, creates []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- SQLDiff source: %s\n", QuoteIdent(sourceDB))
	fmt.Fprintf(&b, "-- SQLDiff target: %s\n", QuoteIdent(targetDB))
	fmt.Fprintf(&b, "-- Generated (UTC): %s\n", generatedAt.UTC().Format(timestampLayout))

	if len(drops) > 0 {
		b.WriteString("\n-- Drops\n")
		for _, chunk := range drops {
			b.WriteString(chunk)
		}
	}
	if len(creates) > 0 {
		b.WriteString("\n-- Creates/Alters\n")
		for _, chunk := range creates {
			b.WriteString(chunk)
		}
	}
	return b.String()
}

// ComposeExtractScript renders the complete creation script of one
// snapshot: a header, then every object in dependency order so the script
// replays onto an empty database.
func ComposeExtractScript(s *Snapshot, generatedAt time.Time) string {
	pending := make([]pendingCreate, 0, len(s.Objects))
	for _, o := range sortedByCreateOrder(s.Objects) {
		pending = append(pending, pendingCreate{object: o, statement: EnsureBatchSeparator(o.Definition)})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- SQLDiff extract: %s\n", QuoteIdent(s.DatabaseName))
	fmt.Fprintf(&b, "-- Generated (UTC): %s\n", generatedAt.UTC().Format(timestampLayout))
	if len(pending) > 0 {
		b.WriteString("\n")
		for _, chunk := range orderPendingCreates(pending) {
			b.WriteString(chunk)
		}
	}
	return b.String()
}
