package schema

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeDefinition reduces a DDL text to the canonical form used for
// equality: every whitespace run (including newlines) collapses to a single
// space, ends are trimmed, and the result is uppercased. This deliberately
// ignores case and whitespace inside string literals too; it is the sole
// basis for the "unchanged" verdict.
func NormalizeDefinition(definition string) string {
	normalized := whitespaceRun.ReplaceAllString(definition, " ")
	normalized = strings.TrimSpace(normalized)
	return strings.ToUpper(normalized)
}
