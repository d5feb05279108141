package schema

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// DiffOptions gates what the differ is allowed to emit.
type DiffOptions struct {
	// IncludeDrops emits DROP statements for target-only objects.
	IncludeDrops bool
	// IncludeTableDrops additionally allows DROP TABLE for target-only tables.
	IncludeTableDrops bool
	// AllowTableRebuild turns a changed table into drop + create instead of
	// a warning comment. Rebuilds lose target data.
	AllowTableRebuild bool
	// AddOnly restricts the script to additions: no drops, no alters.
	AddOnly bool
	// GeneratedAt pins the header timestamp; the zero value means now.
	GeneratedAt time.Time
}

// DiffResult is the tallied outcome of one diff run.
type DiffResult struct {
	Script  string
	Added   int
	Changed int
	Removed int
	Skipped int
}

// HasChanges reports whether any object was added, changed or removed.
// Changed objects count even when the script only comments on them.
func (r *DiffResult) HasChanges() bool {
	return r.Added+r.Changed+r.Removed > 0
}

var createKeyword = regexp.MustCompile(`(?i)^(\s*)create\b`)

// rewriteCreateOrAlter turns the leading CREATE of a programmable-object
// body into CREATE OR ALTER. Bodies not beginning with CREATE pass through
// unchanged.
func rewriteCreateOrAlter(definition string) string {
	return createKeyword.ReplaceAllString(definition, "${1}CREATE OR ALTER")
}

// renderDrop produces the guarded drop chunk for an object.
func renderDrop(o *Object) (string, error) {
	keyword, err := o.Kind.dropKeyword()
	if err != nil {
		return "", err
	}
	id := o.Identifier()
	stmt := fmt.Sprintf("IF OBJECT_ID(N'%s') IS NOT NULL\n    DROP %s %s;", id, keyword, id)
	return EnsureBatchSeparator(stmt), nil
}

func sortedByCreateOrder(objects []*Object) []*Object {
	sorted := make([]*Object, len(objects))
	copy(sorted, objects)
	sort.Slice(sorted, func(i, j int) bool {
		ip, jp := sorted[i].Kind.CreatePriority(), sorted[j].Kind.CreatePriority()
		if ip != jp {
			return ip < jp
		}
		return NormalizeKey(sorted[i].Key()) < NormalizeKey(sorted[j].Key())
	})
	return sorted
}

func sortedByDropOrder(objects []*Object) []*Object {
	sorted := make([]*Object, len(objects))
	copy(sorted, objects)
	sort.Slice(sorted, func(i, j int) bool {
		ip, jp := sorted[i].Kind.DropPriority(), sorted[j].Kind.DropPriority()
		if ip != jp {
			return ip < jp
		}
		return NormalizeKey(sorted[i].Key()) < NormalizeKey(sorted[j].Key())
	})
	return sorted
}

func objectsByKey(objects []*Object) map[string]*Object {
	m := make(map[string]*Object, len(objects))
	for _, o := range objects {
		m[NormalizeKey(o.Key())] = o
	}
	return m
}

// Diff compares two snapshots and produces the migration script that
// transforms target into source, plus per-verdict counters. The output is a
// pure function of the inputs and options; walk order and tie-breaking are
// deterministic so that two runs against the same snapshots match
// byte-for-byte.
func Diff(source, target *Snapshot, opts DiffOptions) (*DiffResult, error) {
	sourceByKey := objectsByKey(source.Objects)
	targetByKey := objectsByKey(target.Objects)

	result := &DiffResult{}
	var drops []string
	var createComments []string
	var pending []pendingCreate

	for _, s := range sortedByCreateOrder(source.Objects) {
		t, onTarget := targetByKey[NormalizeKey(s.Key())]
		if !onTarget {
			pending = append(pending, pendingCreate{object: s, statement: EnsureBatchSeparator(s.Definition)})
			result.Added++
			continue
		}
		if NormalizeDefinition(s.Definition) == NormalizeDefinition(t.Definition) {
			continue
		}

		result.Changed++
		switch {
		case opts.AddOnly:
			result.Skipped++
		case s.Kind == ObjectKindTable:
			if opts.AllowTableRebuild {
				drop, err := renderDrop(s)
				if err != nil {
					return nil, err
				}
				drops = append(drops, drop)
				pending = append(pending, pendingCreate{object: s, statement: EnsureBatchSeparator(s.Definition)})
			} else {
				result.Skipped++
				createComments = append(createComments, fmt.Sprintf(
					"-- WARNING: table %s differs from the source definition and was not modified.\n-- Re-run with --allow-table-rebuild to drop and recreate it (target data is lost).\n",
					s.Identifier()))
			}
		default:
			pending = append(pending, pendingCreate{object: s, statement: EnsureBatchSeparator(rewriteCreateOrAlter(s.Definition))})
		}
	}

	if opts.IncludeDrops && !opts.AddOnly {
		for _, t := range sortedByDropOrder(target.Objects) {
			if _, onSource := sourceByKey[NormalizeKey(t.Key())]; onSource {
				continue
			}
			if t.Kind == ObjectKindTable && !opts.IncludeTableDrops {
				result.Skipped++
				drops = append(drops, fmt.Sprintf(
					"-- NOTE: table %s exists only on the target and was not dropped.\n-- Re-run with --include-table-drops to emit its DROP.\n",
					t.Identifier()))
				continue
			}
			drop, err := renderDrop(t)
			if err != nil {
				return nil, err
			}
			drops = append(drops, drop)
			result.Removed++
		}
	} else if opts.IncludeDrops && opts.AddOnly {
		result.Skipped++
		drops = append(drops, "-- NOTE: --include-drops is ignored because --add-only is set.\n")
	}

	creates := append(createComments, orderPendingCreates(pending)...)

	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	result.Script = ComposeScript(source.DatabaseName, target.DatabaseName, generatedAt, drops, creates)
	return result, nil
}
