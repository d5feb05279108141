package mssql

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sqldiff/sqldiff/schema"
	"github.com/sqldiff/sqldiff/util"
)

// The scripter rebuilds a deterministic DDL text from catalog rows. All
// functions here are pure; the reader in catalog.go supplies the rows.

func tableIdentifier(t tableMeta) string {
	return schema.QuoteIdent(t.schema) + "." + schema.QuoteIdent(t.name)
}

// buildTableDDL renders the full creation block of one table: CREATE TABLE
// with column definitions, then key constraints (PK before UNIQUE, each
// alphabetical), foreign keys, check constraints, and non-constraint
// indexes, each group in name order. The block ends at a batch separator.
func buildTableDDL(t tableMeta, cols []columnRow, keys []keyConstraintRow, fks []foreignKeyRow,
	checks []checkConstraintRow, indexes []indexRow, indexColumns map[int64][]indexColumnRow) string {
	id := tableIdentifier(t)

	colDefs := util.TransformSlice(cols, renderColumn)
	lines := []string{
		fmt.Sprintf("CREATE TABLE %s ( %s );", id, strings.Join(colDefs, ", ")),
		schema.BatchSeparator,
	}

	for _, k := range sortedKeyConstraints(keys) {
		keyword := "PRIMARY KEY"
		if k.KindCode == "UQ" {
			keyword = "UNIQUE"
		}
		lines = append(lines, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s %s (%s);",
			id, schema.QuoteIdent(k.Name), keyword, clusteringFromTypeDesc(k.IndexTypeDesc),
			strings.Join(keyConstraintColumns(indexColumns[k.IndexID]), ", ")))
	}

	for _, fk := range fks {
		lines = append(lines, renderForeignKey(id, fk)...)
	}

	for _, c := range checks {
		lines = append(lines, fmt.Sprintf("ALTER TABLE %s %s ADD CONSTRAINT %s CHECK %s;",
			id, withCheckClause(c.NotTrusted), schema.QuoteIdent(c.Name), c.Expression))
		if c.Disabled {
			lines = append(lines, fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT %s;", id, schema.QuoteIdent(c.Name)))
		}
	}

	for _, ind := range userIndexes(indexes) {
		lines = append(lines, renderIndex(id, ind, indexColumns[ind.IndexID])...)
	}

	return schema.EnsureBatchSeparator(strings.Join(lines, "\n"))
}

func renderColumn(col columnRow) string {
	name := schema.QuoteIdent(col.Name)
	if col.IsComputed {
		def := name + " AS " + stringOrEmpty(col.ComputedDefinition)
		if col.IsPersisted {
			def += " PERSISTED"
		}
		return def
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteString(" ")
	b.WriteString(renderDataType(col))
	if col.Collation != nil {
		b.WriteString(" COLLATE ")
		b.WriteString(*col.Collation)
	}
	if col.IsIdentity {
		seed, increment := "1", "1"
		// Seed and increment render as (1,1) unless both are known.
		if col.SeedValue != nil && col.IncrementValue != nil {
			seed, increment = *col.SeedValue, *col.IncrementValue
		}
		fmt.Fprintf(&b, " IDENTITY(%s,%s)", seed, increment)
	}
	if col.IsRowGUIDCol {
		b.WriteString(" ROWGUIDCOL")
	}
	if col.Nullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if col.DefaultDefinition != nil {
		if col.DefaultName != nil {
			b.WriteString(" CONSTRAINT ")
			b.WriteString(schema.QuoteIdent(*col.DefaultName))
		}
		b.WriteString(" DEFAULT ")
		b.WriteString(*col.DefaultDefinition)
	}
	return b.String()
}

func renderDataType(col columnRow) string {
	if col.IsUserDefined {
		return schema.QuoteIdent(col.TypeSchema) + "." + schema.QuoteIdent(col.TypeName)
	}

	name := strings.ToLower(col.TypeName)
	switch name {
	case "varchar", "char", "varbinary", "binary":
		return fmt.Sprintf("%s(%s)", name, charLength(col.MaxLength, 1))
	case "nvarchar", "nchar":
		// max_length is in bytes; UTF-16 characters take two.
		return fmt.Sprintf("%s(%s)", name, charLength(col.MaxLength, 2))
	case "decimal", "numeric":
		return fmt.Sprintf("%s(%d,%d)", name, col.Precision, col.Scale)
	case "datetime2", "datetimeoffset", "time":
		return fmt.Sprintf("%s(%d)", name, col.Scale)
	case "float":
		if col.Precision != 53 {
			return fmt.Sprintf("float(%d)", col.Precision)
		}
		return "float"
	default:
		return name
	}
}

func charLength(maxLength, bytesPerChar int64) string {
	if maxLength == -1 {
		return "MAX"
	}
	return strconv.FormatInt(maxLength/bytesPerChar, 10)
}

// sortedKeyConstraints orders PRIMARY KEY before UNIQUE, alphabetically
// within each group.
func sortedKeyConstraints(keys []keyConstraintRow) []keyConstraintRow {
	sorted := make([]keyConstraintRow, len(keys))
	copy(sorted, keys)
	sort.SliceStable(sorted, func(i, j int) bool {
		if (sorted[i].KindCode == "PK") != (sorted[j].KindCode == "PK") {
			return sorted[i].KindCode == "PK"
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// keyConstraintColumns picks the key columns of the backing index in
// key_ordinal order.
func keyConstraintColumns(columns []indexColumnRow) []string {
	var keyCols []indexColumnRow
	for _, c := range columns {
		if !c.Included && c.KeyOrdinal > 0 {
			keyCols = append(keyCols, c)
		}
	}
	sort.Slice(keyCols, func(i, j int) bool { return keyCols[i].KeyOrdinal < keyCols[j].KeyOrdinal })
	return util.TransformSlice(keyCols, func(c indexColumnRow) string { return schema.QuoteIdent(c.Name) })
}

// clusteringFromTypeDesc derives the CLUSTERED/NONCLUSTERED token from an
// index type description. Descriptions lacking the word CLUSTERED (HEAP,
// XML, ...) fall back to NONCLUSTERED.
func clusteringFromTypeDesc(typeDesc string) string {
	desc := strings.ReplaceAll(typeDesc, "_", " ")
	if !strings.Contains(strings.ToUpper(desc), "CLUSTERED") {
		return "NONCLUSTERED"
	}
	return desc
}

func withCheckClause(notTrusted bool) string {
	if notTrusted {
		return "WITH NOCHECK"
	}
	return "WITH CHECK"
}

// referentialAction maps a catalog action description to its DDL clause.
// NO_ACTION and anything unrecognized render as the (default) empty clause.
func referentialAction(desc string) string {
	switch desc {
	case "CASCADE":
		return "CASCADE"
	case "SET_NULL":
		return "SET NULL"
	case "SET_DEFAULT":
		return "SET DEFAULT"
	default:
		return ""
	}
}

func renderForeignKey(tableID string, fk foreignKeyRow) []string {
	columns := make([]foreignKeyColumnRow, len(fk.Columns))
	copy(columns, fk.Columns)
	sort.Slice(columns, func(i, j int) bool { return columns[i].Ordinal < columns[j].Ordinal })

	parentCols := util.TransformSlice(columns, func(c foreignKeyColumnRow) string { return schema.QuoteIdent(c.ParentColumn) })
	refCols := util.TransformSlice(columns, func(c foreignKeyColumnRow) string { return schema.QuoteIdent(c.ReferencedColumn) })
	refID := schema.QuoteIdent(fk.ReferencedSchema) + "." + schema.QuoteIdent(fk.ReferencedTable)

	var b strings.Builder
	fmt.Fprintf(&b, "ALTER TABLE %s %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		tableID, withCheckClause(fk.NotTrusted), schema.QuoteIdent(fk.Name),
		strings.Join(parentCols, ", "), refID, strings.Join(refCols, ", "))
	if action := referentialAction(fk.DeleteAction); action != "" {
		b.WriteString(" ON DELETE " + action)
	}
	if action := referentialAction(fk.UpdateAction); action != "" {
		b.WriteString(" ON UPDATE " + action)
	}
	if fk.NotForReplication {
		b.WriteString(" NOT FOR REPLICATION")
	}
	b.WriteString(";")

	lines := []string{b.String()}
	if fk.Disabled {
		lines = append(lines, fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT %s;", tableID, schema.QuoteIdent(fk.Name)))
	}
	return lines
}

var conventionalIndexTypes = map[string]bool{
	"CLUSTERED":                true,
	"NONCLUSTERED":             true,
	"CLUSTERED COLUMNSTORE":    true,
	"NONCLUSTERED COLUMNSTORE": true,
}

// userIndexes filters down to the indexes worth scripting: named, of a
// conventional row or columnstore type, and (already per the catalog query)
// not backing a key constraint. Ordered by name.
func userIndexes(indexes []indexRow) []indexRow {
	var user []indexRow
	for _, ind := range indexes {
		if ind.Name == nil {
			continue
		}
		if !conventionalIndexTypes[strings.ReplaceAll(ind.TypeDesc, "_", " ")] {
			continue
		}
		user = append(user, ind)
	}
	sort.Slice(user, func(i, j int) bool { return *user[i].Name < *user[j].Name })
	return user
}

func renderIndex(tableID string, ind indexRow, columns []indexColumnRow) []string {
	var keyCols, includedCols []indexColumnRow
	for _, c := range columns {
		if c.Included {
			includedCols = append(includedCols, c)
		} else if c.KeyOrdinal > 0 {
			keyCols = append(keyCols, c)
		}
	}
	sort.Slice(keyCols, func(i, j int) bool { return keyCols[i].KeyOrdinal < keyCols[j].KeyOrdinal })
	sort.Slice(includedCols, func(i, j int) bool { return includedCols[i].Ordinal < includedCols[j].Ordinal })

	keyDefs := util.TransformSlice(keyCols, func(c indexColumnRow) string {
		direction := " ASC"
		if c.Descending {
			direction = " DESC"
		}
		return schema.QuoteIdent(c.Name) + direction
	})
	includedDefs := util.TransformSlice(includedCols, func(c indexColumnRow) string { return schema.QuoteIdent(c.Name) })

	var b strings.Builder
	b.WriteString("CREATE ")
	if ind.Unique {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "%s INDEX %s ON %s (%s)",
		strings.ReplaceAll(ind.TypeDesc, "_", " "), schema.QuoteIdent(*ind.Name), tableID, strings.Join(keyDefs, ", "))
	if len(includedDefs) > 0 {
		fmt.Fprintf(&b, " INCLUDE (%s)", strings.Join(includedDefs, ", "))
	}
	if ind.Filter != nil {
		fmt.Fprintf(&b, " WHERE %s", *ind.Filter)
	}
	b.WriteString(";")

	lines := []string{b.String()}
	if ind.Disabled {
		lines = append(lines, fmt.Sprintf("ALTER INDEX %s ON %s DISABLE;", schema.QuoteIdent(*ind.Name), tableID))
	}
	return lines
}

// tableDependencies collects the keys of the tables referenced by the
// table's foreign keys, deduplicated and sorted.
func tableDependencies(fks []foreignKeyRow) []string {
	seen := map[string]bool{}
	var deps []string
	for _, fk := range fks {
		ref := schema.Object{Kind: schema.ObjectKindTable, Schema: fk.ReferencedSchema, Name: fk.ReferencedTable}
		key := ref.Key()
		if seen[schema.NormalizeKey(key)] {
			continue
		}
		seen[schema.NormalizeKey(key)] = true
		deps = append(deps, key)
	}
	sort.Strings(deps)
	return deps
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
