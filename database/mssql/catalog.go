package mssql

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sqldiff/sqldiff/schema"
)

// kindFromTypeCode maps a sys.objects type code to an object kind. Codes
// arrive char(2) space-padded. Any unsupported code is an error; the
// catalog queries are expected to pre-filter.
func kindFromTypeCode(code string) (schema.ObjectKind, error) {
	switch strings.TrimSpace(code) {
	case "U":
		return schema.ObjectKindTable, nil
	case "V":
		return schema.ObjectKindView, nil
	case "P":
		return schema.ObjectKindStoredProcedure, nil
	case "FN", "IF", "TF", "FS", "FT":
		return schema.ObjectKindFunction, nil
	default:
		return 0, fmt.Errorf("unsupported object type code %q", strings.TrimSpace(code))
	}
}

type tableMeta struct {
	objectID int64
	schema   string
	name     string
}

type columnRow struct {
	Name               string
	TypeSchema         string
	TypeName           string
	IsUserDefined      bool
	MaxLength          int64
	Precision          int64
	Scale              int64
	Nullable           bool
	IsIdentity         bool
	IsComputed         bool
	Collation          *string
	IsRowGUIDCol       bool
	ComputedDefinition *string
	IsPersisted        bool
	DefaultName        *string
	DefaultDefinition  *string
	SeedValue          *string
	IncrementValue     *string
}

type keyConstraintRow struct {
	Name          string
	KindCode      string // PK or UQ
	IndexID       int64
	IndexTypeDesc string
}

type foreignKeyRow struct {
	objectID          int64
	Name              string
	ReferencedSchema  string
	ReferencedTable   string
	DeleteAction      string
	UpdateAction      string
	NotForReplication bool
	NotTrusted        bool
	Disabled          bool
	Columns           []foreignKeyColumnRow
}

type foreignKeyColumnRow struct {
	ParentColumn     string
	ReferencedColumn string
	Ordinal          int64
}

type checkConstraintRow struct {
	Name       string
	Expression string
	NotTrusted bool
	Disabled   bool
}

type indexRow struct {
	IndexID  int64
	Name     *string
	Unique   bool
	TypeDesc string
	Filter   *string
	Disabled bool
}

type indexColumnRow struct {
	IndexID    int64
	Name       string
	KeyOrdinal int64
	Descending bool
	Included   bool
	Ordinal    int64 // index_column_id, tiebreaker within an index
}

type moduleRow struct {
	objectID   int64
	kindCode   string
	schemaName string
	name       string
	definition string
}

func (d *MssqlDatabase) listTables(ctx context.Context) ([]tableMeta, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
	o.object_id,
	schema_name(o.schema_id),
	o.name
FROM sys.objects o WITH(NOLOCK)
WHERE o.type = 'U' AND o.is_ms_shipped = 0
ORDER BY schema_name(o.schema_id), o.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []tableMeta
	for rows.Next() {
		var t tableMeta
		if err := rows.Scan(&t.objectID, &t.schema, &t.name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (d *MssqlDatabase) getColumns(ctx context.Context, objectID int64) ([]columnRow, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
	c.name,
	type_schema = schema_name(tp.schema_id),
	type_name = tp.name,
	tp.is_user_defined,
	c.max_length,
	c.precision,
	c.scale,
	c.is_nullable,
	c.is_identity,
	c.is_computed,
	c.collation_name,
	c.is_rowguidcol,
	cc.definition,
	cc.is_persisted,
	default_name = OBJECT_NAME(c.default_object_id),
	default_definition = OBJECT_DEFINITION(c.default_object_id),
	seed_value = CONVERT(nvarchar(40), ic.seed_value),
	increment_value = CONVERT(nvarchar(40), ic.increment_value)
FROM sys.columns c WITH(NOLOCK)
JOIN sys.types tp WITH(NOLOCK) ON c.user_type_id = tp.user_type_id
LEFT JOIN sys.computed_columns cc WITH(NOLOCK) ON cc.object_id = c.object_id AND cc.column_id = c.column_id
LEFT JOIN sys.identity_columns ic WITH(NOLOCK) ON ic.object_id = c.object_id AND ic.column_id = c.column_id
WHERE c.object_id = @p1
ORDER BY c.column_id`, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []columnRow
	for rows.Next() {
		var col columnRow
		var isPersisted *bool
		if err := rows.Scan(&col.Name, &col.TypeSchema, &col.TypeName, &col.IsUserDefined,
			&col.MaxLength, &col.Precision, &col.Scale, &col.Nullable, &col.IsIdentity,
			&col.IsComputed, &col.Collation, &col.IsRowGUIDCol, &col.ComputedDefinition,
			&isPersisted, &col.DefaultName, &col.DefaultDefinition,
			&col.SeedValue, &col.IncrementValue); err != nil {
			return nil, err
		}
		col.IsPersisted = isPersisted != nil && *isPersisted
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (d *MssqlDatabase) getKeyConstraints(ctx context.Context, objectID int64) ([]keyConstraintRow, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
	kc.name,
	kc.type,
	kc.unique_index_id,
	ind.type_desc
FROM sys.key_constraints kc WITH(NOLOCK)
JOIN sys.indexes ind WITH(NOLOCK) ON ind.object_id = kc.parent_object_id AND ind.index_id = kc.unique_index_id
WHERE kc.parent_object_id = @p1
ORDER BY kc.name`, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []keyConstraintRow
	for rows.Next() {
		var k keyConstraintRow
		if err := rows.Scan(&k.Name, &k.KindCode, &k.IndexID, &k.IndexTypeDesc); err != nil {
			return nil, err
		}
		k.KindCode = strings.TrimSpace(k.KindCode)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (d *MssqlDatabase) getForeignKeys(ctx context.Context, objectID int64) ([]foreignKeyRow, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
	f.object_id,
	f.name,
	referenced_schema = schema_name(ro.schema_id),
	referenced_table = ro.name,
	f.delete_referential_action_desc,
	f.update_referential_action_desc,
	f.is_not_for_replication,
	f.is_not_trusted,
	f.is_disabled
FROM sys.foreign_keys f WITH(NOLOCK)
JOIN sys.objects ro WITH(NOLOCK) ON ro.object_id = f.referenced_object_id
WHERE f.parent_object_id = @p1
ORDER BY f.name`, objectID)
	if err != nil {
		return nil, err
	}

	var fks []foreignKeyRow
	for rows.Next() {
		var fk foreignKeyRow
		if err := rows.Scan(&fk.objectID, &fk.Name, &fk.ReferencedSchema, &fk.ReferencedTable,
			&fk.DeleteAction, &fk.UpdateAction, &fk.NotForReplication, &fk.NotTrusted, &fk.Disabled); err != nil {
			rows.Close()
			return nil, err
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range fks {
		columns, err := d.getForeignKeyColumns(ctx, fks[i].objectID)
		if err != nil {
			return nil, err
		}
		fks[i].Columns = columns
	}
	return fks, nil
}

func (d *MssqlDatabase) getForeignKeyColumns(ctx context.Context, constraintID int64) ([]foreignKeyColumnRow, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
	COL_NAME(fc.parent_object_id, fc.parent_column_id),
	COL_NAME(fc.referenced_object_id, fc.referenced_column_id),
	fc.constraint_column_id
FROM sys.foreign_key_columns fc WITH(NOLOCK)
WHERE fc.constraint_object_id = @p1
ORDER BY fc.constraint_column_id`, constraintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []foreignKeyColumnRow
	for rows.Next() {
		var c foreignKeyColumnRow
		if err := rows.Scan(&c.ParentColumn, &c.ReferencedColumn, &c.Ordinal); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func (d *MssqlDatabase) getCheckConstraints(ctx context.Context, objectID int64) ([]checkConstraintRow, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
	cc.name,
	cc.definition,
	cc.is_not_trusted,
	cc.is_disabled
FROM sys.check_constraints cc WITH(NOLOCK)
WHERE cc.parent_object_id = @p1
ORDER BY cc.name`, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []checkConstraintRow
	for rows.Next() {
		var c checkConstraintRow
		if err := rows.Scan(&c.Name, &c.Expression, &c.NotTrusted, &c.Disabled); err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (d *MssqlDatabase) getIndexes(ctx context.Context, objectID int64) ([]indexRow, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
	ind.index_id,
	ind.name,
	ind.is_unique,
	ind.type_desc,
	ind.filter_definition,
	ind.is_disabled
FROM sys.indexes ind WITH(NOLOCK)
WHERE ind.object_id = @p1 AND ind.is_primary_key = 0 AND ind.is_unique_constraint = 0 AND ind.type > 0
ORDER BY ind.index_id`, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []indexRow
	for rows.Next() {
		var ind indexRow
		if err := rows.Scan(&ind.IndexID, &ind.Name, &ind.Unique, &ind.TypeDesc, &ind.Filter, &ind.Disabled); err != nil {
			return nil, err
		}
		indexes = append(indexes, ind)
	}
	return indexes, rows.Err()
}

func (d *MssqlDatabase) getIndexColumns(ctx context.Context, objectID int64) (map[int64][]indexColumnRow, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
	ic.index_id,
	COL_NAME(ic.object_id, ic.column_id),
	ic.key_ordinal,
	ic.is_descending_key,
	ic.is_included_column,
	ic.index_column_id
FROM sys.index_columns ic WITH(NOLOCK)
WHERE ic.object_id = @p1
ORDER BY ic.index_id, ic.key_ordinal, ic.index_column_id`, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := map[int64][]indexColumnRow{}
	for rows.Next() {
		var c indexColumnRow
		if err := rows.Scan(&c.IndexID, &c.Name, &c.KeyOrdinal, &c.Descending, &c.Included, &c.Ordinal); err != nil {
			return nil, err
		}
		columns[c.IndexID] = append(columns[c.IndexID], c)
	}
	return columns, rows.Err()
}

func (d *MssqlDatabase) getModules(ctx context.Context) ([]moduleRow, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
	o.object_id,
	o.type,
	schema_name(o.schema_id),
	o.name,
	m.definition
FROM sys.objects o WITH(NOLOCK)
JOIN sys.sql_modules m WITH(NOLOCK) ON m.object_id = o.object_id
WHERE o.type IN ('V', 'P', 'FN', 'IF', 'TF', 'FS', 'FT') AND o.is_ms_shipped = 0
ORDER BY schema_name(o.schema_id), o.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []moduleRow
	for rows.Next() {
		var m moduleRow
		var definition *string
		if err := rows.Scan(&m.objectID, &m.kindCode, &m.schemaName, &m.name, &definition); err != nil {
			return nil, err
		}
		if definition == nil {
			return nil, fmt.Errorf("module %s.%s has no definition (encrypted?)", m.schemaName, m.name)
		}
		m.definition = strings.TrimSpace(*definition)
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// getDependencyEdges aggregates sys.sql_expression_dependencies into a map
// from referencing object id to the sorted, deduplicated dependency keys of
// the user objects it references.
func (d *MssqlDatabase) getDependencyEdges(ctx context.Context) (map[int64][]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
	dep.referencing_id,
	o.type,
	schema_name(o.schema_id),
	o.name
FROM sys.sql_expression_dependencies dep WITH(NOLOCK)
JOIN sys.objects o WITH(NOLOCK) ON o.object_id = dep.referenced_id
WHERE dep.referenced_id IS NOT NULL
  AND o.type IN ('U', 'V', 'P', 'FN', 'IF', 'TF', 'FS', 'FT')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type edge struct {
		referencingID int64
		key           string
	}
	seen := map[edge]bool{}
	edges := map[int64][]string{}
	for rows.Next() {
		var referencingID int64
		var typeCode, schemaName, name string
		if err := rows.Scan(&referencingID, &typeCode, &schemaName, &name); err != nil {
			return nil, err
		}
		kind, err := kindFromTypeCode(typeCode)
		if err != nil {
			return nil, err
		}
		ref := schema.Object{Kind: kind, Schema: schemaName, Name: name}
		e := edge{referencingID, schema.NormalizeKey(ref.Key())}
		if seen[e] {
			continue
		}
		seen[e] = true
		edges[referencingID] = append(edges[referencingID], ref.Key())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for id := range edges {
		sort.Strings(edges[id])
	}
	return edges, nil
}
