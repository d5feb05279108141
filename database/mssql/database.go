// Package mssql reads SQL Server system catalogs and rebuilds deterministic
// DDL text for every user table, view, stored procedure and function.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/sqldiff/sqldiff/database"
	"github.com/sqldiff/sqldiff/schema"
)

type MssqlDatabase struct {
	config database.Config
	db     *sql.DB
}

func NewDatabase(config database.Config) (*MssqlDatabase, error) {
	db, err := sql.Open("sqlserver", buildDSN(config))
	if err != nil {
		return nil, err
	}

	return &MssqlDatabase{
		db:     db,
		config: config,
	}, nil
}

// ExtractSnapshot builds the snapshot of the database's user schema.
// Tables are read first (each table's sub-queries run sequentially on the
// one connection), then programmable objects, then dependency edges.
func (d *MssqlDatabase) ExtractSnapshot(ctx context.Context) (*schema.Snapshot, error) {
	databaseName, err := d.databaseName(ctx)
	if err != nil {
		return nil, err
	}

	tables, err := d.listTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	var objects []*schema.Object
	for _, t := range tables {
		obj, err := d.scriptTable(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("script table %s.%s: %w", t.schema, t.name, err)
		}
		objects = append(objects, obj)
	}
	slog.Debug("scripted tables", "database", databaseName, "count", len(tables))

	modules, err := d.getModules(ctx)
	if err != nil {
		return nil, fmt.Errorf("read modules: %w", err)
	}
	edges, err := d.getDependencyEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("read dependency edges: %w", err)
	}

	for _, m := range modules {
		kind, err := kindFromTypeCode(m.kindCode)
		if err != nil {
			return nil, fmt.Errorf("module %s.%s: %w", m.schemaName, m.name, err)
		}
		objects = append(objects, &schema.Object{
			Kind:         kind,
			Schema:       m.schemaName,
			Name:         m.name,
			Definition:   m.definition,
			Dependencies: edges[m.objectID],
		})
	}
	slog.Debug("scripted modules", "database", databaseName, "count", len(modules))

	return schema.NewSnapshot(databaseName, objects), nil
}

// scriptTable runs the table's sub-queries and assembles its object.
func (d *MssqlDatabase) scriptTable(ctx context.Context, t tableMeta) (*schema.Object, error) {
	cols, err := d.getColumns(ctx, t.objectID)
	if err != nil {
		return nil, err
	}
	keys, err := d.getKeyConstraints(ctx, t.objectID)
	if err != nil {
		return nil, err
	}
	fks, err := d.getForeignKeys(ctx, t.objectID)
	if err != nil {
		return nil, err
	}
	checks, err := d.getCheckConstraints(ctx, t.objectID)
	if err != nil {
		return nil, err
	}
	indexes, err := d.getIndexes(ctx, t.objectID)
	if err != nil {
		return nil, err
	}
	indexColumns, err := d.getIndexColumns(ctx, t.objectID)
	if err != nil {
		return nil, err
	}

	return &schema.Object{
		Kind:         schema.ObjectKindTable,
		Schema:       t.schema,
		Name:         t.name,
		Definition:   buildTableDDL(t, cols, keys, fks, checks, indexes, indexColumns),
		Dependencies: tableDependencies(fks),
	}, nil
}

func (d *MssqlDatabase) databaseName(ctx context.Context) (string, error) {
	if d.config.DbName != "" {
		return d.config.DbName, nil
	}
	var name string
	if err := d.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&name); err != nil {
		return "", fmt.Errorf("resolve database name: %w", err)
	}
	return name, nil
}

// ServerInfo describes the probed connection for check-conn.
type ServerInfo struct {
	Server   string
	Database string
	Login    string
	Version  string
	Edition  string
}

// ServerInfo probes the connection and reports server identity details.
func (d *MssqlDatabase) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	err := d.db.QueryRowContext(ctx, `SELECT
	CONVERT(nvarchar(128), SERVERPROPERTY('ServerName')),
	DB_NAME(),
	SUSER_SNAME(),
	@@VERSION,
	CONVERT(nvarchar(128), SERVERPROPERTY('Edition'))`).
		Scan(&info.Server, &info.Database, &info.Login, &info.Version, &info.Edition)
	if err != nil {
		return nil, err
	}
	// @@VERSION spans several lines; the first carries the product name.
	if i := strings.IndexAny(info.Version, "\r\n"); i >= 0 {
		info.Version = strings.TrimSpace(info.Version[:i])
	}
	return &info, nil
}

func (d *MssqlDatabase) DB() *sql.DB {
	return d.db
}

func (d *MssqlDatabase) Close() error {
	return d.db.Close()
}

func buildDSN(config database.Config) string {
	if config.ConnString != "" {
		return config.ConnString
	}

	query := url.Values{}
	query.Add("database", config.DbName)

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(config.User, config.Password),
		Host:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
