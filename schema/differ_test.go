package schema

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testClock = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func snapshotOf(name string, objects ...*Object) *Snapshot {
	return &Snapshot{DatabaseName: name, GeneratedAtUtc: testClock, Objects: objects}
}

func tableObject(name, definition string, deps ...string) *Object {
	return &Object{Kind: ObjectKindTable, Schema: "dbo", Name: name, Definition: definition, Dependencies: deps}
}

func viewObject(name, definition string) *Object {
	return &Object{Kind: ObjectKindView, Schema: "dbo", Name: name, Definition: definition}
}

func procObject(name, definition string) *Object {
	return &Object{Kind: ObjectKindStoredProcedure, Schema: "dbo", Name: name, Definition: definition}
}

func mustDiff(t *testing.T, source, target *Snapshot, opts DiffOptions) *DiffResult {
	t.Helper()
	opts.GeneratedAt = testClock
	result, err := Diff(source, target, opts)
	assert.NoError(t, err)
	return result
}

func TestDiffIdenticalSnapshotsIsEmpty(t *testing.T) {
	source := snapshotOf("AppDb",
		tableObject("T", "CREATE TABLE [dbo].[T] ( [Id] int NOT NULL );\nGO\n"),
		viewObject("V", "CREATE VIEW dbo.V AS SELECT 1"),
	)
	target := snapshotOf("AppDb",
		tableObject("T", "CREATE TABLE [dbo].[T] ( [Id] int NOT NULL );\nGO\n"),
		viewObject("V", "CREATE VIEW dbo.V AS SELECT 1"),
	)

	result := mustDiff(t, source, target, DiffOptions{IncludeDrops: true, IncludeTableDrops: true})
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 0, result.Changed)
	assert.Equal(t, 0, result.Removed)
	assert.Equal(t, 0, result.Skipped)
	assert.False(t, result.HasChanges())
	assert.NotContains(t, result.Script, "-- Drops")
	assert.NotContains(t, result.Script, "-- Creates/Alters")
}

func TestDiffDefinitionEqualityIsNormalized(t *testing.T) {
	source := snapshotOf("A", viewObject("V", "create view dbo.V\nas\n  select 1"))
	target := snapshotOf("B", viewObject("V", "CREATE   VIEW dbo.V AS SELECT 1"))

	result := mustDiff(t, source, target, DiffOptions{})
	assert.False(t, result.HasChanges())
	assert.Equal(t, 0, result.Skipped)
}

func TestDiffNewTable(t *testing.T) {
	source := snapshotOf("A", tableObject("T", "CREATE TABLE [dbo].[T] ( [Id] int NOT NULL );\nGO\n"))
	target := snapshotOf("B")

	result := mustDiff(t, source, target, DiffOptions{})
	assert.Equal(t, 1, result.Added)
	assert.Contains(t, result.Script, "-- Creates/Alters\nCREATE TABLE [dbo].[T] ( [Id] int NOT NULL );\nGO\n")
}

func TestDiffChangedProcedure(t *testing.T) {
	source := snapshotOf("A", procObject("P", "CREATE PROCEDURE dbo.P AS SELECT 1"))
	target := snapshotOf("B", procObject("P", "CREATE PROCEDURE dbo.P AS SELECT 2"))

	result := mustDiff(t, source, target, DiffOptions{})
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, 0, result.Skipped)
	assert.Contains(t, result.Script, "CREATE OR ALTER PROCEDURE dbo.P AS SELECT 1")
}

func TestDiffChangedTableWithoutRebuild(t *testing.T) {
	source := snapshotOf("A", tableObject("T", "CREATE TABLE [dbo].[T] ( [Id] int NOT NULL );\nGO\n"))
	target := snapshotOf("B", tableObject("T", "CREATE TABLE [dbo].[T] ( [Id] bigint NOT NULL );\nGO\n"))

	result := mustDiff(t, source, target, DiffOptions{})
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, 1, result.Skipped)
	assert.NotContains(t, result.Script, "CREATE TABLE")
	assert.NotContains(t, result.Script, "DROP")
	assert.Contains(t, result.Script, "-- WARNING: table [dbo].[T]")
	assert.Contains(t, result.Script, "--allow-table-rebuild")
}

func TestDiffChangedTableWithRebuild(t *testing.T) {
	source := snapshotOf("A", tableObject("T", "CREATE TABLE [dbo].[T] ( [Id] int NOT NULL );\nGO\n"))
	target := snapshotOf("B", tableObject("T", "CREATE TABLE [dbo].[T] ( [Id] bigint NOT NULL );\nGO\n"))

	result := mustDiff(t, source, target, DiffOptions{AllowTableRebuild: true})
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, 0, result.Skipped)
	assert.Contains(t, result.Script, "-- Drops\nIF OBJECT_ID(N'[dbo].[T]') IS NOT NULL\n    DROP TABLE [dbo].[T];\nGO\n")
	assert.Contains(t, result.Script, "CREATE TABLE [dbo].[T] ( [Id] int NOT NULL );")
}

func TestDiffAddOnlySkipsChanges(t *testing.T) {
	source := snapshotOf("A",
		procObject("P", "CREATE PROCEDURE dbo.P AS SELECT 1"),
		viewObject("New", "CREATE VIEW dbo.New AS SELECT 1"),
	)
	target := snapshotOf("B",
		procObject("P", "CREATE PROCEDURE dbo.P AS SELECT 2"),
		viewObject("Old", "CREATE VIEW dbo.Old AS SELECT 9"),
	)

	result := mustDiff(t, source, target, DiffOptions{AddOnly: true, IncludeDrops: true, IncludeTableDrops: true})
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, 0, result.Removed)
	assert.Equal(t, 2, result.Skipped) // the changed proc and the ignored --include-drops
	assert.NotContains(t, result.Script, "DROP")
	assert.NotContains(t, result.Script, "CREATE OR ALTER")
	assert.Contains(t, result.Script, "--include-drops is ignored")
}

func TestDiffDropGating(t *testing.T) {
	source := snapshotOf("A")
	target := snapshotOf("B",
		viewObject("V", "CREATE VIEW dbo.V AS SELECT 1"),
		tableObject("T", "CREATE TABLE [dbo].[T] ( [Id] int NOT NULL );\nGO\n"),
	)

	// Without include-drops nothing is dropped.
	result := mustDiff(t, source, target, DiffOptions{})
	assert.NotContains(t, result.Script, "DROP")
	assert.Equal(t, 0, result.Removed)

	// include-drops alone drops the view but only comments on the table.
	result = mustDiff(t, source, target, DiffOptions{IncludeDrops: true})
	assert.Contains(t, result.Script, "DROP VIEW [dbo].[V];")
	assert.NotContains(t, result.Script, "DROP TABLE")
	assert.Contains(t, result.Script, "--include-table-drops")
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 1, result.Skipped)

	// include-table-drops drops both.
	result = mustDiff(t, source, target, DiffOptions{IncludeDrops: true, IncludeTableDrops: true})
	assert.Contains(t, result.Script, "IF OBJECT_ID(N'[dbo].[V]') IS NOT NULL\n    DROP VIEW [dbo].[V];\nGO\n")
	assert.Contains(t, result.Script, "IF OBJECT_ID(N'[dbo].[T]') IS NOT NULL\n    DROP TABLE [dbo].[T];\nGO\n")
	assert.Equal(t, 2, result.Removed)
	assert.Equal(t, 0, result.Skipped)
	// Drop order: view before table.
	assert.Less(t, strings.Index(result.Script, "DROP VIEW"), strings.Index(result.Script, "DROP TABLE"))
}

func TestDiffDependencyOrder(t *testing.T) {
	source := snapshotOf("A",
		tableObject("Child", "CREATE TABLE [dbo].[Child] ( [Id] int NOT NULL );\nGO\n", "Table:dbo.Parent"),
		tableObject("Parent", "CREATE TABLE [dbo].[Parent] ( [Id] int NOT NULL );\nGO\n"),
	)
	target := snapshotOf("B")

	result := mustDiff(t, source, target, DiffOptions{})
	assert.Equal(t, 2, result.Added)
	parentAt := strings.Index(result.Script, "CREATE TABLE [dbo].[Parent]")
	childAt := strings.Index(result.Script, "CREATE TABLE [dbo].[Child]")
	assert.True(t, parentAt >= 0 && childAt >= 0)
	assert.Less(t, parentAt, childAt)
}

func TestDiffDeterministic(t *testing.T) {
	source := snapshotOf("A",
		tableObject("B", "CREATE TABLE [dbo].[B] ( [Id] int NOT NULL );\nGO\n"),
		tableObject("A", "CREATE TABLE [dbo].[A] ( [Id] int NOT NULL );\nGO\n"),
		viewObject("V", "CREATE VIEW dbo.V AS SELECT 1"),
		procObject("P", "CREATE PROCEDURE dbo.P AS SELECT 1"),
	)
	target := snapshotOf("B", procObject("Gone", "CREATE PROCEDURE dbo.Gone AS SELECT 0"))

	opts := DiffOptions{IncludeDrops: true, IncludeTableDrops: true}
	first := mustDiff(t, source, target, opts)
	second := mustDiff(t, source, target, opts)
	assert.Equal(t, first.Script, second.Script)
	assert.Equal(t, first, second)
}

func TestDiffCaseInsensitiveKeys(t *testing.T) {
	source := snapshotOf("A", viewObject("Users", "CREATE VIEW dbo.Users AS SELECT 1"))
	target := snapshotOf("B", &Object{Kind: ObjectKindView, Schema: "DBO", Name: "USERS", Definition: "CREATE VIEW dbo.Users AS SELECT 1"})

	result := mustDiff(t, source, target, DiffOptions{IncludeDrops: true})
	assert.False(t, result.HasChanges())
}

func TestRewriteCreateOrAlter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain create",
			input:    "CREATE PROCEDURE dbo.P AS SELECT 1",
			expected: "CREATE OR ALTER PROCEDURE dbo.P AS SELECT 1",
		},
		{
			name:     "leading whitespace and lowercase",
			input:    "  \n\tcreate view dbo.V as select 1",
			expected: "  \n\tCREATE OR ALTER view dbo.V as select 1",
		},
		{
			name:     "not starting with create passes through",
			input:    "ALTER VIEW dbo.V AS SELECT 1",
			expected: "ALTER VIEW dbo.V AS SELECT 1",
		},
		{
			name:     "create must be a full word",
			input:    "CREATEX something",
			expected: "CREATEX something",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, rewriteCreateOrAlter(test.input))
		})
	}
}
