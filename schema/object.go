// Package schema holds the database-agnostic diff engine: the object model,
// definition normalization, the differ, the dependency orderer, and the
// script composer. Never deal with catalog queries here.
package schema

import (
	"fmt"
	"strings"
)

// ObjectKind tags a schema object. It drives creation order, drop order,
// the DROP statement shape, and whether CREATE OR ALTER substitution
// applies on change.
type ObjectKind int

const (
	ObjectKindTable ObjectKind = iota
	ObjectKindView
	ObjectKindStoredProcedure
	ObjectKindFunction
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectKindTable:
		return "Table"
	case ObjectKindView:
		return "View"
	case ObjectKindStoredProcedure:
		return "StoredProcedure"
	case ObjectKindFunction:
		return "Function"
	default:
		return fmt.Sprintf("ObjectKind(%d)", int(k))
	}
}

// ParseObjectKind is the inverse of String. Comparison is exact; snapshot
// documents always carry the canonical names.
func ParseObjectKind(s string) (ObjectKind, error) {
	switch s {
	case "Table":
		return ObjectKindTable, nil
	case "View":
		return ObjectKindView, nil
	case "StoredProcedure":
		return ObjectKindStoredProcedure, nil
	case "Function":
		return ObjectKindFunction, nil
	default:
		return 0, fmt.Errorf("unknown object kind %q", s)
	}
}

// CreatePriority orders creations: tables carry the data, functions and
// views may reference tables, procedures may reference all of them.
func (k ObjectKind) CreatePriority() int {
	switch k {
	case ObjectKindTable:
		return 0
	case ObjectKindFunction:
		return 1
	case ObjectKindView:
		return 2
	default:
		return 3
	}
}

// DropPriority is the reverse of dependency order: referencing kinds go
// before the tables they reference.
func (k ObjectKind) DropPriority() int {
	switch k {
	case ObjectKindView:
		return 0
	case ObjectKindStoredProcedure:
		return 1
	case ObjectKindFunction:
		return 2
	default:
		return 3
	}
}

// dropKeyword returns the noun used in DROP statements. Asking for an
// unsupported kind is a programming error, not an operator error.
func (k ObjectKind) dropKeyword() (string, error) {
	switch k {
	case ObjectKindTable:
		return "TABLE", nil
	case ObjectKindView:
		return "VIEW", nil
	case ObjectKindStoredProcedure:
		return "PROCEDURE", nil
	case ObjectKindFunction:
		return "FUNCTION", nil
	default:
		return "", fmt.Errorf("no DROP statement for object kind %q", k)
	}
}

// Object is the atomic unit of a snapshot: one table, view, stored
// procedure or function, with the DDL text that would recreate it and the
// keys of the objects it references.
type Object struct {
	Kind         ObjectKind
	Schema       string
	Name         string
	Definition   string
	Dependencies []string
}

// Identifier returns the bracket-quoted [schema].[name] form.
func (o *Object) Identifier() string {
	return fmt.Sprintf("%s.%s", QuoteIdent(o.Schema), QuoteIdent(o.Name))
}

// Key returns the canonical "Kind:schema.name" identity of the object.
// Keys compare case-insensitively; compare them through NormalizeKey.
func (o *Object) Key() string {
	return fmt.Sprintf("%s:%s.%s", o.Kind, o.Schema, o.Name)
}

// NormalizeKey folds a dependency key for case-insensitive lookup.
func NormalizeKey(key string) string {
	return strings.ToLower(key)
}

// QuoteIdent bracket-quotes an identifier, doubling any closing bracket.
func QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// UnquoteIdent reverses QuoteIdent. Unbracketed input is returned as-is.
func UnquoteIdent(ident string) string {
	if len(ident) < 2 || ident[0] != '[' || ident[len(ident)-1] != ']' {
		return ident
	}
	return strings.ReplaceAll(ident[1:len(ident)-1], "]]", "]")
}
