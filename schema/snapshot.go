package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is an immutable projection of one database's user-defined schema
// objects. Build it once (from the catalog or a persisted document) and
// never mutate it afterwards.
type Snapshot struct {
	DatabaseName   string
	GeneratedAtUtc time.Time
	Objects        []*Object
}

// NewSnapshot stamps the snapshot with the current UTC time.
func NewSnapshot(databaseName string, objects []*Object) *Snapshot {
	return &Snapshot{
		DatabaseName:   databaseName,
		GeneratedAtUtc: time.Now().UTC(),
		Objects:        objects,
	}
}

// objectDocument is the wire shape of one object in a snapshot document.
type objectDocument struct {
	Type         string   `json:"Type"`
	Schema       string   `json:"Schema"`
	Name         string   `json:"Name"`
	Definition   string   `json:"Definition"`
	Dependencies []string `json:"Dependencies"`
}

type snapshotDocument struct {
	DatabaseName   string           `json:"DatabaseName"`
	GeneratedAtUtc time.Time        `json:"GeneratedAtUtc"`
	Objects        []objectDocument `json:"Objects"`
}

// MarshalJSON serializes the snapshot document with enum values as their
// string names.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	doc := snapshotDocument{
		DatabaseName:   s.DatabaseName,
		GeneratedAtUtc: s.GeneratedAtUtc,
		Objects:        make([]objectDocument, 0, len(s.Objects)),
	}
	for _, o := range s.Objects {
		deps := o.Dependencies
		if deps == nil {
			deps = []string{}
		}
		doc.Objects = append(doc.Objects, objectDocument{
			Type:         o.Kind.String(),
			Schema:       o.Schema,
			Name:         o.Name,
			Definition:   o.Definition,
			Dependencies: deps,
		})
	}
	return json.Marshal(doc)
}

// UnmarshalJSON is the inverse of MarshalJSON. Unknown Type values are an
// error, matching the catalog reader's fail-fast kind mapping.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	objects := make([]*Object, 0, len(doc.Objects))
	for _, od := range doc.Objects {
		kind, err := ParseObjectKind(od.Type)
		if err != nil {
			return fmt.Errorf("snapshot object %s.%s: %w", od.Schema, od.Name, err)
		}
		objects = append(objects, &Object{
			Kind:         kind,
			Schema:       od.Schema,
			Name:         od.Name,
			Definition:   od.Definition,
			Dependencies: od.Dependencies,
		})
	}

	s.DatabaseName = doc.DatabaseName
	s.GeneratedAtUtc = doc.GeneratedAtUtc
	s.Objects = objects
	return nil
}
