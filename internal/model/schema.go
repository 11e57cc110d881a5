package model

import (
	"errors"
	"fmt"
)

// ErrDuplicateTable is returned when two entities share a table name.
var ErrDuplicateTable = errors.New("duplicate table name")

// Schema is the ordered, read-only set of entities discovered in one run.
// It is passed explicitly from stage to stage.
type Schema struct {
	entities []*Entity
	byName   map[string]*Entity
	byTable  map[string]*Entity
}

// NewSchema indexes entities by name and table. Table names must be unique
// because route prefixes and template directories are derived from them.
func NewSchema(entities []*Entity) (*Schema, error) {
	s := &Schema{
		entities: make([]*Entity, 0, len(entities)),
		byName:   make(map[string]*Entity, len(entities)),
		byTable:  make(map[string]*Entity, len(entities)),
	}
	for _, e := range entities {
		if prev, ok := s.byTable[e.Table]; ok {
			return nil, fmt.Errorf("%w: %q used by %s and %s", ErrDuplicateTable, e.Table, prev.Name, e.Name)
		}
		s.entities = append(s.entities, e)
		s.byName[e.Name] = e
		s.byTable[e.Table] = e
	}
	return s, nil
}

// Entities returns the entities in discovery order.
func (s *Schema) Entities() []*Entity {
	out := make([]*Entity, len(s.entities))
	copy(out, s.entities)
	return out
}

// Entity returns the entity with the given name, or nil.
func (s *Schema) Entity(name string) *Entity { return s.byName[name] }

// ByTable returns the entity stored in table, or nil.
func (s *Schema) ByTable(table string) *Entity { return s.byTable[table] }

// Len returns the number of entities.
func (s *Schema) Len() int { return len(s.entities) }

// Findings returns the number of missing foreign keys across all entities.
func (s *Schema) Findings() int {
	n := 0
	for _, e := range s.entities {
		n += len(e.MissingForeignKeys)
	}
	return n
}
