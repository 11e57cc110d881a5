package analyze

import "github.com/matthewbaird/scaffold/internal/model"

// Child pairs an entity with the link that makes it a child of a parent.
type Child struct {
	Entity *model.Entity
	Link   model.ForeignKeyLink
}

// Singular is the child's table name in singular form, used in
// "add-<singular>" route paths.
func (c Child) Singular() string { return model.Singularize(c.Entity.Table) }

// Children returns every other entity holding a link into parent's table,
// in schema order. Only the first qualifying link of each child is used.
func Children(s *model.Schema, parent *model.Entity) []Child {
	var out []Child
	for _, e := range s.Entities() {
		if e == parent {
			continue
		}
		if l, ok := e.LinkTo(parent.Table); ok {
			out = append(out, Child{Entity: e, Link: l})
		}
	}
	return out
}
