package analyze

import (
	"github.com/matthewbaird/scaffold/internal/model"
	"github.com/matthewbaird/scaffold/internal/normalize"
)

// Build normalizes the raw definitions, classifies ownership, computes
// missing foreign keys and returns the resulting read-only schema.
func Build(defs []model.Definition, ownerTable string) (*model.Schema, error) {
	tables := make(map[string]string, len(defs))
	for _, d := range defs {
		tables[d.Name] = d.Table
	}
	resolve := func(name string) (string, bool) {
		t, ok := tables[name]
		return t, ok
	}

	entities := make([]*model.Entity, 0, len(defs))
	for _, d := range defs {
		fields, pk := normalize.Definition(d)
		own := Classify(fields, ownerTable)
		e := &model.Entity{
			Name:                d.Name,
			Table:               d.Table,
			File:                d.File,
			Fields:              fields,
			PrimaryKey:          pk,
			OwnerField:          own.Field,
			NonOwnerForeignKeys: own.NonOwner,
			Links:               own.Links,
			Associations:        append([]model.Association(nil), d.Associations...),
		}
		e.MissingForeignKeys = MissingForeignKeys(e, resolve)
		entities = append(entities, e)
	}
	return model.NewSchema(entities)
}
