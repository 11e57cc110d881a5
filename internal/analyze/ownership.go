// Package analyze derives ownership, foreign-key links, missing foreign
// keys and parent/child pairings from normalized entity fields.
package analyze

import "github.com/matthewbaird/scaffold/internal/model"

// Ownership is the result of classifying an entity's foreign keys.
type Ownership struct {
	Field    string // foreign key to the owner table, "" when none
	NonOwner int
	Links    []model.ForeignKeyLink
}

// Dependent reports whether the entity needs a parent to be created.
func (o Ownership) Dependent() bool { return o.NonOwner > 0 }

// Classify scans the foreign-key fields. The first key into ownerTable
// becomes the owner field; every other key counts as a non-owner link.
// Associations without a backing column are not considered.
func Classify(fields []model.Field, ownerTable string) Ownership {
	var o Ownership
	for _, f := range fields {
		if !f.IsForeignKey() {
			continue
		}
		if f.ForeignKey.Table == ownerTable {
			if o.Field == "" {
				o.Field = f.Name
			}
			continue
		}
		o.NonOwner++
		o.Links = append(o.Links, model.ForeignKeyLink{
			Field:        f.Name,
			TargetTable:  f.ForeignKey.Table,
			TargetColumn: f.ForeignKey.Column,
		})
	}
	return o
}
