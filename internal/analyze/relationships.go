package analyze

import "github.com/matthewbaird/scaffold/internal/model"

// TableResolver maps an entity name to its declared table name.
type TableResolver func(entity string) (string, bool)

// TargetTable resolves the table behind an association target, falling
// back to model.Pluralize when the target entity is unknown.
func TargetTable(target string, tables TableResolver) string {
	if tables != nil {
		if t, ok := tables(target); ok && t != "" {
			return t
		}
	}
	return model.Pluralize(target)
}

// ExpectedColumn is the foreign-key column an association implies: the
// inverse name plus "_id" when one is declared, else the target table plus "_id".
func ExpectedColumn(a model.Association, targetTable string) string {
	if a.Inverse != "" {
		return a.Inverse + "_id"
	}
	return targetTable + "_id"
}

// MissingForeignKeys cross-references e's associations against its
// foreign-key links. Many-to-many associations are never flagged. An
// association is satisfied by any link into its target table; otherwise it
// is flagged when the expected column is absent.
func MissingForeignKeys(e *model.Entity, tables TableResolver) []model.MissingForeignKey {
	var missing []model.MissingForeignKey
	for _, a := range e.Associations {
		if a.ManyToMany() {
			continue
		}
		table := TargetTable(a.Target, tables)
		if _, ok := e.LinkTo(table); ok {
			continue
		}
		expected := ExpectedColumn(a, table)
		if e.HasField(expected) {
			continue
		}
		missing = append(missing, model.MissingForeignKey{
			Association:    a.Name,
			TargetEntity:   a.Target,
			ExpectedColumn: expected,
			TargetTable:    table,
		})
	}
	return missing
}
