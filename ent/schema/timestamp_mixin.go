package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/mixin"
)

// TimestampMixin stamps every row with its creation time. A creation
// default of time.Now marks the column as filled in by the app, so
// generated forms leave it out.
type TimestampMixin struct {
	mixin.Schema

	// Tracked adds updated_at, set on every change and absent until the
	// first one.
	Tracked bool
}

// Fields of the TimestampMixin.
func (m TimestampMixin) Fields() []ent.Field {
	fields := []ent.Field{
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
	if m.Tracked {
		fields = append(fields, field.Time("updated_at").
			Optional().
			Nillable().
			UpdateDefault(time.Now))
	}
	return fields
}
