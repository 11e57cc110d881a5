package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Task belongs to a user and lives under a category.
type Task struct {
	ent.Schema
}

// Mixin of the Task.
func (Task) Mixin() []ent.Mixin {
	return []ent.Mixin{
		TimestampMixin{Tracked: true},
	}
}

// Annotations of the Task.
func (Task) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "tasks"},
	}
}

// Fields of the Task.
func (Task) Fields() []ent.Field {
	return []ent.Field{
		field.String("title").
			MaxLen(200).
			NotEmpty(),
		field.Text("notes").
			Optional(),
		field.Bool("done").
			Default(false),
		field.Float("estimate").
			Optional().
			Nillable(),
		field.Int("user_id"),
		field.Int("category_id"),
	}
}

// Edges of the Task.
func (Task) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("owner", User.Type).
			Ref("tasks").
			Field("user_id").
			Unique().
			Required(),
		edge.From("category", Category.Type).
			Ref("tasks").
			Field("category_id").
			Unique().
			Required(),
		edge.To("tags", Tag.Type),
	}
}
