// Package model holds the entity descriptors shared by every pipeline stage.
//
// Providers produce raw Definitions; the normalizer and analyzer turn them
// into Entities collected in an immutable Schema, which the emitter and the
// repair pass consume.
package model

// SemanticType classifies a column for form and template generation.
type SemanticType int

const (
	TypeString SemanticType = iota
	TypeInteger
	TypeText
	TypeBoolean
	TypeDate
	TypeDateTime
	TypeFloat
	TypeNumeric
)

// String returns the vocabulary name of the type.
func (t SemanticType) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeInteger:
		return "Integer"
	case TypeText:
		return "Text"
	case TypeBoolean:
		return "Boolean"
	case TypeDate:
		return "Date"
	case TypeDateTime:
		return "DateTime"
	case TypeFloat:
		return "Float"
	case TypeNumeric:
		return "Numeric"
	default:
		return "unknown"
	}
}

// DefaultMarker records what kind of default a column declares.
type DefaultMarker int

const (
	NoDefault DefaultMarker = iota
	DefaultValue
	// DefaultCreationTime marks a "current timestamp at creation" default.
	DefaultCreationTime
)

// ColumnRef points at a column in another table.
type ColumnRef struct {
	Table  string
	Column string
}

// Field describes one column of an entity.
type Field struct {
	Name       string
	Type       SemanticType
	MaxLength  int // 0 when unknown
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	Default    DefaultMarker
	ForeignKey *ColumnRef
}

// IsForeignKey reports whether the column references another table.
func (f Field) IsForeignKey() bool { return f.ForeignKey != nil }

// SkipInForm reports whether the field is never user-editable.
func (f Field) SkipInForm() bool { return f.PrimaryKey || f.IsForeignKey() }

// CreationTimestamp reports whether the field is a DateTime filled in at creation.
func (f Field) CreationTimestamp() bool {
	return f.Type == TypeDateTime && f.Default == DefaultCreationTime
}

// Association is a declared navigable relationship to another entity.
type Association struct {
	Name      string
	Target    string // entity name
	Inverse   string // backref or back_populates name, "" when absent
	JoinTable string // set iff many-to-many
}

// ManyToMany reports whether the association is backed by a join table.
func (a Association) ManyToMany() bool { return a.JoinTable != "" }

// ForeignKeyLink is a foreign-key column that does not point at the owner table.
type ForeignKeyLink struct {
	Field        string
	TargetTable  string
	TargetColumn string
}

// MissingForeignKey reports an association with no backing column.
type MissingForeignKey struct {
	Association    string
	TargetEntity   string
	ExpectedColumn string
	TargetTable    string
}

// Entity is the fully analyzed descriptor of one entity. Entities are built
// once per run and never modified afterwards.
type Entity struct {
	Name                string
	Table               string
	File                string // source file the definition came from, "" if unknown
	Fields              []Field
	PrimaryKey          string
	OwnerField          string // "" when the entity has no owner
	NonOwnerForeignKeys int
	Links               []ForeignKeyLink
	Associations        []Association
	MissingForeignKeys  []MissingForeignKey
}

// Field returns the named field.
func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether a column with the given name exists.
func (e *Entity) HasField(name string) bool {
	_, ok := e.Field(name)
	return ok
}

// Dependent reports whether the entity can only be created under a parent.
func (e *Entity) Dependent() bool { return e.NonOwnerForeignKeys > 0 }

// DisplayFields returns up to n non-primary-key field names in declaration order.
func (e *Entity) DisplayFields(n int) []string {
	var names []string
	for _, f := range e.Fields {
		if f.PrimaryKey {
			continue
		}
		if len(names) == n {
			break
		}
		names = append(names, f.Name)
	}
	return names
}

// LinkTo returns the first link targeting table.
func (e *Entity) LinkTo(table string) (ForeignKeyLink, bool) {
	for _, l := range e.Links {
		if l.TargetTable == table {
			return l, true
		}
	}
	return ForeignKeyLink{}, false
}
