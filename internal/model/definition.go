package model

// Definition is an entity as a provider saw it, before normalization.
type Definition struct {
	Name         string
	Table        string
	File         string
	Columns      []ColumnDecl
	Associations []Association
}

// ColumnDecl is a raw column declaration.
type ColumnDecl struct {
	Name string
	// Type is the column-constructor text (text parser) or the declared
	// type name (live providers). It is matched by keyword.
	Type       string
	Length     int
	PrimaryKey bool
	Nullable   *bool // nil when not declared
	Unique     bool
	ForeignKey string // "table.column"
	Default    string // raw default expression
}
