// Package normalize turns raw column declarations into field descriptors.
package normalize

import (
	"strings"

	"github.com/matthewbaird/scaffold/internal/model"
)

// typeKeywords is checked in order; the first keyword found in the
// declaration's type text wins. DateTime precedes Date so the longer
// keyword is matched first.
var typeKeywords = []struct {
	keyword string
	typ     model.SemanticType
}{
	{"Integer", model.TypeInteger},
	{"String", model.TypeString},
	{"Text", model.TypeText},
	{"Boolean", model.TypeBoolean},
	{"DateTime", model.TypeDateTime},
	{"Date", model.TypeDate},
	{"Float", model.TypeFloat},
	{"Numeric", model.TypeNumeric},
}

// creationMarkers identify a "current timestamp at creation" default.
var creationMarkers = []string{"#Now", `"now"`, "CURRENT_TIMESTAMP"}

// Type maps a type expression to a semantic type. Unknown expressions are String.
func Type(expr string) model.SemanticType {
	for _, k := range typeKeywords {
		if strings.Contains(expr, k.keyword) {
			return k.typ
		}
	}
	return model.TypeString
}

// Default classifies a raw default expression.
func Default(expr string) model.DefaultMarker {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return model.NoDefault
	}
	if expr == "now" {
		return model.DefaultCreationTime
	}
	for _, m := range creationMarkers {
		if strings.Contains(expr, m) {
			return model.DefaultCreationTime
		}
	}
	return model.DefaultValue
}

// ForeignKey parses a "table.column" reference. A bare table name refers to its id.
func ForeignKey(ref string) *model.ColumnRef {
	ref = strings.Trim(strings.TrimSpace(ref), `"'`)
	if ref == "" {
		return nil
	}
	table, column, ok := strings.Cut(ref, ".")
	if !ok || column == "" {
		column = "id"
	}
	return &model.ColumnRef{Table: table, Column: column}
}

// Column converts one raw declaration into a field descriptor.
func Column(decl model.ColumnDecl) model.Field {
	f := model.Field{
		Name:       decl.Name,
		Type:       Type(decl.Type),
		Nullable:   true,
		PrimaryKey: decl.PrimaryKey,
		Unique:     decl.Unique,
		Default:    Default(decl.Default),
		ForeignKey: ForeignKey(decl.ForeignKey),
	}
	if decl.Nullable != nil {
		f.Nullable = *decl.Nullable
	}
	if f.Type == model.TypeString && decl.Length > 0 {
		f.MaxLength = decl.Length
	}
	return f
}

// Definition normalizes every column of def in declaration order and
// returns the fields together with the primary key name ("id" when none
// is marked).
func Definition(def model.Definition) ([]model.Field, string) {
	fields := make([]model.Field, 0, len(def.Columns))
	pk := ""
	for _, c := range def.Columns {
		f := Column(c)
		if f.PrimaryKey && pk == "" {
			pk = f.Name
		}
		fields = append(fields, f)
	}
	if pk == "" {
		pk = "id"
	}
	return fields, pk
}
